package metadata

import "strings"

// keywordTable maps lowercased text chunk keywords to the ecosystem that
// writes them.
var keywordTable = map[string]Ecosystem{
	"parameters":             EcosystemA1111,
	"comment":                EcosystemA1111,
	"invokeai_metadata":      EcosystemInvokeAI,
	"dream":                  EcosystemInvokeAI,
	"sd-metadata":            EcosystemInvokeAI,
	"novelai_metadata":       EcosystemNovelAI,
	"novelai":                EcosystemNovelAI,
	"dream_metadata":         EcosystemDream,
	"fooocus_metadata":       EcosystemFooocus,
	"ruinedfooocus_metadata": EcosystemFooocus,
	"stableswarm_metadata":   EcosystemStableSwarm,
}

// Classify resolves the ecosystem of a keyword/value pair. Unknown keywords
// fall back to sniffing the value; EcosystemUnknown means ignore the chunk.
func Classify(keyword, value string) Ecosystem {
	if eco, ok := keywordTable[strings.ToLower(strings.TrimSpace(keyword))]; ok {
		return eco
	}

	switch {
	case value == "":
		return EcosystemUnknown
	case strings.Contains(value, "parameters"):
		return EcosystemA1111
	case strings.Contains(value, "invokeai_metadata"):
		return EcosystemInvokeAI
	}
	return EcosystemUnknown
}

// Decode runs the decoder for eco over value.
func Decode(eco Ecosystem, value string) Metadata {
	switch eco {
	case EcosystemA1111:
		return DecodeA1111(value)
	case EcosystemInvokeAI, EcosystemNovelAI, EcosystemDream, EcosystemFooocus, EcosystemStableSwarm:
		return DecodeJSON(eco, value)
	case EcosystemEXIF, EcosystemUnknown:
		return Metadata{}
	}
	return Metadata{}
}

// DecodeText decodes a standalone parameters file: JSON first, then the
// A1111 block format.
func DecodeText(value string) (Metadata, Ecosystem) {
	if md, ok := decodeJSONTree([]byte(value)); ok && !md.IsEmpty() {
		return md, EcosystemUnknown
	}
	if md := DecodeA1111(value); !md.IsEmpty() {
		return md, EcosystemA1111
	}
	return Metadata{}, EcosystemUnknown
}
