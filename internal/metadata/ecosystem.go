package metadata

import (
	"encoding"
	"fmt"
)

// Ecosystem identifies the generator family that wrote a metadata payload.
// It is a closed set; Decode switches over it exhaustively.
type Ecosystem int

const (
	EcosystemUnknown Ecosystem = iota
	EcosystemA1111
	EcosystemInvokeAI
	EcosystemNovelAI
	EcosystemDream
	EcosystemFooocus
	EcosystemStableSwarm
	// EcosystemEXIF marks records recovered only from generic EXIF tags.
	EcosystemEXIF
)

var ecosystemNames = [...]struct{ slug, display string }{
	EcosystemUnknown:     {"unknown", "Unknown"},
	EcosystemA1111:       {"a1111", "Automatic1111"},
	EcosystemInvokeAI:    {"invokeai", "InvokeAI"},
	EcosystemNovelAI:     {"novelai", "NovelAI"},
	EcosystemDream:       {"dream", "Dream"},
	EcosystemFooocus:     {"fooocus", "Fooocus"},
	EcosystemStableSwarm: {"stableswarm", "Stable Swarm"},
	EcosystemEXIF:        {"exif", "EXIF"},
}

func (e Ecosystem) valid() bool {
	return e >= 0 && int(e) < len(ecosystemNames)
}

// String returns the stable lowercase identifier used in storage and metrics.
func (e Ecosystem) String() string {
	if !e.valid() {
		return fmt.Sprintf("ecosystem(%d)", int(e))
	}
	return ecosystemNames[e].slug
}

// DisplayName returns the human-facing generator name. JSON decoders fall
// back to it as the model name.
func (e Ecosystem) DisplayName() string {
	if !e.valid() {
		return "Unknown"
	}
	return ecosystemNames[e].display
}

// UsesJSON reports whether payloads of this ecosystem are JSON documents.
func (e Ecosystem) UsesJSON() bool {
	switch e {
	case EcosystemInvokeAI, EcosystemNovelAI, EcosystemDream, EcosystemFooocus, EcosystemStableSwarm:
		return true
	}
	return false
}

// ParseEcosystem is the inverse of String.
func ParseEcosystem(s string) (Ecosystem, error) {
	for i, n := range ecosystemNames {
		if n.slug == s {
			return Ecosystem(i), nil
		}
	}
	return EcosystemUnknown, fmt.Errorf("unknown ecosystem %q", s)
}

var (
	_ encoding.TextMarshaler   = Ecosystem(0)
	_ encoding.TextUnmarshaler = (*Ecosystem)(nil)
)

// MarshalText encodes the ecosystem as its identifier.
func (e Ecosystem) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an identifier produced by MarshalText.
func (e *Ecosystem) UnmarshalText(b []byte) error {
	v, err := ParseEcosystem(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
