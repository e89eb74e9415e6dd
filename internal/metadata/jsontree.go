package metadata

import (
	"math"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// Key spellings accepted by the JSON decoder, in precedence order.
var (
	jsonPromptKeys   = []string{"prompt"}
	jsonNegativeKeys = []string{"negative_prompt", "negative"}
	jsonModelKeys    = []string{"model", "model_name"}
	jsonSamplerKeys  = []string{"sampler", "sampler_name"}
	jsonStepsKeys    = []string{"steps"}
	jsonCFGKeys      = []string{"cfg_scale", "cfg"}
	jsonSeedKeys     = []string{"seed"}
	jsonWidthKeys    = []string{"width"}
	jsonHeightKeys   = []string{"height"}
	jsonHashKeys     = []string{"model_hash", "hash"}

	// Nested objects searched after the current level, in this order.
	jsonNestedKeys = []string{"metadata", "generation_metadata", "image_metadata"}
)

// maxJSONDepth bounds recursion into nested metadata objects.
const maxJSONDepth = 16

type jsonField struct {
	value []byte
	typ   jsonparser.ValueType
}

// DecodeJSON decodes the JSON payloads of the InvokeAI, NovelAI, Dream,
// Fooocus and StableSwarm ecosystems. Fields found at an outer level win
// over the same field in a nested metadata object.
//
// A payload that is not a JSON object yields only ModelName set to the
// ecosystem's display name, which is also the fallback model name for
// valid documents that do not name one.
func DecodeJSON(eco Ecosystem, value string) Metadata {
	md, ok := decodeJSONTree([]byte(strings.TrimSpace(value)))
	if !ok {
		return Metadata{ModelName: ptr(eco.DisplayName())}
	}
	if md.ModelName == nil {
		md.ModelName = ptr(eco.DisplayName())
	}
	return md
}

// decodeJSONTree walks a JSON object. ok is false if data is not an object.
func decodeJSONTree(data []byte) (Metadata, bool) {
	var md Metadata
	if err := walkJSON(data, &md, 0); err != nil {
		return Metadata{}, false
	}
	return md, true
}

func walkJSON(data []byte, md *Metadata, depth int) error {
	fields := make(map[string]jsonField)
	err := jsonparser.ObjectEach(data, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		k := string(key)
		if _, seen := fields[k]; !seen {
			fields[k] = jsonField{value: value, typ: typ}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fill(&md.Prompt, jsonString(fields, jsonPromptKeys))
	fill(&md.NegativePrompt, jsonString(fields, jsonNegativeKeys))
	fill(&md.ModelName, jsonString(fields, jsonModelKeys))
	fill(&md.Sampler, jsonString(fields, jsonSamplerKeys))
	fill(&md.Steps, jsonInt(fields, jsonStepsKeys))
	fill(&md.CFGScale, jsonFloat(fields, jsonCFGKeys))
	fill(&md.Seed, jsonInt64(fields, jsonSeedKeys))
	fill(&md.Width, jsonInt(fields, jsonWidthKeys))
	fill(&md.Height, jsonInt(fields, jsonHeightKeys))
	fill(&md.ModelHash, jsonString(fields, jsonHashKeys))

	if depth >= maxJSONDepth {
		return nil
	}
	for _, key := range jsonNestedKeys {
		f, ok := fields[key]
		if !ok || f.typ != jsonparser.Object {
			continue
		}
		// A malformed nested object does not discard what the outer level found.
		_ = walkJSON(f.value, md, depth+1)
	}
	return nil
}

func jsonString(fields map[string]jsonField, keys []string) *string {
	for _, k := range keys {
		f, ok := fields[k]
		if !ok || f.typ != jsonparser.String {
			continue
		}
		s, err := jsonparser.ParseString(f.value)
		if err != nil {
			continue
		}
		if p := nonEmpty(s); p != nil {
			return p
		}
	}
	return nil
}

// jsonNumber reads a number, also accepting numeric strings such as the
// quoted seeds some generators write.
func jsonNumber(fields map[string]jsonField, keys []string) (float64, string, bool) {
	for _, k := range keys {
		f, ok := fields[k]
		if !ok {
			continue
		}
		var raw string
		switch f.typ {
		case jsonparser.Number:
			raw = string(f.value)
		case jsonparser.String:
			s, err := jsonparser.ParseString(f.value)
			if err != nil {
				continue
			}
			raw = strings.TrimSpace(s)
		default:
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		return v, raw, true
	}
	return 0, "", false
}

func jsonFloat(fields map[string]jsonField, keys []string) *float64 {
	v, _, ok := jsonNumber(fields, keys)
	if !ok {
		return nil
	}
	return &v
}

func jsonInt64(fields map[string]jsonField, keys []string) *int64 {
	v, raw, ok := jsonNumber(fields, keys)
	if !ok {
		return nil
	}
	// Parse the literal first so 64-bit seeds keep full precision.
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &n
	}
	if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
		return nil
	}
	n := int64(v)
	return &n
}

func jsonInt(fields map[string]jsonField, keys []string) *int {
	n := jsonInt64(fields, keys)
	if n == nil || *n > math.MaxInt32 || *n < math.MinInt32 {
		return nil
	}
	v := int(*n)
	return &v
}
