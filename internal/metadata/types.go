package metadata

import "fmt"

// Metadata is the canonical generation record. A nil field means the value
// is not known, which is distinct from an empty string.
type Metadata struct {
	Prompt         *string  `json:"prompt,omitempty"`
	NegativePrompt *string  `json:"negativePrompt,omitempty"`
	Steps          *int     `json:"steps,omitempty"`
	Sampler        *string  `json:"sampler,omitempty"`
	CFGScale       *float64 `json:"cfgScale,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	Width          *int     `json:"width,omitempty"`
	Height         *int     `json:"height,omitempty"`
	ModelName      *string  `json:"modelName,omitempty"`
	ModelHash      *string  `json:"modelHash,omitempty"`
}

// IsEmpty reports whether no field is set.
func (m Metadata) IsEmpty() bool {
	return m.Prompt == nil && m.NegativePrompt == nil && m.Steps == nil &&
		m.Sampler == nil && m.CFGScale == nil && m.Seed == nil &&
		m.Width == nil && m.Height == nil && m.ModelName == nil && m.ModelHash == nil
}

// FillFrom copies every field of other that is unset in m. Fields already
// set in m are kept.
func (m *Metadata) FillFrom(other Metadata) {
	fill(&m.Prompt, other.Prompt)
	fill(&m.NegativePrompt, other.NegativePrompt)
	fill(&m.Steps, other.Steps)
	fill(&m.Sampler, other.Sampler)
	fill(&m.CFGScale, other.CFGScale)
	fill(&m.Seed, other.Seed)
	fill(&m.Width, other.Width)
	fill(&m.Height, other.Height)
	fill(&m.ModelName, other.ModelName)
	fill(&m.ModelHash, other.ModelHash)
}

func fill[T any](dst **T, src *T) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

func ptr[T any](v T) *T {
	return &v
}

// Reason explains why a record could not be resolved automatically.
type Reason string

const (
	// ReasonNone is used for successful results.
	ReasonNone Reason = ""
	// ReasonNoMetadataFound means the container was read but nothing matched.
	ReasonNoMetadataFound Reason = "NoMetadataFound"
	// ReasonUnsupportedFormat means the extension is not a metadata container.
	ReasonUnsupportedFormat Reason = "UnsupportedFormat"
	// ReasonFileNotFound means the path does not exist.
	ReasonFileNotFound Reason = "FileNotFound"
	// ReasonExtractionFailed means the file could not be opened or read.
	ReasonExtractionFailed Reason = "ExtractionFailed"
	// ReasonCancelled means the caller's context ended before extraction
	// finished. The result says nothing about the file.
	ReasonCancelled Reason = "Cancelled"
)

// Result is the outcome of extracting one file.
type Result struct {
	Metadata            Metadata  `json:"metadata"`
	Success             bool      `json:"success"`
	RequiresManualEntry bool      `json:"requiresManualEntry"`
	Reason              Reason    `json:"reason,omitempty"`
	Message             string    `json:"message,omitempty"`
	Ecosystem           Ecosystem `json:"ecosystem"`
}

func resolved(md Metadata, eco Ecosystem) Result {
	return Result{Metadata: md, Success: true, Ecosystem: eco}
}

func unresolved(reason Reason, format string, args ...interface{}) Result {
	return Result{
		RequiresManualEntry: true,
		Reason:              reason,
		Message:             fmt.Sprintf(format, args...),
		Ecosystem:           EcosystemUnknown,
	}
}
