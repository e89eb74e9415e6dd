package metadata

import (
	"regexp"
	"strconv"
	"strings"
)

// a1111End terminates a free-text value: a comma, a newline, the next
// known key, or the end of input. Some writers separate pairs with spaces
// only.
const a1111End = `\s*(?:,|\n|\s(?:Steps|Sampler|CFG scale|Seed|Size|Model(?: hash)?):|\z)`

var (
	a1111Prefix   = regexp.MustCompile(`(?s)parameters:(.*?)(?:\r\n\r\n|\z)`)
	a1111Prompt   = regexp.MustCompile(`(?s)^(.*?)(?:Negative prompt:|Steps:|\z)`)
	a1111Negative = regexp.MustCompile(`(?s)Negative prompt:(.*?)(?:Steps:|\z)`)
	a1111Steps    = regexp.MustCompile(`Steps:\s*(\d+)`)
	a1111Sampler  = regexp.MustCompile(`Sampler:\s*(.+?)` + a1111End)
	a1111CFG      = regexp.MustCompile(`CFG scale:\s*([\d.]+)`)
	a1111Seed     = regexp.MustCompile(`Seed:\s*(\d+)`)
	a1111Size     = regexp.MustCompile(`Size:\s*(\d+)x(\d+)`)
	a1111Model    = regexp.MustCompile(`Model:\s*(.+?)` + a1111End)
	a1111Hash     = regexp.MustCompile(`Model hash:\s*([0-9A-Fa-f]+)`)
)

// DecodeA1111 parses the A1111 parameters block:
//
//	<prompt>
//	Negative prompt: <negative>
//	Steps: 20, Sampler: Euler a, CFG scale: 7, Seed: 42, Size: 512x512, Model: demo
//
// Every field is optional. A missing marker or a malformed number leaves
// that field unset; the decoder never fails.
func DecodeA1111(value string) Metadata {
	text := value
	if m := a1111Prefix.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)

	var md Metadata

	if m := a1111Prompt.FindStringSubmatch(text); m != nil {
		md.Prompt = nonEmpty(m[1])
	}
	if m := a1111Negative.FindStringSubmatch(text); m != nil {
		md.NegativePrompt = nonEmpty(m[1])
	}
	if m := a1111Steps.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			md.Steps = &n
		}
	}
	if m := a1111Sampler.FindStringSubmatch(text); m != nil {
		md.Sampler = nonEmpty(m[1])
	}
	if m := a1111CFG.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			md.CFGScale = &f
		}
	}
	if m := a1111Seed.FindStringSubmatch(text); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			md.Seed = &n
		}
	}
	if m := a1111Size.FindStringSubmatch(text); m != nil {
		w, werr := strconv.Atoi(m[1])
		h, herr := strconv.Atoi(m[2])
		if werr == nil && herr == nil {
			md.Width, md.Height = &w, &h
		}
	}
	if m := a1111Model.FindStringSubmatch(text); m != nil {
		md.ModelName = nonEmpty(m[1])
	}
	if m := a1111Hash.FindStringSubmatch(text); m != nil {
		md.ModelHash = ptr(strings.ToLower(m[1]))
	}

	return md
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
