package tokenizer

import (
	"sort"
	"strings"
	"unicode"
)

// maxEmbeddedValue bounds how far the lexer will wait for a marker's value
// terminator before giving up and treating the spelling as literal text.
// Keeps a never-closed "<channel:..." from swallowing the rest of a stream.
const maxEmbeddedValue = 256

// Marker describes one recognized delimiter spelling.
//
// Three shapes are supported:
//   - bare marker: Prefix only ("<|message|>")
//   - embedded value: Prefix + Suffix ("<channel:" ... ">"), the enclosed
//     text becomes the token value
//   - trailing value: Prefix + TakesValue ("to="), the following run of
//     non-whitespace, non-'<' characters becomes the token value
type Marker struct {
	Kind       Kind   `yaml:"kind"`
	Prefix     string `yaml:"prefix"`
	Suffix     string `yaml:"suffix,omitempty"`
	TakesValue bool   `yaml:"takes_value,omitempty"`
}

// MarkerTable is the set of delimiter spellings the lexer recognizes.
// Recognition is case-sensitive exact match; multiple spellings may map to
// the same kind (e.g. <|end|>, <|return|> and <|call|> all end a message).
type MarkerTable struct {
	markers []Marker
}

// NewMarkerTable builds a table from the given markers. Longer prefixes are
// tried first so overlapping spellings resolve deterministically.
func NewMarkerTable(markers ...Marker) *MarkerTable {
	sorted := make([]Marker, len(markers))
	copy(sorted, markers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &MarkerTable{markers: sorted}
}

// HarmonyTable returns the default table with the Harmony spellings used by
// gpt-oss model output. <|return|> and <|call|> are the Harmony stop tokens
// and close a message the same way <|end|> does.
func HarmonyTable() *MarkerTable {
	return NewMarkerTable(
		Marker{Kind: KindStart, Prefix: "<|start|>"},
		Marker{Kind: KindChannel, Prefix: "<|channel|>"},
		Marker{Kind: KindRecipient, Prefix: "to=", TakesValue: true},
		Marker{Kind: KindContentType, Prefix: "<|constrain|>", TakesValue: true},
		Marker{Kind: KindMessage, Prefix: "<|message|>"},
		Marker{Kind: KindEnd, Prefix: "<|end|>"},
		Marker{Kind: KindEnd, Prefix: "<|return|>"},
		Marker{Kind: KindEnd, Prefix: "<|call|>"},
	)
}

// Detect reports whether s contains any fully spelled structural marker.
// Recipient markers are excluded: "to=" alone is too common in plain prose
// to signal channel-framed content.
func (t *MarkerTable) Detect(s string) bool {
	for _, m := range t.markers {
		if m.Kind == KindRecipient {
			continue
		}
		if strings.Contains(s, m.Prefix) {
			return true
		}
	}
	return false
}

// matchAt attempts to match a marker at the start of s, where s extends to
// the end of the currently visible input. Returns the matched marker, the
// number of bytes consumed and the extracted value. partial is true when s
// ends in the middle of a possible marker and the lexer must hold the bytes
// back until more input arrives.
func (t *MarkerTable) matchAt(s string) (mk *Marker, consumed int, value string, partial bool) {
	for idx := range t.markers {
		m := &t.markers[idx]
		if !strings.HasPrefix(s, m.Prefix) {
			if len(s) < len(m.Prefix) && strings.HasPrefix(m.Prefix, s) {
				partial = true
			}
			continue
		}
		rest := s[len(m.Prefix):]
		if m.Suffix != "" {
			if j := strings.Index(rest, m.Suffix); j >= 0 && j <= maxEmbeddedValue {
				return m, len(m.Prefix) + j + len(m.Suffix), rest[:j], false
			}
			if len(rest) <= maxEmbeddedValue {
				return nil, 0, "", true
			}
			continue // runaway value, fall through to literal
		}
		if m.TakesValue {
			j := 0
			for j < len(rest) && isValueByte(rest[j]) {
				j++
			}
			if j == len(rest) && j <= maxEmbeddedValue {
				return nil, 0, "", true // value may continue in the next chunk
			}
			if j > maxEmbeddedValue {
				continue
			}
			return m, len(m.Prefix) + j, rest[:j], false
		}
		return m, len(m.Prefix), "", false
	}
	return nil, 0, "", partial
}

// isValueByte reports whether b may appear in a trailing marker value,
// mirroring the upstream recipient grammar to=([^<\s]+).
func isValueByte(b byte) bool {
	return b != '<' && b != '>' && !unicode.IsSpace(rune(b))
}
