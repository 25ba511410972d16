// Package sourcemap builds a Source Map V3 JSON document from an
// append-only table of {sourceLine, sourceCol, outputLine, outputCol}
// tuples recorded during lowering.
package sourcemap

import (
	"encoding/json"
	"strings"
)

// Entry is one recorded mapping, all fields 0-based per the V3 spec.
type Entry struct {
	SourceLine int
	SourceCol  int
	OutputLine int
	OutputCol  int
}

// Builder accumulates Entry values during emission and flushes them into a
// V3 map at file finalization.
type Builder struct {
	File     string
	Source   string
	Entries  []Entry
	lastLine int // last OutputLine an entry was recorded for

	// SourcesContent holds the original file bytes, populated by the build
	// orchestrator so "sourcesContent" round-trips the source verbatim
	// (spec.md §4.6/§6); left empty, it's simply omitted from the JSON.
	SourcesContent string
}

// New returns a Builder for the generated file named outFile, whose content
// originated from sourceFile.
func New(outFile, sourceFile string) *Builder {
	return &Builder{File: outFile, Source: sourceFile, lastLine: -1}
}

// Record appends a mapping. Callers record one entry per emitted statement,
// before producing its text, per the lifecycle spec.md describes.
func (b *Builder) Record(sourceLine, sourceCol, outputLine, outputCol int) {
	b.Entries = append(b.Entries, Entry{
		SourceLine: sourceLine,
		SourceCol:  sourceCol,
		OutputLine: outputLine,
		OutputCol:  outputCol,
	})
	b.lastLine = outputLine
}

// v3Map is the on-the-wire shape of a Source Map V3 document.
type v3Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
}

// JSON renders the accumulated entries as a V3 source map document.
func (b *Builder) JSON() ([]byte, error) {
	m := v3Map{
		Version:  3,
		File:     b.File,
		Sources:  []string{b.Source},
		Names:    nil,
		Mappings: b.encodeMappings(),
	}
	if b.SourcesContent != "" {
		m.SourcesContent = []string{b.SourcesContent}
	}
	return json.Marshal(m)
}

// encodeMappings walks Entries grouped by OutputLine and produces the
// semicolon/comma VLQ "mappings" string. Every segment here is 4 fields
// (no names table is populated, so the 5th field is never emitted):
// [outputCol, sourceIndex, sourceLine, sourceCol].
func (b *Builder) encodeMappings() string {
	if len(b.Entries) == 0 {
		return ""
	}

	byLine := make(map[int][]Entry)
	maxLine := 0
	for _, e := range b.Entries {
		byLine[e.OutputLine] = append(byLine[e.OutputLine], e)
		if e.OutputLine > maxLine {
			maxLine = e.OutputLine
		}
	}

	var out strings.Builder
	prevSourceLine, prevSourceCol := 0, 0

	for line := 0; line <= maxLine; line++ {
		if line > 0 {
			out.WriteByte(';')
		}
		entries := byLine[line]
		prevOutputCol := 0
		for i, e := range entries {
			if i > 0 {
				out.WriteByte(',')
			}
			out.WriteString(encodeVLQ(e.OutputCol - prevOutputCol))
			out.WriteString(encodeVLQ(0)) // sourceIndex, always the single source
			out.WriteString(encodeVLQ(e.SourceLine - prevSourceLine))
			out.WriteString(encodeVLQ(e.SourceCol - prevSourceCol))
			prevOutputCol = e.OutputCol
			prevSourceLine = e.SourceLine
			prevSourceCol = e.SourceCol
		}
	}
	return out.String()
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// encodeVLQ encodes a signed integer as Base64-VLQ, the format Source Map
// V3 "mappings" segments use: the sign occupies the low bit, then 5 bits
// per Base64 digit, continuation marked by the digit's high bit.
func encodeVLQ(n int) string {
	var value uint32
	if n < 0 {
		value = uint32(-n)<<1 | 1
	} else {
		value = uint32(n) << 1
	}

	var out strings.Builder
	for {
		digit := value & 0x1f
		value >>= 5
		if value > 0 {
			digit |= 0x20
		}
		out.WriteByte(base64Chars[digit])
		if value == 0 {
			break
		}
	}
	return out.String()
}
