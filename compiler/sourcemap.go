package compiler

import (
	"encoding/json"

	"github.com/stratlang/stratc/ast"
)

// sourceMap correlates positions in the generated output with positions in
// the input source. The format is plain JSON with explicit line/column
// pairs; mappings are appended in emission order, which is output order,
// so serialization is deterministic.
type sourceMap struct {
	Version  int       `json:"version"`
	File     string    `json:"file"`
	Mappings []mapping `json:"mappings"`
}

type mapping struct {
	GenLine int `json:"genLine"`
	GenCol  int `json:"genCol"`
	SrcLine int `json:"srcLine"`
	SrcCol  int `json:"srcCol"`
}

func newSourceMap(file string) *sourceMap {
	return &sourceMap{Version: 1, File: file, Mappings: []mapping{}}
}

// add records that output (genLine, genCol) corresponds to the start of span.
func (m *sourceMap) add(genLine, genCol int, span ast.Span) {
	if m == nil {
		return
	}
	m.Mappings = append(m.Mappings, mapping{
		GenLine: genLine,
		GenCol:  genCol,
		SrcLine: span.Line,
		SrcCol:  span.Column,
	})
}

func (m *sourceMap) marshal() ([]byte, error) {
	return json.Marshal(m)
}
