// Package compiler drives the full pipeline: lexing, parsing, lowering to
// the typed AST, semantic checks, and JavaScript code generation, with an
// optional content-addressed object cache in front of it all.
package compiler

import (
	"github.com/stratlang/stratc/ast"
	"github.com/stratlang/stratc/diag"
	"github.com/stratlang/stratc/lexer"
	"github.com/stratlang/stratc/parser"
)

// Stats counts the work one Compiler instance has performed. Cache hits
// skip the lex/parse/generate counters entirely.
type Stats struct {
	Lexes     int
	Parses    int
	Generates int
	CacheHits int
}

// Compiler turns strategy source into JavaScript. A single instance is
// reusable across files; Stats accumulate over its lifetime.
type Compiler struct {
	Options Options
	Stats   Stats
}

// New returns a Compiler with opts normalized to usable defaults.
func New(opts Options) *Compiler {
	return &Compiler{Options: opts.withDefaults()}
}

// Result is the outcome of one Compile call. Code is empty whenever the
// diagnostics contain errors: broken input never produces partial output.
type Result struct {
	Code        string
	SourceMap   []byte // nil unless Options.SourceMap
	Program     *ast.Program
	Diagnostics *diag.Bag
	CacheHit    bool
}

// Compile compiles source, using name in diagnostics and the generated
// header. The returned error covers only internal failures; user-facing
// problems land in Result.Diagnostics.
func (c *Compiler) Compile(source, name string) (*Result, error) {
	bag := diag.NewBag(name, source)
	res := &Result{Diagnostics: bag}

	var cacheDir, cacheKey string
	if c.Options.Cache {
		dir, err := objCacheDir(c.Options.CacheDir)
		if err == nil {
			cacheDir = dir
			cacheKey = objCacheKey(name, source, c.Options)
			if entry, ok := objCacheLookup(cacheDir, cacheKey); ok {
				c.Stats.CacheHits++
				for _, w := range entry.Warnings {
					bag.Add(w)
				}
				res.Code = entry.Code
				res.SourceMap = entry.SourceMap
				res.CacheHit = true
				return res, nil
			}
		}
	}

	c.Stats.Lexes++
	tokens := lexer.New(source, bag).Tokenize()
	c.Stats.Parses++
	file := parser.Parse(tokens, bag)
	if bag.HasErrors() {
		return res, nil
	}

	prog, err := ast.Build(file, name)
	if err != nil {
		return nil, err
	}
	res.Program = prog
	ast.Check(prog, bag)
	if bag.HasErrors() {
		return res, nil
	}

	c.Stats.Generates++
	code, sm, err := generate(prog, name, c.Options)
	if err != nil {
		return nil, err
	}
	res.Code = code
	if sm != nil {
		data, err := sm.marshal()
		if err != nil {
			return nil, err
		}
		res.SourceMap = data
	}

	if c.Options.Cache && cacheDir != "" {
		objCacheStore(cacheDir, cacheKey, &cacheEntry{
			Code:      res.Code,
			SourceMap: res.SourceMap,
			Warnings:  bag.Warnings(),
		})
	}
	return res, nil
}

// ParseWithDiagnostics runs the front half of the pipeline only: lex, parse,
// lower, check. The program is nil whenever the bag holds errors. Editor
// tooling uses this to surface diagnostics without generating code.
func (c *Compiler) ParseWithDiagnostics(source, name string) (*ast.Program, *diag.Bag) {
	bag := diag.NewBag(name, source)
	c.Stats.Lexes++
	tokens := lexer.New(source, bag).Tokenize()
	c.Stats.Parses++
	file := parser.Parse(tokens, bag)
	if bag.HasErrors() {
		return nil, bag
	}
	prog, err := ast.Build(file, name)
	if err != nil {
		bag.AddParse(0, 0, "", "%s", err.Error())
		return nil, bag
	}
	ast.Check(prog, bag)
	return prog, bag
}
