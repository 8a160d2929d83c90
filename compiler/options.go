package compiler

import "fmt"

// Dialect selects the flavor of the emitted JavaScript.
type Dialect string

const (
	// DialectES2022 emits an ES module with export statements. Default.
	DialectES2022 Dialect = "es2022"
	// DialectCommonJS emits require/module.exports wiring instead.
	DialectCommonJS Dialect = "commonjs"
)

// OptLevel governs elision of provably-redundant emitted constructs.
type OptLevel int

const (
	// OptNone emits every construct as written.
	OptNone OptLevel = iota
	// OptBasic folds constant rule guards: a literal-true condition loses
	// its if wrapper, a literal-false rule is dropped entirely.
	OptBasic
	// OptAggressive additionally skips runtime publication (setIndicator/
	// setSignal) for bindings nothing in the strategy references. The
	// binding computation itself is kept.
	OptAggressive
)

func (o OptLevel) String() string {
	switch o {
	case OptNone:
		return "none"
	case OptBasic:
		return "basic"
	case OptAggressive:
		return "aggressive"
	}
	return fmt.Sprintf("optlevel(%d)", int(o))
}

// ParseOptLevel converts a config/CLI string to an OptLevel.
func ParseOptLevel(s string) (OptLevel, error) {
	switch s {
	case "", "none":
		return OptNone, nil
	case "basic":
		return OptBasic, nil
	case "aggressive":
		return OptAggressive, nil
	}
	return OptNone, fmt.Errorf("unknown optimization level %q", s)
}

// Options configures one compile. The zero value is usable: ES2022 output,
// no runtime checks, no optimization, no source map, cache off.
type Options struct {
	// Dialect is the target output dialect.
	Dialect Dialect
	// RuntimeChecks adds typeof guards on order quantities and prices in
	// the emitted code.
	RuntimeChecks bool
	// Optimize is the optimization level.
	Optimize OptLevel
	// SourceMap requests a JSON source map alongside the code.
	SourceMap bool
	// Cache enables the content-addressed object cache.
	Cache bool
	// CacheDir overrides the cache location; empty means the user cache
	// directory.
	CacheDir string
}

func (o Options) withDefaults() Options {
	if o.Dialect == "" {
		o.Dialect = DialectES2022
	}
	return o
}

// keyString renders every output-affecting option into a canonical form
// for cache keying. CacheDir and Cache itself do not affect output and are
// excluded, so moving the cache does not invalidate it.
func (o Options) keyString() string {
	return fmt.Sprintf("dialect=%s;checks=%t;opt=%s;srcmap=%t",
		o.Dialect, o.RuntimeChecks, o.Optimize, o.SourceMap)
}
