package ast

import "github.com/stratlang/stratc/diag"

// Check runs post-parse advisories over the program. Advisories are
// warnings, never errors: an incomplete strategy still compiles, but the
// author is told what the runtime will be missing.
func Check(prog *Program, bag *diag.Bag) {
	for _, s := range prog.Strategies() {
		if !s.HasRules {
			bag.AddWarning(s.Span.Line, s.Span.Column,
				"strategy %q: no trading rules defined", s.Name)
		}
		if !s.HasRisk {
			bag.AddWarning(s.Span.Line, s.Span.Column,
				"strategy %q: no risk management defined", s.Name)
		}
		checkBarScope(s, bag)
		checkDuplicates(s.Risk, "risk limit", bag)
		checkHandlers(s, bag)
	}
}

// checkBarScope warns about name clashes among parameters, indicators, and
// signals. All three live in the scope of the generated bar callback, so a
// clash across sections is as real as one inside a section; the later
// binding wins.
func checkBarScope(s *StrategyDecl, bag *diag.Bag) {
	type nameAt struct {
		what string
		span Span
	}
	seen := map[string]nameAt{}
	record := func(what, name string, span Span) {
		prev, ok := seen[name]
		if !ok {
			seen[name] = nameAt{what, span}
			return
		}
		if prev.what == what {
			bag.AddWarning(span.Line, span.Column,
				"%s %q already defined at %d:%d", what, name, prev.span.Line, prev.span.Column)
			return
		}
		bag.AddWarning(span.Line, span.Column,
			"%s %q shadows the %s of the same name at %d:%d",
			what, name, prev.what, prev.span.Line, prev.span.Column)
	}
	for _, p := range s.Params {
		record("parameter", p.Name, p.Span)
	}
	for _, b := range s.Indicators {
		record("indicator", b.Name, b.Span)
	}
	for _, b := range s.Signals {
		record("signal", b.Name, b.Span)
	}
}

// checkDuplicates warns when a block binds the same name twice; the later
// binding wins at runtime, which is rarely what the author meant.
func checkDuplicates(bindings []*Binding, what string, bag *diag.Bag) {
	seen := make(map[string]Span, len(bindings))
	for _, b := range bindings {
		if prev, ok := seen[b.Name]; ok {
			bag.AddWarning(b.Span.Line, b.Span.Column,
				"%s %q already defined at %d:%d", what, b.Name, prev.Line, prev.Column)
			continue
		}
		seen[b.Name] = b.Span
	}
}

// checkHandlers warns when a strategy declares the same lifecycle handler
// twice. Only one method per callback exists in the output, and the last
// handler written is the one emitted.
func checkHandlers(s *StrategyDecl, bag *diag.Bag) {
	seen := map[HandlerKind]Span{}
	for _, h := range s.Handlers {
		if prev, ok := seen[h.Kind]; ok {
			bag.AddWarning(h.Span.Line, h.Span.Column,
				"handler \"on %s\" already defined at %d:%d; the earlier body is dropped",
				h.Kind, prev.Line, prev.Column)
			continue
		}
		seen[h.Kind] = h.Span
	}
}
