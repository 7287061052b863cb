package investigate

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled boolean expression over listing entries.
//
// Expressions see the variables address, label, location (string), country,
// city, outgoing and listening (bool), e.g.
//
//	outgoing && !label.startsWith("10.")
type Filter struct {
	source  string
	program cel.Program
}

func filterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("address", cel.StringType),
		cel.Variable("label", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("country", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("outgoing", cel.BoolType),
		cel.Variable("listening", cel.BoolType),
	)
}

// CompileFilter parses and type-checks expr.
func CompileFilter(expr string) (*Filter, error) {
	env, err := filterEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create filter environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("invalid filter %q: must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
	}

	return &Filter{source: expr, program: program}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.source
}

// Match evaluates the filter against e.
func (f *Filter) Match(e Entry) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"address":   e.Address,
		"label":     e.Label,
		"location":  e.Location.String(),
		"country":   e.Location.Country,
		"city":      e.Location.City,
		"outgoing":  e.Outgoing,
		"listening": e.Listening(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter %q: %w", f.source, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, not bool", f.source, out.Value())
	}
	return matched, nil
}

// Apply returns the entries matching the filter, preserving order. A nil
// filter keeps everything.
func (f *Filter) Apply(entries []Entry) ([]Entry, error) {
	if f == nil {
		return entries, nil
	}

	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		ok, err := f.Match(e)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, e)
		}
	}
	return kept, nil
}
