package condition

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Condition is a compiled CEL expression gating a change. Expressions see the
// merged environment variables under the `vars` identifier, e.g.
//
//	condition: vars.env == "prd"
//
// A change whose condition evaluates to false is skipped for the run.
type Condition struct {
	expr string
	prg  cel.Program
}

var env *cel.Env

func init() {
	var err error
	env, err = cel.NewEnv(
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to build CEL environment: %v", err))
	}
}

// Compile parses and type-checks the expression. The result must be boolean.
func Compile(expr string) (*Condition, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile condition %q: %w", expr, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build condition program %q: %w", expr, err)
	}

	return &Condition{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (c *Condition) String() string { return c.expr }

// Eval evaluates the condition against the variables map.
func (c *Condition) Eval(vars map[string]any) (bool, error) {
	out, _, err := c.prg.Eval(map[string]any{"vars": vars})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", c.expr, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not produce a bool", c.expr)
	}
	return result, nil
}
