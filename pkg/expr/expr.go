package expr

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Protect CEL environment creation and compilation from concurrent access.
var celMutex sync.Mutex

// Environment provides a thread-safe wrapper around a [*cel.Env].
type Environment struct {
	env *cel.Env
}

// NewEnvironment creates a new [Environment]. The environment declares two
// string variables:
//   - `path`: the target path of the GC root
//   - `gcRoot`: the path of the GC-root symlink itself
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	env, err := createEnvironment(opts...)
	if err != nil {
		return nil, err
	}

	return &Environment{env: env}, nil
}

// MustNewEnvironment creates a new [Environment] and panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

func createEnvironment(opts ...cel.EnvOption) (*cel.Env, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	opts = append(opts,
		cel.Variable("path", cel.StringType),
		cel.Variable("gcRoot", cel.StringType),
		cel.Lib(&lib{}),
	)

	celEnv, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return celEnv, nil
}

// Compile compiles a CEL expression into a [*Program].
func (e *Environment) Compile(expression string) (*Program, error) {
	celMutex.Lock()
	defer celMutex.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return &Program{
		prg:        prg,
		Expression: expression,
	}, nil
}

// Program is a compiled match expression.
type Program struct {
	prg cel.Program

	Expression string
}

// Compile compiles expression in a default [Environment].
func Compile(expression string) (*Program, error) {
	env, err := NewEnvironment()
	if err != nil {
		return nil, err
	}

	return env.Compile(expression)
}

// Match evaluates the program against one GC root. Evaluation failures and
// non-boolean results are treated as a non-match.
func (p *Program) Match(path, gcRoot string) bool {
	result, _, err := p.prg.Eval(map[string]any{
		"path":   path,
		"gcRoot": gcRoot,
	})
	if err != nil {
		return false
	}

	boolVal, ok := result.Value().(bool)

	return ok && boolVal
}
