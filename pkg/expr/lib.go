package expr

import (
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Strings(),
		ext.Lists(),

		// Path helper functions.
		// Example: pathBase(path) == "result".
		cel.Function("pathBase",
			cel.Overload("pathBase_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					s, ok := val.Value().(string)
					if !ok {
						return types.NewErr("pathBase: invalid argument")
					}

					return types.String(filepath.Base(s))
				}),
			),
		),
		cel.Function("pathDir",
			cel.Overload("pathDir_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					s, ok := val.Value().(string)
					if !ok {
						return types.NewErr("pathDir: invalid argument")
					}

					return types.String(filepath.Dir(s))
				}),
			),
		),
		cel.Function("pathExt",
			cel.Overload("pathExt_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					s, ok := val.Value().(string)
					if !ok {
						return types.NewErr("pathExt: invalid argument")
					}

					return types.String(filepath.Ext(s))
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return nil
}
