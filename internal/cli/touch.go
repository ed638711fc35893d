package cli

import (
	"github.com/spf13/cobra"

	"github.com/rootgc/rootgc/pkg/touch"
)

type TouchArgs struct {
	*RootArgs

	ConfigPath string
	MaxDepth   int
	NoRecurse  bool
	DryRun     bool
	Silent     bool
}

func NewTouchArgs(rootArgs *RootArgs) *TouchArgs {
	return &TouchArgs{
		RootArgs: rootArgs,
	}
}

func (ta *TouchArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ta.ConfigPath, "config", "", "Path to the rootgc configuration file")
	cmd.Flags().IntVar(&ta.MaxDepth, "max-depth", 0, "Bound the directory recursion, 0 means unbounded")
	cmd.Flags().BoolVar(&ta.NoRecurse, "no-recurse", false, "Process only the immediate entries of the path")
	cmd.Flags().BoolVarP(&ta.DryRun, "dry-run", "n", false, "Report what would be touched without modifying anything")
	cmd.Flags().BoolVarP(&ta.Silent, "silent", "s", false, "Do not report touched paths")
}

func NewTouchCmd(ta *TouchArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "touch <path>",
		Short: "Refresh the modification time of root symlinks under a path",
		Long: `Refresh the modification time of every symlink under the given path that
resolves into the store, resetting the retention clock of age-based
policies. Regular files and foreign symlinks are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(ta.ConfigPath, false)
			if err != nil {
				return err
			}

			t := touch.New(cfg.Store, touch.Options{
				Path:      args[0],
				MaxDepth:  ta.MaxDepth,
				NoRecurse: ta.NoRecurse,
				DryRun:    ta.DryRun,
				Silent:    ta.Silent,
			}, cmd.ErrOrStderr())

			return t.Touch()
		},
	}
	ta.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}
