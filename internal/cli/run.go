package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rootgc/rootgc/pkg/config"
	"github.com/rootgc/rootgc/pkg/run"
)

const cmdExamples = `  # Preview what a run would remove:
  rootgc --dry-run

  # Remove expired roots without confirmation:
  rootgc --no-prompt

  # Confirm every removal individually:
  rootgc -i

  # Collect the removed paths, null-delimited:
  rootgc --no-prompt -o removed.list -0

  # Reset the retention clock of the roots under a project:
  rootgc touch ~/src/project`

type RunArgs struct {
	*RootArgs

	ConfigPath      string
	Interactive     string
	OutputPath      string
	OutputDelimiter string

	NoPrompt            bool
	DryRun              bool
	NullOutputDelimiter bool
	OutputUnbuffered    bool
	NoStatistics        bool
	WriteConfig         bool
}

func NewRunArgs(rootArgs *RootArgs) *RunArgs {
	return &RunArgs{
		RootArgs: rootArgs,
	}
}

func (ra *RunArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ra.ConfigPath, "config", "", "Path to the rootgc configuration file")
	cmd.Flags().StringVarP(&ra.Interactive, "interactive", "i", string(run.InteractiveOnce),
		"Confirmation mode, one of: [never, once, always]")
	cmd.Flags().BoolVar(&ra.NoPrompt, "no-prompt", false, "Never ask for confirmation, shorthand for --interactive=never")
	cmd.Flags().BoolVarP(&ra.DryRun, "dry-run", "n", false, "Report removals without performing them")
	cmd.Flags().StringVarP(&ra.OutputPath, "output", "o", "", "Write removed paths to a file, or to stdout with `-`")
	cmd.Flags().StringVar(&ra.OutputDelimiter, "output-delimiter", "\n", "Delimiter between removed paths")
	cmd.Flags().BoolVarP(&ra.NullOutputDelimiter, "null-output-delimiter", "0",
		false, "Delimit removed paths with NUL, shorthand for --output-delimiter=$'\\0'")
	cmd.Flags().BoolVar(&ra.OutputUnbuffered, "output-unbuffered", false, "Do not buffer the output stream")
	cmd.Flags().BoolVar(&ra.NoStatistics, "no-statistics", false, "Do not print the statistics block")
	cmd.Flags().BoolVar(&ra.WriteConfig, "write-config", false, "Write the default configuration files and exit")

	// A bare -i means "confirm everything".
	cmd.Flags().Lookup("interactive").NoOptDefVal = string(run.InteractiveAlways)

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	err = cmd.RegisterFlagCompletionFunc("interactive",
		cobra.FixedCompletions(
			[]string{
				string(run.InteractiveNever),
				string(run.InteractiveOnce),
				string(run.InteractiveAlways),
			},
			cobra.ShellCompDirectiveNoFileComp,
		),
	)
	if err != nil {
		panic(err)
	}
}

func NewRunCmd(ra *RunArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Remove expired GC roots, the default command",
		Example: cmdExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, ra)
		},
	}
	ra.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runRun(cmd *cobra.Command, ra *RunArgs) error {
	cfg, err := loadConfig(ra.ConfigPath, ra.WriteConfig)
	if err != nil {
		return err
	}
	if cfg == nil {
		// Exit early after writing the default config.
		return nil
	}

	opts, err := ra.runOptions()
	if err != nil {
		return err
	}

	engine, err := run.New(cfg, opts, run.WithStderr(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	err = engine.Run(cmd.Context())
	if err != nil {
		return err
	}

	return engine.Finish()
}

func (ra *RunArgs) runOptions() (run.Options, error) {
	interactive, err := run.ParseInteractive(ra.Interactive)
	if err != nil {
		return run.Options{}, err
	}

	if ra.NoPrompt {
		interactive = run.InteractiveNever
	}

	delimiter := ra.OutputDelimiter
	if ra.NullOutputDelimiter {
		delimiter = "\x00"
	}

	return run.Options{
		Interactive:      interactive,
		DryRun:           ra.DryRun,
		OutputPath:       ra.OutputPath,
		OutputDelimiter:  delimiter,
		OutputUnbuffered: ra.OutputUnbuffered,
		NoStatistics:     ra.NoStatistics,
	}, nil
}

// loadConfig reads the active configuration, writing the defaults first so a
// fresh install has something to edit. A nil config with a nil error means
// the caller should exit after --write-config.
func loadConfig(configPath string, writeConfig bool) (*config.Config, error) {
	cfg := config.NewConfig()

	if configPath == "" {
		configPath = config.GetPath()
	}

	err := config.WriteDefaultConfig(configPath, false)
	if err != nil {
		slog.Error("write default config", slog.Any("err", err))
	}
	if writeConfig {
		// Exit early after writing the default config.
		// Also, if there was an error, it should be fatal.
		return nil, err
	}

	cl, err := config.NewConfigLoaderFromFile(configPath)
	if err != nil {
		slog.Warn("could not read config, using defaults", slog.Any("err", err))

		return cfg, nil
	}

	err = cl.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", configPath, err)
	}

	cfg, err = cl.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", configPath, err)
	}

	return cfg, nil
}
