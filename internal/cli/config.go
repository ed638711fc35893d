package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rootgc/rootgc/pkg/config"
)

type ConfigArgs struct {
	*RootArgs

	ConfigPath string
	Init       bool
	Force      bool
}

func NewConfigArgs(rootArgs *RootArgs) *ConfigArgs {
	return &ConfigArgs{
		RootArgs: rootArgs,
	}
}

func (ca *ConfigArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ca.ConfigPath, "config", "", "Path to the rootgc configuration file")
	cmd.Flags().BoolVar(&ca.Init, "init", false, "Write the default configuration files and exit")
	cmd.Flags().BoolVar(&ca.Force, "force", false, "With --init, back up and replace an existing configuration")
}

func NewConfigCmd(ca *ConfigArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the active configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath := ca.ConfigPath
			if configPath == "" {
				configPath = config.GetPath()
			}

			if ca.Init {
				return config.WriteDefaultConfig(configPath, ca.Force)
			}

			cfg, err := loadConfig(ca.ConfigPath, false)
			if err != nil {
				return err
			}

			out, err := cfg.MarshalYAML()
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), string(out))

			return nil
		},
	}
	ca.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}
