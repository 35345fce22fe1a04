package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigShowResult is the JSON payload of config show.
type ConfigShowResult struct {
	Source string  `json:"source,omitempty"`
	Config *Config `json:"config"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the effective configuration after merging defaults, config file, and NAVEX_* environment variables.`,
		Example: `  # Show effective configuration
  navex config show

  # Show configuration with source file path
  navex config show --source`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			cfg, err := rootOpts.Config()
			if err != nil {
				return WrapExitError(ExitCommandError, "loading configuration", err)
			}

			if formatter.IsJSON() {
				return formatter.Success(ConfigShowResult{Source: rootOpts.configFile, Config: cfg})
			}

			w := formatter.Writer
			if showSource {
				if rootOpts.configFile != "" {
					fmt.Fprintf(w, "Config file: %s\n\n", rootOpts.configFile)
				} else {
					fmt.Fprintln(w, "Config file: (none, using defaults)")
					fmt.Fprintln(w)
				}
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(w, string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "show config file source")
	return cmd
}
