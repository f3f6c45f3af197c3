package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmdmdm-nz/keventd/pkg/version"
)

// RunFunc starts the daemon with the resolved configuration.
type RunFunc func(cmd *cobra.Command, cfg *Config) error

// NewRootCommand builds the keventd command line. Flags set explicitly on the
// command line override values read from --config.
func NewRootCommand(run RunFunc) *cobra.Command {
	var (
		configPath string
		flags      = DefaultConfig
	)

	root := &cobra.Command{
		Use:           "keventd",
		Short:         "Listen for kernel uevents and routing changes over netlink.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultConfig
			if configPath != "" {
				fileCfg, err := ReadConf(configPath)
				if err != nil {
					return err
				}
				cfg = *fileCfg
			}

			f := cmd.Flags()
			if f.Changed("host") {
				cfg.Host = flags.Host
			}
			if f.Changed("port") {
				cfg.Port = flags.Port
			}
			if f.Changed("log-level") {
				cfg.LogLevel = flags.LogLevel
			}
			if f.Changed("protocols") {
				cfg.Protocols = flags.Protocols
			}
			if f.Changed("resolve-links") {
				cfg.ResolveLinks = flags.ResolveLinks
			}

			if _, err := cfg.ProtocolSet(); err != nil {
				return err
			}
			return run(cmd, &cfg)
		},
	}

	f := root.Flags()
	f.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	f.StringVar(&flags.Host, "host", DefaultConfig.Host, "Host to bind the API to")
	f.IntVar(&flags.Port, "port", DefaultConfig.Port, "Port to bind the API to")
	f.StringVar(&flags.LogLevel, "log-level", DefaultConfig.LogLevel, "Log level (trace, debug, info, warn, error)")
	f.StringVar(&flags.Protocols, "protocols", DefaultConfig.Protocols, "Netlink protocols to listen on (route, uevent, all, none)")
	f.BoolVar(&flags.ResolveLinks, "resolve-links", DefaultConfig.ResolveLinks, "Resolve interface names for route changes")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	})

	return root
}
