// Package cli wires the replink command tree: discover a server's port,
// evaluate code against it, and probe its capabilities.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhubert/replink/config"
	"github.com/zhubert/replink/discovery"
	"github.com/zhubert/replink/logger"
	"github.com/zhubert/replink/nrepl"
)

var (
	projectDir string
	flagPort   int
	flagHost   string
	debug      bool

	cfg *config.Config
)

// Execute is the entry point for the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd wires the cobra tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "replink",
		Short:         "Launch, discover, and evaluate against nREPL servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if projectDir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				projectDir = wd
			}
			c, err := config.Load(projectDir)
			if err != nil {
				return err
			}
			if c.Project == "" {
				c.Project = projectDir
			}
			cfg = c
			if debug || cfg.Debug {
				logger.SetDebug(true)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&projectDir, "project", "", "Project directory (default: current directory)")
	root.PersistentFlags().IntVar(&flagPort, "port", 0, "Connect to this port, skipping discovery")
	root.PersistentFlags().StringVar(&flagHost, "host", "", "Server host (default: localhost)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newDiscoverCmd(),
		newEvalCmd(),
		newDescribeCmd(),
		newSessionsCmd(),
	)
	return root
}

// discoveryOptions builds the discovery request from config and flags. Flags
// win over the config file.
func discoveryOptions() discovery.Options {
	opts := discovery.Options{
		Port:         cfg.Port,
		StartCommand: cfg.StartCommand,
		ParseStdout:  cfg.ParseStdout,
		UsePortFile:  cfg.PortFile,
		Dir:          cfg.Project,
		Timeout:      cfg.StartTimeout(),
		PortFile:     func() string { return cfg.SentinelPath() },
	}
	if flagPort != 0 {
		opts.Port = flagPort
	}
	return opts
}

func serverHost() string {
	if flagHost != "" {
		return flagHost
	}
	return cfg.Host
}

// connect resolves a port and returns a client for it. The returned result
// carries the launched process handle, if any; the caller decides whether it
// outlives the command.
func connect() (*nrepl.Client, *discovery.Result, error) {
	res, err := discovery.Discover(discoveryOptions())
	if err != nil {
		return nil, nil, err
	}
	if res.Port == 0 {
		// Launched blind: the server is starting, but nothing tells us
		// where it listens.
		if res.Handle != nil {
			res.Handle.Stop()
		}
		return nil, nil, &discovery.NoPortConfiguredError{}
	}
	client := nrepl.New(serverHost(), res.Port, nrepl.WithEvalTimeout(cfg.EvalTimeout()))
	return client, res, nil
}
