package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "logtail",
		Short: "KeepWatching admin log-stream consumer",
		Long: `logtail follows the KeepWatching admin log stream, keeps a bounded
pausable history of recent records, and optionally archives them to DuckDB,
records them to disk, and exposes them over HTTP and a control socket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/logtail/config.yml)")

	root.AddCommand(
		newRunCmd(&configPath),
		newReplayCmd(&configPath),
		newCtlCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume the log stream until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runServer(cfg)
		},
	}
	f := cmd.Flags()
	f.String("stream-url", defaultStreamURL, "log stream endpoint")
	f.String("service", "", "only stream this service")
	f.String("level", "", "only stream this level (info, warn, error)")
	f.String("search", "", "only stream messages containing this term")
	f.Int("max-records", defaultMaxRecords, "visible history cap")
	f.Bool("reconnect", true, "re-open the stream after transport errors")
	f.Duration("reconnect-delay", defaultReconnectDelay, "delay before reconnecting")
	f.Bool("archive-enabled", true, "archive records to DuckDB")
	f.String("db-path", "", "DuckDB archive path")
	f.String("record-path", "", "record decoded records to this JSONL file (.zst compresses)")
	f.Bool("api-enabled", true, "serve the HTTP API")
	f.String("api-addr", defaultAPIAddr, "HTTP API listen address")
	f.String("socket-path", "", "control socket path")
	return cmd
}

func newReplayCmd(configPath *string) *cobra.Command {
	var (
		rate float64
		loop bool
	)
	cmd := &cobra.Command{
		Use:   "replay <recording>",
		Short: "Serve a recording as a log stream",
		Long: `replay serves a file written with --record-path from the stream
endpoint of the HTTP API, in the backend's payload format, so a consumer
or the TUI can be pointed at it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runReplay(cfg, args[0], rate, loop)
		},
	}
	cmd.Flags().Float64Var(&rate, "rate", 10, "events per second (0 = as fast as possible)")
	cmd.Flags().BoolVar(&loop, "loop", false, "restart from the beginning after the last record")
	cmd.Flags().String("api-addr", defaultAPIAddr, "listen address")
	return cmd
}

func newCtlCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "ctl <status|pause|resume|clear|reconnect>",
		Short:     "Control a running logtail over its socket",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: ctlActions,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runCtl(cmd.OutOrStdout(), cfg.SocketPath, args[0])
		},
	}
	cmd.Flags().String("socket-path", "", "control socket path")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logtail - KeepWatching log stream consumer\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", goVersion)
		},
	}
}
