package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/wfunc/matchgame/config"
)

func newCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:     "matchgame",
		Short:   "Room coordinator for a two-player number matching game.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configDir, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&configDir, "config-dir", ".", "directory containing config.yaml")
	fs.String("http-address", ":8080", "websocket/HTTP listen address (env: MATCHGAME_SERVER_HTTP_ADDRESS)")
	fs.String("rpc-address", "", "net/rpc admin listen address, empty to disable (env: MATCHGAME_SERVER_RPC_ADDRESS)")
	fs.String("grpc-address", "", "gRPC health listen address, empty to disable (env: MATCHGAME_SERVER_GRPC_ADDRESS)")
	fs.String("public-url", "", "base URL encoded in room QR codes (env: MATCHGAME_SERVER_PUBLIC_URL)")
	fs.Bool("profile", false, "register net/http/pprof handlers (env: MATCHGAME_SERVER_PROFILE)")
	fs.Duration("idle-timeout", 30*time.Minute, "expire rooms idle this long, 0 to disable (env: MATCHGAME_ROOM_IDLE_TIMEOUT)")
	fs.String("store-driver", config.DriverNone, "none, gorm, postgres or redis (env: MATCHGAME_STORE_DRIVER)")
	fs.String("amqp-url", "", "RabbitMQ URL for lifecycle events, empty to disable (env: MATCHGAME_EVENTS_AMQP_URL)")
	fs.String("log-level", "info", "debug, info, warn or error (env: MATCHGAME_LOG_LEVEL)")
	fs.String("log-format", "json", "json or console (env: MATCHGAME_LOG_FORMAT)")
	fs.String("log-file", "", "also write logs to this rotated file (env: MATCHGAME_LOG_FILE)")
	fs.String("trace-endpoint", "", "OTLP/HTTP traces endpoint URL (env: MATCHGAME_TRACING_ENDPOINT)")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("matchgame v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
