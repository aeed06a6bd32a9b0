package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xinggonglie/lobe-chat-2/internal/config"
	"github.com/xinggonglie/lobe-chat-2/internal/provider/dispatch"
	"github.com/xinggonglie/lobe-chat-2/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if servePort != 0 {
			if servePort <= 0 || servePort > 65535 {
				return fmt.Errorf("port override %d must be a valid TCP port", servePort)
			}
			cfg.Server.Port = servePort
		}

		store := config.NewStore(cfg)

		if cfg.ProvidersFile != "" {
			go func() {
				if err := store.Watch(cmd.Context(), cfg.ProvidersFile); err != nil {
					slog.Warn("provider settings watcher stopped", "error", err)
				}
			}()
		}

		dispatcher := dispatch.NewDispatcher(store, nil)
		srv, err := server.New(store, dispatcher)
		if err != nil {
			return err
		}

		return srv.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override server port from configuration")
	rootCmd.AddCommand(serveCmd)
}
