package main

import (
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/therapychat-go/internal/adapters/session"
	"github.com/0xcro3dile/therapychat-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/therapychat-go/internal/infrastructure/http"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web chat page and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			// browsers upload their own recordings, no local capture
			sessions := session.NewRegistry(
				a.cfg.Server.MaxSessions,
				a.cfg.Server.SessionTTL,
				func(id string) *usecases.Conversation { return a.newConversation(id, nil) },
				a.logger,
			)

			srv := httpserver.NewServer(sessions, httpserver.Options{
				Addr:          a.cfg.Server.Addr,
				MaxAudioBytes: a.cfg.Server.MaxAudioSize,
			}, a.logger)
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")

	return cmd
}
