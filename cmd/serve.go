package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"emprenix/internal/contact"
	"emprenix/internal/session"
	"emprenix/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the website",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := session.NewStore(a.cfg.SessionTTL())
			srv, err := web.New(a.cfg, store, web.RAGBuilder(a.cfg), contact.NewMailer(a.cfg.SMTP))
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
