package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"emprenix/internal/rag"
	"emprenix/internal/tui"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the Emprenix assistant in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chain, err := rag.Build(ctx, a.cfg, rag.OpenAIClients)
			if err != nil {
				return err
			}
			defer discard(ctx, chain)

			// keep console logs from drawing over the terminal UI
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})

			_, err = tea.NewProgram(tui.New(ctx, chain), tea.WithAltScreen()).Run()
			return err
		},
	}
}
