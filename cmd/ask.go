package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"emprenix/internal/rag"
)

func newAskCmd(a *app) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Build the chat pipeline once and answer a single question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chain, err := rag.Build(ctx, a.cfg, rag.OpenAIClients)
			if err != nil {
				return err
			}
			defer discard(ctx, chain)

			response, err := chain.Query(ctx, query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			fmt.Fprintf(out, "%s\n\n", response.Query)

			log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			for _, src := range response.Sources {
				fmt.Fprintf(out, "[chunk %d, similarity %.3f] %s\n\n", src.ChunkIndex, src.Similarity, src.Snippet)
			}

			log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			fmt.Fprintf(out, "%s\n\n", response.Answer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Question to be answered")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}
