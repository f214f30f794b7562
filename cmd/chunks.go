package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"emprenix/internal/helper"
	"emprenix/internal/parser"
)

func newChunksCmd(a *app) *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Load and chunk the document without calling any API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				filePath = a.cfg.Document.Path
			}
			text, err := parser.LoadPDFText(filePath)
			if err != nil {
				return err
			}
			chunks := parser.SplitText(text, a.cfg.RAG.ChunkSize, a.cfg.RAG.ChunkOverlap, a.cfg.RAG.Separator)
			log.Info().Str("document", filePath).Int("chunks", len(chunks)).Msg("Dry run")
			helper.PrettyPrint(cmd.OutOrStdout(), chunks)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to a PDF file (defaults to document.path)")
	return cmd
}
