package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"emprenix/internal/config"
)

const configFilePath = "./configs/config.yaml"

type app struct {
	configPath string
	cfg        *config.Config
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Error running command")
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "emprenix",
		Short:         "Emprenix website with a document-grounded chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", configFilePath, "Path to the YAML config file")

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newChunksCmd(a),
	)
	return root
}

func (a *app) loadConfig() error {
	// secrets may come from a local .env file
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Str("config", a.configPath).Str("document", cfg.Document.Path).Msg("Loaded config")
	a.cfg = cfg
	return nil
}

type closer interface {
	Close(ctx context.Context) error
}

// discard closes a pipeline on exit and logs a failure.
func discard(ctx context.Context, c closer) {
	if err := c.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Error discarding pipeline")
	}
}
