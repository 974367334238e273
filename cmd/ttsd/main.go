package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"liveTTS/internal/app/runtime"
	"liveTTS/internal/infrastructure/config"
	ttsusecase "liveTTS/internal/usecase/tts"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:           "ttsd",
		Short:         "Speak stream chat out loud",
		Long:          "ttsd reads Twitch and Kick chat, synthesizes the messages and plays them through overlays or the local speaker.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the chat listeners, the queue and the control API",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}

	voicesCmd = &cobra.Command{
		Use:   "voices [engine]",
		Short: "List the voices of the configured engines",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listVoices,
	}
)

func loadConfig() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", cfg.Log.Level)
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	log.SetDefault(logger)
	return cfg, logger, nil
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := runtime.Start(ctx, runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	rt.Wait()
	logger.Info("shutting down")
	return rt.Stop()
}

func listVoices(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	registry := runtime.NewEngineRegistry(cfg, ttsusecase.Credentials{})

	names := registry.Names()
	if len(args) == 1 {
		if _, ok := registry.Get(args[0]); !ok {
			return fmt.Errorf("engine %q is not available (configured: %v)", args[0], names)
		}
		names = args[:1]
	}

	out := cmd.OutOrStdout()
	for _, name := range names {
		engine, _ := registry.Get(name)
		voices := engine.Voices()
		ids := make([]string, 0, len(voices))
		for id := range voices {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		fmt.Fprintf(out, "%s (default %s)\n", name, engine.DefaultVoice())
		for _, id := range ids {
			fmt.Fprintf(out, "  %-28s %s\n", id, voices[id])
		}
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default livetts.yaml in . or ./configs)")
	rootCmd.AddCommand(serveCmd, voicesCmd)
}
