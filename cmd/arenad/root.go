package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/cometbft/cometbft/abci/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"onchainarena/internal/app"
)

const envPrefix = "ARENAD"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arenad",
		Short: "Arena match chain ABCI daemon",
		Long: `arenad runs the arena state machine as an ABCI application.
Point a CometBFT node at the listen address to form a chain, or use the
in-process simulator from the client package for local development.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	flags := cmd.Flags()
	flags.String("home", ".arena", "app home directory (state is stored under <home>/app)")
	flags.String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
	flags.String("transport", "socket", "ABCI transport (socket|grpc)")
	flags.String("log-level", "info", "log level (trace|debug|info|warn|error)")

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return err
	}

	a, err := app.New(viper.GetString("home"), logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	addr := viper.GetString("addr")
	srv, err := server.NewServer(addr, viper.GetString("transport"), a)
	if err != nil {
		return fmt.Errorf("create abci server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start abci server: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	logger.Info("abci server listening", "addr", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	return nil
}

func newLogger(level string) (log.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return log.NewLogger(os.Stderr, log.LevelOption(lvl)), nil
}
