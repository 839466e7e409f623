// Package commands implements the rtc command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bhandras/delight/rtc/internal/config"
	"github.com/bhandras/delight/rtc/pkg/logger"
	"github.com/bhandras/delight/rtc/sdk"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	console    bool

	cfg *config.Config
)

// Execute runs the root command.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rtc",
		Short:        "Encrypted messaging and calling client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			lvl, err := logger.ParseLevel(loaded.LogLevel)
			if err != nil {
				return err
			}
			logger.SetLevel(lvl)
			if console {
				logger.SetConsole(os.Stderr)
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&console, "console", false, "human readable log output")

	root.AddCommand(
		keyCmd(),
		sendCmd(),
		messagesCmd(),
		dialCmd(),
		watchCmd(),
		versionCmd(),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("RTC_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "rtc", "config.yaml")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// closeClient deletes the device registration and releases the client.
func closeClient(client *sdk.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	if err := client.Devices().Unregister(ctx); err != nil {
		logger.Debugf("[device] unregister: %v", err)
	}
	_ = client.Close()
}

// startClient builds a client and connects its push stream. Commands that
// wait on server pushes (key material, incoming calls) need it started.
func startClient(ctx context.Context, opts ...sdk.Option) (*sdk.Client, error) {
	client := sdk.New(cfg, opts...)
	if err := client.Start(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
