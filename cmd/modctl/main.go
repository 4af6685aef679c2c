package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fabble/moderation/internal/app"
	"github.com/fabble/moderation/internal/config"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd 运维命令行入口
var rootCmd = &cobra.Command{
	Use:          "modctl",
	Short:        "Moderation operations: readonly mode, comment spam batches, spam designation, keywords",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./config.yaml or environment)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp 加载配置并组装依赖后执行 fn
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(context.Background(), a)
}
