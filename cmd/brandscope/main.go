package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/everstacklabs/brandscope/internal/config"
	_ "github.com/everstacklabs/brandscope/internal/provider/anthropic" // register Claude adapter
	_ "github.com/everstacklabs/brandscope/internal/provider/chat"      // register chat-completion adapter
	_ "github.com/everstacklabs/brandscope/internal/provider/searchai"  // register search-AI adapter
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "brandscope",
		Short:         "Multi-provider brand visibility benchmark",
		Long:          "Asks AI providers market-research questions about a brand, merges their cited sources and exports benchmark statistics.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./brandscope.yaml)")

	rootCmd.AddCommand(
		benchCmd(),
		runsCmd(),
		serveCmd(),
		publishCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("brandscope: command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		_ = zap.L().Sync()
		os.Exit(1)
	}
	_ = zap.L().Sync()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}
