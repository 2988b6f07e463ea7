package docgraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/docgraph/pkg/config"
	"github.com/soundprediction/docgraph/pkg/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "docgraph",
		Short: "docgraph: knowledge graph and cross-document analysis for search results",
		Long: `docgraph enriches a batch of ranked search results with a typed knowledge
graph and cross-document intelligence: similarity, clusters, citation
authority, complementary reading and factual conflicts.

Batches are read from JSON or YAML files (or "-" for standard input), either
as a bare array of results or as an object with a "results" field.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logger.New(config.LogConfig{
				Level:  viper.GetString("log.level"),
				Format: viper.GetString("log.format"),
			}))
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.docgraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "color", "log format (text, json, color)")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".docgraph" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".docgraph")
	}

	viper.SetEnvPrefix("DOCGRAPH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
