package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "graphql-migrate",
	Short: "graphql-migrate rewrites embedded GraphQL documents against a deprecation rule set",
	Long: `graphql-migrate scans an application source tree for embedded GraphQL
documents, resolves their fragment spreads, expands conditional fragment
switches into concrete variants and rewrites deprecated fields according to
an externally supplied rule file.

By default nothing is written: the run produces a report and the patches it
would apply. Pass --write to rewrite the source files in place.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./graphql-migrate.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("graphql-migrate")
	}
	viper.SetEnvPrefix("GRAPHQL_MIGRATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() abstractlogger.Logger {
	level := zap.InfoLevel
	abstractLevel := abstractlogger.InfoLevel
	if viper.GetBool("debug") {
		level = zap.DebugLevel
		abstractLevel = abstractlogger.DebugLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		log.Fatal(err)
	}
	return abstractlogger.NewZapLogger(logger, abstractLevel)
}
