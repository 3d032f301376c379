package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "datanetd",
	Short:         "Data network simulation daemon",
	Long:          "datanetd runs a grid of linked data nodes, unloaders, distributors and consumers, and serves observers and operator commands.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./datanetd.yaml)")
	rootCmd.PersistentFlags().String("configs", "./configs", "catalog and tuning directory")

	rootCmd.AddCommand(newRunCmd(), newInspectCmd(), newValidateCmd(), newReplayCmd())
}

// newViper binds a command's flags, DATANET_* env vars and the optional
// config file. Precedence: flag > env > file > default.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("datanetd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DATANET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; a missing explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if explicit, _ := cmd.Flags().GetString("config"); explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "[datanetd] ", log.LstdFlags|log.Lmicroseconds)
}
