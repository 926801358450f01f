package main

import (
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/shelfauth/internal/logging"
)

const envPrefix = "SHELFAUTH"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "shelfauth",
	Short: "Google sign-in, rotating sessions and a cached book catalog",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, configErr := initConfig(viper.GetViper())
		if err := logging.Init(logging.Options{
			Level:   viper.GetString(keyLogLevel),
			Format:  viper.GetString(keyLogFormat),
			NoColor: viper.GetBool(keyLogNoColor),
		}); err != nil {
			return err
		}
		if configErr != nil { // handle error after logging is initialized
			return configErr
		}
		if configPath != "" {
			log.Debug().Str("path", configPath).Msg("config.loaded")
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	// setup pre-flag logger
	logging.InitDefault()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Configuration file (default is ./shelfauth.yaml)")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = viper.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	_ = viper.BindPFlag(keyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.PersistentFlags().Bool("no-color", false, "Disable color output")
	_ = viper.BindPFlag(keyLogNoColor, rootCmd.PersistentFlags().Lookup("no-color"))

	configureViper(viper.GetViper())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// configureViper installs defaults and the SHELFAUTH_* env mapping, so
// jwt.access_ttl is read from SHELFAUTH_JWT_ACCESS_TTL.
func configureViper(v *viper.Viper) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
}

func initConfig(v *viper.Viper) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/shelfauth")
		}
		v.SetConfigType("yaml")
		v.SetConfigName("shelfauth")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", err
		}
		return "", nil
	}
	return v.ConfigFileUsed(), nil
}
