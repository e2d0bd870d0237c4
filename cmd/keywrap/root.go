package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

var (
	cfgFile string
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "keywrap",
	Short: "Wrap and unwrap homomorphic-encryption keys in JSON envelopes",
	Long: `keywrap encapsulates secret, encryption and evaluation keys into versioned
JSON envelopes carrying AAD and integrity hashes, and recovers them again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.keywrap.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "write JSON logs instead of console output")
	rootCmd.PersistentFlags().String("requester-entity", "", "requester entity recorded in envelopes")
	rootCmd.PersistentFlags().String("requester-type", "", "requester type recorded in envelopes")
	rootCmd.PersistentFlags().String("requester-method", "", "requester method recorded in envelopes")

	bindFlagOrPanic("log.level", "log-level")
	bindFlagOrPanic("log.json", "log-json")
	bindFlagOrPanic("requester.entity", "requester-entity")
	bindFlagOrPanic("requester.type", "requester-type")
	bindFlagOrPanic("requester.method", "requester-method")
}

func bindFlagOrPanic(configKey, flagName string) {
	if err := viper.BindPFlag(configKey, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("store.table", keywrap.DefaultEnvelopeTable)
	viper.SetDefault("store.domain", keywrap.DefaultDomain)
	viper.SetDefault("store.service", keywrap.DefaultService)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".keywrap")
	}

	viper.SetEnvPrefix("KEYWRAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// requester identity keeps the EVI_* names the library reads
	_ = viper.BindEnv("requester.entity", "KEYWRAP_REQUESTER_ENTITY", keywrap.EnvRequesterEntity)
	_ = viper.BindEnv("requester.type", "KEYWRAP_REQUESTER_TYPE", keywrap.EnvRequesterType)
	_ = viper.BindEnv("requester.method", "KEYWRAP_REQUESTER_METHOD", keywrap.EnvRequesterMethod)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: reading config: %v\n", err)
		}
	}
}

func setupLogger() error {
	level, err := zerolog.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if viper.GetBool("log.json") {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logger = logger.Level(level).With().Timestamp().Logger()
	return nil
}

func requester() keywrap.Requester {
	return keywrap.Requester{
		Entity: viper.GetString("requester.entity"),
		Type:   viper.GetString("requester.type"),
		Method: viper.GetString("requester.method"),
	}.WithDefaults()
}

func newManager() (keywrap.KeyManager, error) {
	return keywrap.NewKeyManager(
		keywrap.NewLocalProviderMeta("", ""),
		keywrap.FormatLatest,
		keywrap.WithLogger(logger),
		keywrap.WithRequester(requester()),
	)
}
