package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/localparts/tokenbridge/internal/buildinfo"
	"github.com/localparts/tokenbridge/internal/logging"
)

// global flags
var cfgFile string

const (
	LogLevelKey   = "log.level"
	LogFormatKey  = "log.format"
	LogNoColorKey = "log.no_color"
)

var rootCmd = &cobra.Command{
	Use:   "tokenbridge",
	Short: fmt.Sprintf("tokenbridge (version: %s, commit: %s)", buildinfo.Version, buildinfo.CommitHash),
	Long: `tokenbridge is a credential-translation reverse proxy.
	It accepts bearer tokens issued by an OIDC identity provider,
	re-issues equivalent short-lived symmetric tokens for a
	row-level-security enabled PostgREST API, and forwards each
	request with the translated credential attached.`,
	Version: buildinfo.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Options{
			Level:   viper.GetString(LogLevelKey),
			Format:  viper.GetString(LogFormatKey),
			NoColor: viper.GetBool(LogNoColorKey),
		})
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	// setup pre-flag logger
	logging.InitDefault()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Configuration file (YAML); environment variables take precedence")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = viper.BindPFlag(LogLevelKey, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	_ = viper.BindPFlag(LogFormatKey, rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.PersistentFlags().Bool("no-color", false, "Disable color output")
	_ = viper.BindPFlag(LogNoColorKey, rootCmd.PersistentFlags().Lookup("no-color"))

	viper.SetEnvPrefix("TOKENBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))

	viper.AutomaticEnv()

	// the env names the reference deployment already uses keep working
	_ = viper.BindEnv("upstream.url", "TOKENBRIDGE_UPSTREAM_URL", "POSTGREST_URL")
	_ = viper.BindEnv("token.secret", "TOKENBRIDGE_TOKEN_SECRET", "PGRST_JWT_SECRET")
	_ = viper.BindEnv("identity.url", "TOKENBRIDGE_IDENTITY_URL", "AUTHENTIK_URL")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}
