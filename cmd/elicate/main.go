// Package main provides the Elicate CLI: option management, plugin control,
// the settings views and one-shot chat requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"elicate/internal/app"
	"elicate/internal/config"
	"elicate/internal/logger"
	"elicate/internal/version"
)

var (
	logLevel string
	logFile  string
	testMode bool
	chatID   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "elicate",
	Short: "Elicate - chat client options and plugins",
	Long: `Elicate manages layered chat options (default, user and per-chat) and the
plugins that rewrite every request before it is sent to a model.`,
	SilenceUsage: true,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	flags.BoolVar(&testMode, "test-mode", false, "Ignore .env and YAML files and use plain log output")
	flags.StringVar(&chatID, "chat", "", "Chat id whose overrides are read and written")
	flags.String(config.FlagName(config.KeyStorage), "", "Override storage backend (memory|file|redis)")
	flags.String(config.FlagName(config.KeyStoragePath), "", "Path of the file storage backend")
	flags.String(config.FlagName(config.KeyRedisURL), "", "URL of the redis storage backend")
	flags.String(config.FlagName(config.KeyProvider), "", "Default model provider (openai|anthropic|gemini)")
	flags.String(config.FlagName(config.KeyModel), "", "Default model [default: the provider's default model]")
	flags.String(config.FlagName(config.KeyTokenEncoding), "", "tiktoken encoding used to count tokens [default: cl100k_base]")

	for _, name := range []string{
		"log-level", "log-file", "test-mode",
		config.FlagName(config.KeyStorage),
		config.FlagName(config.KeyStoragePath),
		config.FlagName(config.KeyRedisURL),
		config.FlagName(config.KeyProvider),
		config.FlagName(config.KeyModel),
		config.FlagName(config.KeyTokenEncoding),
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newOptionsCmd())
	rootCmd.AddCommand(newPluginsCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newSendCmd())

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if err := logger.Configure(logLevel, logFile, testMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

// openApp loads configuration, initializes the app and binds it to --chat.
// The returned function tears the app down.
func openApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load(config.Options{Flags: viper.GetViper(), SkipFiles: testMode})
	if err != nil {
		return nil, nil, err
	}
	// --log-level was already applied by initConfig.
	if logLevel == "" {
		logger.SetLevel(cfg.LogLevel())
	}
	a, err := app.New(app.Options{Config: cfg})
	if err != nil {
		return nil, nil, err
	}
	closeApp := func() {
		if err := a.Teardown(context.Background()); err != nil {
			logger.Warn("Teardown failed", "error", err)
		}
	}
	if err := a.Init(ctx); err != nil {
		closeApp()
		return nil, nil, err
	}
	if chatID != "" {
		if err := a.SwitchChat(ctx, chatID); err != nil {
			closeApp()
			return nil, nil, err
		}
	}
	return a, closeApp, nil
}
