package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yosefsha/myassistant/ai/observability/logging"
	"github.com/yosefsha/myassistant/internal/profile"
	"github.com/yosefsha/myassistant/internal/version"
	"github.com/yosefsha/myassistant/server"
	apiv1 "github.com/yosefsha/myassistant/server/router/api/v1"
)

var (
	rootCmd = &cobra.Command{
		Use:           "myassistant",
		Short:         "A conversational assistant that routes each message to the right specialist.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Systemd units carry their own environment.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			logger, err := logging.New(os.Stderr, viper.GetString("log-format"), viper.GetString("log-level"))
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP session API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), terminationSignals...)
			defer cancel()

			eng, err := newEngine(ctx, instanceProfile)
			if err != nil {
				printStartupError(err, instanceProfile)
				return err
			}
			defer eng.close()

			s := server.NewServer(instanceProfile, apiv1.NewAPIV1Service(eng.assistant, eng.metricsHandler()))
			if err := s.Start(ctx); err != nil {
				return err
			}
			printGreetings(instanceProfile, s.Addr())

			<-ctx.Done()
			slog.Info("shutting down")
			s.Shutdown(context.Background())
			return nil
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "memory")
	viper.SetDefault("port", 8081)
	viper.SetDefault("log-format", "text")
	viper.SetDefault("log-level", "info")

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "memory", "session store driver (memory, sqlite, postgres)")
	flags.String("dsn", "", "database source name(aka. DSN)")
	flags.String("specialists", "", "specialist registry file (yaml or toml); built-in defaults when empty")
	flags.Bool("metrics", true, "expose prometheus metrics on /metrics")
	flags.Bool("score-cache", true, "memoize keyword fallback selections")
	flags.String("log-format", "text", "log format (text or json)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	for _, name := range []string{
		"mode", "addr", "port", "data", "driver", "dsn", "specialists",
		"metrics", "score-cache", "log-format", "log-level",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("myassistant")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, chatCmd, versionCmd)
}

// loadProfile merges flags, MYASSISTANT_* env and defaults, then validates.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:            viper.GetString("mode"),
		Addr:            viper.GetString("addr"),
		Port:            viper.GetInt("port"),
		Data:            viper.GetString("data"),
		Driver:          viper.GetString("driver"),
		DSN:             viper.GetString("dsn"),
		SpecialistsFile: viper.GetString("specialists"),
		MetricsEnabled:  viper.GetBool("metrics"),
		ScoreCache:      viper.GetBool("score-cache"),
		Version:         version.Version,
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func printGreetings(p *profile.Profile, addr string) {
	fmt.Printf("myassistant %s started successfully!\n", p.Version)
	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
	fmt.Printf("Session store: %s\n", p.Driver)
	fmt.Printf("LLM provider: %s (%s)\n", p.LLMProvider, p.LLMModel)
	fmt.Printf("Mode: %s\n", p.Mode)
	fmt.Printf("Server running on %s\n", addr)
	fmt.Println()
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printStartupError adds a hint for the failures operators hit most.
func printStartupError(err error, p *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nStartup failed:", err)

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		if p.Driver == "postgres" {
			fmt.Fprintln(os.Stderr, "  PostgreSQL is not reachable. Check MYASSISTANT_DSN, or run with --driver=sqlite.")
		} else if p.NATSURL != "" {
			fmt.Fprintln(os.Stderr, "  NATS is not reachable. Check MYASSISTANT_NATS_URL.")
		}
	case strings.Contains(msg, "sslmode"):
		fmt.Fprintln(os.Stderr, "  Add ?sslmode=disable to your DSN.")
	case strings.Contains(msg, "specialist"):
		fmt.Fprintln(os.Stderr, "  Check the registry file passed with --specialists.")
	}

	if _, statErr := os.Stat(".env"); statErr != nil {
		fmt.Fprintln(os.Stderr, "  Tip: create a .env file for local configuration.")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
