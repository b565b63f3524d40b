package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/babelroom/babelroom/internal/config"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "babelroom",
		Short: "BabelRoom - real-time speech translation rooms",
		Long: `BabelRoom runs the real-time core of a multi-party speech
translation service: participants in a room speak their own language
and hear every other participant translated into theirs.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Listen:        %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Printf("  Path prefix:   %s\n", cfg.Server.PathPrefix)
			fmt.Printf("  Max room size: %d\n", cfg.Server.MaxRoomSize)
			fmt.Println()

			fmt.Println("Auth:")
			fmt.Printf("  JWT secret: %s\n", maskSecret(cfg.Auth.JWTSecret))
			fmt.Printf("  Issuer:     %s\n", cfg.Auth.Issuer)
			fmt.Println()

			fmt.Println("ASR (Speech Recognition):")
			fmt.Printf("  URL:     %s\n", cfg.ASR.URL)
			fmt.Printf("  Model:   %s\n", cfg.ASR.Model)
			fmt.Printf("  API Key: %s\n", maskSecret(cfg.ASR.APIKey))
			fmt.Println()

			fmt.Println("MT (Machine Translation):")
			fmt.Printf("  URL:     %s\n", cfg.MT.URL)
			fmt.Printf("  Model:   %s\n", cfg.MT.Model)
			fmt.Printf("  API Key: %s\n", maskSecret(cfg.MT.APIKey))
			fmt.Println()

			fmt.Println("TTS (Text-to-Speech):")
			fmt.Printf("  URL:     %s\n", cfg.TTS.URL)
			fmt.Printf("  Model:   %s\n", cfg.TTS.Model)
			fmt.Printf("  API Key: %s\n", maskSecret(cfg.TTS.APIKey))
			fmt.Println()

			fmt.Println("Pipeline:")
			fmt.Printf("  Cycle interval: %dms\n", cfg.Pipeline.CycleIntervalMs)
			fmt.Printf("  Block window:   %d-%dms\n", cfg.Pipeline.MinBlockMs, cfg.Pipeline.MaxBlockMs)
			fmt.Printf("  Cycle deadline: %dms\n", cfg.Pipeline.CycleDeadlineMs)
			fmt.Printf("  VAD model:      %s\n", orNone(cfg.Pipeline.VADModelPath))
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Database.PostgresURL))
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  BABELROOM_SERVER_HOST, BABELROOM_SERVER_PORT, BABELROOM_PATH_PREFIX")
			fmt.Println("  BABELROOM_JWT_SECRET, BABELROOM_JWT_ISSUER, BABELROOM_POSTGRES_URL")
			fmt.Println("  BABELROOM_ASR_URL, BABELROOM_MT_URL, BABELROOM_TTS_URL")
			fmt.Println("  BABELROOM_CYCLE_INTERVAL_MS, BABELROOM_VAD_MODEL_PATH, BABELROOM_PRELOAD_MODELS")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("BabelRoom %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

func orNone(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}
