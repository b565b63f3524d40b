package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/babelroom/babelroom/internal/adapters/auth"
	"github.com/babelroom/babelroom/internal/adapters/http"
	"github.com/babelroom/babelroom/internal/adapters/id"
	"github.com/babelroom/babelroom/internal/adapters/postgres"
	"github.com/babelroom/babelroom/internal/adapters/speech"
	"github.com/babelroom/babelroom/internal/adapters/tracing"
	"github.com/babelroom/babelroom/internal/adapters/translate"
	"github.com/babelroom/babelroom/internal/hub"
	"github.com/babelroom/babelroom/internal/loader"
	"github.com/babelroom/babelroom/internal/pipeline"
	"github.com/babelroom/babelroom/internal/tcache"
	"github.com/babelroom/babelroom/internal/voiceprofile"
)

// serveCmd starts the translation room server
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the translation room server",
		Long: `Start the BabelRoom WebSocket server.

Each room participant connects to /ws/audio/{room_id} with a bearer
token, streams PCM16 audio and receives translated speech from every
other participant.

Required configuration:
  - PostgreSQL database (BABELROOM_POSTGRES_URL)
  - JWT secret shared with the REST service (BABELROOM_JWT_SECRET)
  - ASR/MT/TTS model services (BABELROOM_ASR_URL, BABELROOM_MT_URL, BABELROOM_TTS_URL)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	log.Println("Starting BabelRoom server...")
	log.Printf("  HTTP: http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("  ASR:  %s", cfg.ASR.URL)
	log.Printf("  MT:   %s", cfg.MT.URL)
	log.Printf("  TTS:  %s", cfg.TTS.URL)
	log.Println()

	shutdownTracer, err := tracing.InitTracer("babelroom")
	if err != nil {
		log.Printf("Warning: Failed to initialize tracing: %v", err)
	} else {
		defer func() {
			if err := shutdownTracer(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
	}

	if cfg.Database.PostgresURL == "" {
		return fmt.Errorf("server mode requires PostgreSQL. Set BABELROOM_POSTGRES_URL")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("server mode requires a JWT secret. Set BABELROOM_JWT_SECRET")
	}

	log.Println("Connecting to PostgreSQL...")
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.PostgresURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	users := postgres.NewUserDirectory(pool)
	rooms := postgres.NewRoomRegistry(pool)
	voiceRepo := postgres.NewVoiceProfileRepository(pool)

	asrAdapter := speech.NewASRAdapter(cfg.ASR.URL, cfg.ASR.APIKey, cfg.ASR.Model)
	mtAdapter := translate.NewMTAdapter(cfg.MT.URL, cfg.MT.APIKey, cfg.MT.Model)
	ttsAdapter := speech.NewTTSAdapter(cfg.TTS.URL, cfg.TTS.APIKey, cfg.TTS.Model, cfg.Pipeline.OutputSampleRate)

	modelLoader := loader.New(cfg.Loader, logger)
	modelLoader.Register(loader.KindASR, warmupProbe(asrAdapter), nil)
	modelLoader.Register(loader.KindMT, warmupMT(mtAdapter), nil)
	modelLoader.Register(loader.KindTTS, warmupTTS(ttsAdapter), nil)

	loaderCtx, cancelLoader := context.WithCancel(ctx)
	defer cancelLoader()
	go modelLoader.RunJanitor(loaderCtx)
	if cfg.Loader.PreloadOnStart {
		log.Println("Preloading speech models...")
		modelLoader.PreloadAll(ctx)
	}

	vadGate, err := pipeline.NewVADGate(cfg.Pipeline.VADModelPath)
	if err != nil {
		log.Printf("Warning: VAD disabled: %v", err)
	} else if vadGate != nil {
		defer vadGate.Close()
		log.Printf("VAD gate enabled (%s)", cfg.Pipeline.VADModelPath)
	}

	translationCache := tcache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	voiceStore := voiceprofile.New(voiceRepo, cfg.Voice.ProfileDir, logger)

	pipelines := pipeline.NewManager(pipeline.Deps{
		ASR:    asrAdapter,
		MT:     mtAdapter,
		TTS:    ttsAdapter,
		Voices: voiceStore,
		Loader: modelLoader,
		Cache:  translationCache,
		Gate:   vadGate,
		Cfg:    cfg.Pipeline,
		Logger: logger,
	})
	defer pipelines.StopAll()

	hubManager := hub.NewManager(id.New(), cfg.Server.MaxRoomSize, cfg.Server.OutboundDepth, logger)
	relay := hub.NewRelay(hubManager, logger)

	validator := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	server := http.NewServer(cfg, validator, users, rooms, hubManager, relay, pipelines, pool)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// warmupProbe pushes a short silent block through the transcription
// service so it pages the model in before real traffic arrives.
func warmupProbe(asr *speech.ASRAdapter) loader.LoadFunc {
	return func(ctx context.Context) error {
		silence := make([]byte, 6400)
		_, err := asr.Transcribe(ctx, silence, 16000, "en")
		return err
	}
}

func warmupMT(mt *translate.MTAdapter) loader.LoadFunc {
	return func(ctx context.Context) error {
		_, err := mt.Translate(ctx, "hello", "en", "es")
		return err
	}
}

func warmupTTS(tts *speech.TTSAdapter) loader.LoadFunc {
	return func(ctx context.Context) error {
		_, err := tts.Synthesize(ctx, "ready", "en", nil)
		return err
	}
}
