package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for BabelRoom.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Auth     AuthConfig     `json:"auth"`
	Database DatabaseConfig `json:"database"`
	ASR      ASRConfig      `json:"asr"`
	MT       MTConfig       `json:"mt"`
	TTS      TTSConfig      `json:"tts"`
	Pipeline PipelineConfig `json:"pipeline"`
	Loader   LoaderConfig   `json:"loader"`
	Cache    CacheConfig    `json:"cache"`
	Voice    VoiceConfig    `json:"voice"`
}

// ServerConfig holds the HTTP/WebSocket server configuration.
type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	PathPrefix      string   `json:"path_prefix"`
	CORSOrigins     []string `json:"cors_origins"`
	MaxRoomSize     int      `json:"max_room_size"`
	OutboundDepth   int      `json:"outbound_depth"`
	ShutdownSeconds int      `json:"shutdown_seconds"`
}

// AuthConfig holds bearer token validation settings.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	Issuer    string `json:"issuer"`
}

// DatabaseConfig holds the PostgreSQL connection for the user directory,
// room registry and voice profile metadata.
type DatabaseConfig struct {
	PostgresURL string `json:"postgres_url"`
}

// ASRConfig holds speech recognition service configuration
// (Whisper-compatible HTTP endpoint).
type ASRConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"` // e.g. "whisper-large-v3"
}

// MTConfig holds machine translation service configuration
// (NLLB-compatible HTTP endpoint).
type MTConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"` // e.g. "nllb-200-distilled-600M"
}

// TTSConfig holds voice synthesis service configuration
// (XTTS-compatible HTTP endpoint with voice cloning).
type TTSConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"` // e.g. "xtts_v2"
}

// PipelineConfig tunes the per-speaker stream processor.
type PipelineConfig struct {
	InputSampleRate  int     `json:"input_sample_rate"`
	OutputSampleRate int     `json:"output_sample_rate"`
	CycleIntervalMs  int     `json:"cycle_interval_ms"`
	MinBlockMs       int     `json:"min_block_ms"`
	MaxBlockMs       int     `json:"max_block_ms"`
	ChunkBufferMax   int     `json:"chunk_buffer_max"`
	CycleDeadlineMs  int     `json:"cycle_deadline_ms"`
	SilenceRMS       float64 `json:"silence_rms"`
	MaxChunksPerSec  int     `json:"max_chunks_per_sec"`
	VADModelPath     string  `json:"vad_model_path"` // optional silero onnx model
	MaxTTSChars      int     `json:"max_tts_chars"`
}

// LoaderConfig tunes the lazy model loader.
type LoaderConfig struct {
	PreloadOnStart   bool `json:"preload_on_start"`
	IdleUnloadSecs   int  `json:"idle_unload_seconds"`
	IdleCheckSecs    int  `json:"idle_check_seconds"`
	LoadTimeoutSecs  int  `json:"load_timeout_seconds"`
	RetryBackoffSecs int  `json:"retry_backoff_seconds"`
}

// CacheConfig tunes the translation cache.
type CacheConfig struct {
	MaxEntries int `json:"max_entries"`
	TTLSeconds int `json:"ttl_seconds"`
}

// VoiceConfig holds voice profile storage settings.
type VoiceConfig struct {
	ProfileDir string `json:"profile_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			PathPrefix:      "/api/v1",
			CORSOrigins:     []string{"http://localhost:3000"},
			MaxRoomSize:     50,
			OutboundDepth:   32,
			ShutdownSeconds: 10,
		},
		Auth: AuthConfig{
			Issuer: "babelroom",
		},
		Database: DatabaseConfig{},
		ASR: ASRConfig{
			URL:   "http://localhost:8001/v1",
			Model: "whisper-large-v3",
		},
		MT: MTConfig{
			URL:   "http://localhost:8002/v1",
			Model: "nllb-200-distilled-600M",
		},
		TTS: TTSConfig{
			URL:   "http://localhost:8003/v1",
			Model: "xtts_v2",
		},
		Pipeline: PipelineConfig{
			InputSampleRate:  16000,
			OutputSampleRate: 22050,
			CycleIntervalMs:  500,
			MinBlockMs:       200,
			MaxBlockMs:       3000,
			ChunkBufferMax:   1 << 20,
			CycleDeadlineMs:  3000,
			SilenceRMS:       0.0025,
			MaxChunksPerSec:  60,
			MaxTTSChars:      240,
		},
		Loader: LoaderConfig{
			PreloadOnStart:   false,
			IdleUnloadSecs:   3600,
			IdleCheckSecs:    300,
			LoadTimeoutSecs:  120,
			RetryBackoffSecs: 30,
		},
		Cache: CacheConfig{
			MaxEntries: 10000,
			TTLSeconds: 600,
		},
		Voice: VoiceConfig{
			ProfileDir: filepath.Join(homeDir, ".babelroom", "voices"),
		},
	}
}

// envString loads a string environment variable into the target pointer if set
func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// envInt loads an integer environment variable into the target pointer if set and valid
func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*target = i
		}
	}
}

// envFloat loads a float64 environment variable into the target pointer if set and valid
func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// envBool loads a boolean environment variable into the target pointer if set and valid
func envBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// envStringSlice loads a comma-separated environment variable into a string slice
func envStringSlice(key string, target *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			*target = result
		}
	}
}

// Load loads configuration from the config file and environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse config file %s: %v\n", configPath, err)
		}
	}

	envString("BABELROOM_SERVER_HOST", &cfg.Server.Host)
	envInt("BABELROOM_SERVER_PORT", &cfg.Server.Port)
	envString("BABELROOM_PATH_PREFIX", &cfg.Server.PathPrefix)
	envStringSlice("BABELROOM_CORS_ORIGINS", &cfg.Server.CORSOrigins)
	envInt("BABELROOM_MAX_ROOM_SIZE", &cfg.Server.MaxRoomSize)
	envInt("BABELROOM_OUTBOUND_DEPTH", &cfg.Server.OutboundDepth)

	envString("BABELROOM_JWT_SECRET", &cfg.Auth.JWTSecret)
	envString("BABELROOM_JWT_ISSUER", &cfg.Auth.Issuer)

	envString("BABELROOM_POSTGRES_URL", &cfg.Database.PostgresURL)

	envString("BABELROOM_ASR_URL", &cfg.ASR.URL)
	envString("BABELROOM_ASR_API_KEY", &cfg.ASR.APIKey)
	envString("BABELROOM_ASR_MODEL", &cfg.ASR.Model)

	envString("BABELROOM_MT_URL", &cfg.MT.URL)
	envString("BABELROOM_MT_API_KEY", &cfg.MT.APIKey)
	envString("BABELROOM_MT_MODEL", &cfg.MT.Model)

	envString("BABELROOM_TTS_URL", &cfg.TTS.URL)
	envString("BABELROOM_TTS_API_KEY", &cfg.TTS.APIKey)
	envString("BABELROOM_TTS_MODEL", &cfg.TTS.Model)

	envInt("BABELROOM_CYCLE_INTERVAL_MS", &cfg.Pipeline.CycleIntervalMs)
	envInt("BABELROOM_MIN_BLOCK_MS", &cfg.Pipeline.MinBlockMs)
	envInt("BABELROOM_MAX_BLOCK_MS", &cfg.Pipeline.MaxBlockMs)
	envInt("BABELROOM_CHUNK_BUFFER_MAX", &cfg.Pipeline.ChunkBufferMax)
	envInt("BABELROOM_CYCLE_DEADLINE_MS", &cfg.Pipeline.CycleDeadlineMs)
	envFloat("BABELROOM_SILENCE_RMS", &cfg.Pipeline.SilenceRMS)
	envInt("BABELROOM_MAX_CHUNKS_PER_SEC", &cfg.Pipeline.MaxChunksPerSec)
	envString("BABELROOM_VAD_MODEL_PATH", &cfg.Pipeline.VADModelPath)

	envBool("BABELROOM_PRELOAD_MODELS", &cfg.Loader.PreloadOnStart)
	envInt("BABELROOM_IDLE_UNLOAD_SECONDS", &cfg.Loader.IdleUnloadSecs)
	envInt("BABELROOM_IDLE_CHECK_SECONDS", &cfg.Loader.IdleCheckSecs)

	envInt("BABELROOM_CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries)
	envInt("BABELROOM_CACHE_TTL_SECONDS", &cfg.Cache.TTLSeconds)

	envString("BABELROOM_VOICE_PROFILE_DIR", &cfg.Voice.ProfileDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CycleInterval returns the processor drain interval as a duration.
func (c *PipelineConfig) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalMs) * time.Millisecond
}

// CycleDeadline returns the per-cycle ASR+MT+TTS budget as a duration.
func (c *PipelineConfig) CycleDeadline() time.Duration {
	return time.Duration(c.CycleDeadlineMs) * time.Millisecond
}

// MinBlockBytes returns the minimum PCM16 byte count before ASR runs.
func (c *PipelineConfig) MinBlockBytes() int {
	return c.InputSampleRate * c.MinBlockMs / 1000 * 2
}

// MaxBlockBytes returns the per-cycle PCM16 byte cap.
func (c *PipelineConfig) MaxBlockBytes() int {
	return c.InputSampleRate * c.MaxBlockMs / 1000 * 2
}

// isValidURL validates that a URL has proper format
func isValidURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}
	if c.Server.MaxRoomSize < 2 {
		errs = append(errs, "max room size must be at least 2")
	}
	if c.Server.OutboundDepth < 1 {
		errs = append(errs, "outbound channel depth must be at least 1")
	}

	if c.Database.PostgresURL != "" && !isValidURL(c.Database.PostgresURL) {
		errs = append(errs, "PostgreSQL URL must be a valid URL")
	}

	if c.ASR.URL != "" && !isValidURL(c.ASR.URL) {
		errs = append(errs, "ASR URL must be a valid URL")
	}
	if c.MT.URL != "" && !isValidURL(c.MT.URL) {
		errs = append(errs, "MT URL must be a valid URL")
	}
	if c.TTS.URL != "" && !isValidURL(c.TTS.URL) {
		errs = append(errs, "TTS URL must be a valid URL")
	}

	if c.Pipeline.InputSampleRate < 8000 {
		errs = append(errs, "input sample rate must be at least 8000")
	}
	if c.Pipeline.OutputSampleRate < 8000 {
		errs = append(errs, "output sample rate must be at least 8000")
	}
	if c.Pipeline.CycleIntervalMs < 50 {
		errs = append(errs, "cycle interval must be at least 50ms")
	}
	if c.Pipeline.MinBlockMs < 1 || c.Pipeline.MinBlockMs >= c.Pipeline.MaxBlockMs {
		errs = append(errs, "min block duration must be positive and below max block duration")
	}
	if c.Pipeline.ChunkBufferMax < c.Pipeline.MinBlockBytes() {
		errs = append(errs, "chunk buffer max must hold at least one minimum block")
	}
	if c.Pipeline.CycleDeadlineMs < 100 {
		errs = append(errs, "cycle deadline must be at least 100ms")
	}

	if c.Cache.MaxEntries < 1 {
		errs = append(errs, "translation cache must allow at least one entry")
	}
	if c.Cache.TTLSeconds < 1 {
		errs = append(errs, "translation cache TTL must be positive")
	}

	if c.Loader.IdleUnloadSecs < 0 {
		errs = append(errs, "idle unload seconds must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	if path := os.Getenv("BABELROOM_CONFIG"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}

	configDir := filepath.Join(homeDir, ".config", "babelroom")
	configPath := filepath.Join(configDir, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return filepath.Join(homeDir, ".babelroom", "config.json")
}
