package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Error("Server Port should be valid")
	}
	if cfg.Server.Host == "" {
		t.Error("Server Host should not be empty")
	}
	if cfg.Server.MaxRoomSize < 2 {
		t.Error("MaxRoomSize should allow at least two participants")
	}
	if cfg.Server.OutboundDepth <= 0 {
		t.Error("OutboundDepth should be positive")
	}

	if cfg.Pipeline.InputSampleRate != 16000 {
		t.Errorf("expected 16kHz input rate, got %d", cfg.Pipeline.InputSampleRate)
	}
	if cfg.Pipeline.OutputSampleRate != 22050 {
		t.Errorf("expected 22050Hz output rate, got %d", cfg.Pipeline.OutputSampleRate)
	}
	if cfg.Pipeline.ChunkBufferMax != 1<<20 {
		t.Errorf("expected 1MiB chunk buffer, got %d", cfg.Pipeline.ChunkBufferMax)
	}

	if cfg.Cache.MaxEntries != 10000 {
		t.Errorf("expected 10000 cache entries, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Loader.IdleUnloadSecs != 3600 {
		t.Errorf("expected 3600s idle unload, got %d", cfg.Loader.IdleUnloadSecs)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestBlockBytes(t *testing.T) {
	cfg := DefaultConfig().Pipeline

	// 16kHz mono PCM16: 200ms = 6400 bytes, 3s = 96000 bytes
	if got := cfg.MinBlockBytes(); got != 6400 {
		t.Errorf("MinBlockBytes = %d, want 6400", got)
	}
	if got := cfg.MaxBlockBytes(); got != 96000 {
		t.Errorf("MaxBlockBytes = %d, want 96000", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BABELROOM_SERVER_PORT", "9090")
	t.Setenv("BABELROOM_CYCLE_INTERVAL_MS", "250")
	t.Setenv("BABELROOM_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("BABELROOM_CONFIG", "/nonexistent/config.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Pipeline.CycleIntervalMs != 250 {
		t.Errorf("CycleIntervalMs = %d, want 250", cfg.Pipeline.CycleIntervalMs)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"room size one", func(c *Config) { c.Server.MaxRoomSize = 1 }},
		{"min above max block", func(c *Config) { c.Pipeline.MinBlockMs = 5000 }},
		{"tiny chunk buffer", func(c *Config) { c.Pipeline.ChunkBufferMax = 16 }},
		{"bad ASR URL", func(c *Config) { c.ASR.URL = "not-a-url" }},
		{"zero cache", func(c *Config) { c.Cache.MaxEntries = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
