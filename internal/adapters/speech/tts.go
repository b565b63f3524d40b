package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/babelroom/babelroom/internal/adapters/circuitbreaker"
	"github.com/babelroom/babelroom/internal/adapters/metrics"
	"github.com/babelroom/babelroom/internal/domain/models"
	"github.com/babelroom/babelroom/internal/ports"
)

const (
	synthesisPath = "/audio/synthesis"
	ttsTimeout    = 30 * time.Second
)

// TTSAdapter talks to an XTTS-compatible HTTP synthesis service that
// supports voice cloning from a reference sample.
type TTSAdapter struct {
	client     *Client
	model      string
	sampleRate int
	breaker    *circuitbreaker.CircuitBreaker
}

func NewTTSAdapter(endpoint, apiKey, model string, sampleRate int) *TTSAdapter {
	if model == "" {
		model = "xtts_v2"
	}
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	return &TTSAdapter{
		client:     NewClient(endpoint, apiKey),
		model:      model,
		sampleRate: sampleRate,
		breaker:    circuitbreaker.New(5, 30*time.Second),
	}
}

type synthesisRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
	SpeakerWAV string `json:"speaker_wav,omitempty"`
	Format     string `json:"response_format"`
}

type synthesisResponse struct {
	Audio      string `json:"audio"` // base64 PCM16 LE
	SampleRate int    `json:"sample_rate"`
	VoiceUsed  bool   `json:"voice_used"`
}

func (t *TTSAdapter) Synthesize(ctx context.Context, text, language string, ref *models.VoiceReference) (*ports.TTSResult, error) {
	var result *ports.TTSResult
	err := t.breaker.Execute(func() error {
		var err error
		result, err = t.doSynthesize(ctx, text, language, ref)
		return err
	})
	return result, err
}

func (t *TTSAdapter) doSynthesize(ctx context.Context, text, language string, ref *models.VoiceReference) (*ports.TTSResult, error) {
	if text == "" {
		return nil, fmt.Errorf("text is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, ttsTimeout)
	defer cancel()

	req := synthesisRequest{
		Model:      t.model,
		Input:      text,
		Language:   language,
		SampleRate: t.sampleRate,
		Format:     "pcm_s16le",
	}
	if ref != nil {
		req.SpeakerWAV = ref.Path
	}

	start := time.Now()
	var response synthesisResponse
	if err := t.client.PostJSON(ctx, synthesisPath, req, &response); err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	metrics.TTSRequestDuration.Observe(time.Since(start).Seconds())

	pcm, err := base64.StdEncoding.DecodeString(response.Audio)
	if err != nil {
		return nil, fmt.Errorf("invalid audio payload: %w", err)
	}

	rate := response.SampleRate
	if rate == 0 {
		rate = t.sampleRate
	}

	return &ports.TTSResult{
		PCM:        pcm,
		SampleRate: rate,
		VoiceUsed:  ref != nil && response.VoiceUsed,
	}, nil
}
