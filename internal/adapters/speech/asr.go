package speech

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/babelroom/babelroom/internal/adapters/circuitbreaker"
	"github.com/babelroom/babelroom/internal/adapters/metrics"
	"github.com/babelroom/babelroom/internal/ports"
)

const (
	transcriptionsPath = "/audio/transcriptions"
	asrTimeout         = 30 * time.Second
)

// ASRAdapter talks to a Whisper-compatible HTTP transcription service.
type ASRAdapter struct {
	client  *Client
	model   string
	breaker *circuitbreaker.CircuitBreaker
}

func NewASRAdapter(endpoint, apiKey, model string) *ASRAdapter {
	if model == "" {
		model = "whisper-large-v3"
	}
	return &ASRAdapter{
		client:  NewClient(endpoint, apiKey),
		model:   model,
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

type whisperResponse struct {
	Text                string  `json:"text"`
	Language            string  `json:"language,omitempty"`
	LanguageProbability float32 `json:"language_probability,omitempty"`
	Duration            float32 `json:"duration,omitempty"`
}

func (a *ASRAdapter) Transcribe(ctx context.Context, pcm []byte, sampleRate int, languageHint string) (*ports.ASRResult, error) {
	var result *ports.ASRResult
	err := a.breaker.Execute(func() error {
		var err error
		result, err = a.doTranscribe(ctx, pcm, sampleRate, languageHint)
		return err
	})
	return result, err
}

func (a *ASRAdapter) doTranscribe(ctx context.Context, pcm []byte, sampleRate int, languageHint string) (*ports.ASRResult, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio data is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, asrTimeout)
	defer cancel()

	fields := map[string]string{
		"model":           a.model,
		"response_format": "verbose_json",
		"vad_filter":      "true",
		"sample_rate":     strconv.Itoa(sampleRate),
	}
	if languageHint != "" && languageHint != "auto" {
		fields["language"] = languageHint
	}

	start := time.Now()
	var response whisperResponse
	if err := a.client.PostMultipart(ctx, transcriptionsPath, fields, "file", "audio.wav", wrapWAV(pcm, sampleRate), &response); err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	metrics.ASRRequestDuration.Observe(time.Since(start).Seconds())

	detected := response.Language
	if detected == "" {
		detected = languageHint
	}

	return &ports.ASRResult{
		Text:               response.Text,
		DetectedLanguage:   detected,
		LanguageConfidence: response.LanguageProbability,
		Duration:           response.Duration,
	}, nil
}
