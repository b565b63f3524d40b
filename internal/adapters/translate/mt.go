// Package translate adapts an NLLB-compatible HTTP machine-translation
// service to the MT port.
package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/babelroom/babelroom/internal/adapters/circuitbreaker"
	"github.com/babelroom/babelroom/internal/adapters/metrics"
	"github.com/babelroom/babelroom/internal/adapters/speech"
)

const (
	translationPath = "/translate"
	mtTimeout       = 15 * time.Second
)

type MTAdapter struct {
	client  *speech.Client
	model   string
	breaker *circuitbreaker.CircuitBreaker
}

func NewMTAdapter(endpoint, apiKey, model string) *MTAdapter {
	if model == "" {
		model = "nllb-200-distilled-600M"
	}
	return &MTAdapter{
		client:  speech.NewClient(endpoint, apiKey),
		model:   model,
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

type translationRequest struct {
	Model      string `json:"model"`
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translationResponse struct {
	Translation string `json:"translation"`
}

func (m *MTAdapter) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if text == "" {
		return "", nil
	}
	if sourceLang == targetLang {
		return text, nil
	}

	var translated string
	err := m.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, mtTimeout)
		defer cancel()

		req := translationRequest{
			Model:      m.model,
			Text:       text,
			SourceLang: sourceLang,
			TargetLang: targetLang,
		}

		start := time.Now()
		var resp translationResponse
		if err := m.client.PostJSON(ctx, translationPath, req, &resp); err != nil {
			return fmt.Errorf("translation failed: %w", err)
		}
		metrics.MTRequestDuration.Observe(time.Since(start).Seconds())

		translated = resp.Translation
		return nil
	})
	if err != nil {
		return "", err
	}
	return translated, nil
}
