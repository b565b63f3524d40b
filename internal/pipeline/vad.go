package pipeline

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"
)

const (
	vadSampleRate = 16000
	vadThreshold  = 0.5
)

// VADGate wraps a silero detector as an optional pre-ASR speech gate.
// The energy gate catches digital silence cheaply; the VAD additionally
// rejects keyboard noise and background hum that carries energy but no
// speech. A nil *VADGate passes everything through.
type VADGate struct {
	mu       sync.Mutex
	detector *speech.Detector
}

// NewVADGate loads the silero model at modelPath. An empty path returns
// a nil gate, which disables VAD filtering.
func NewVADGate(modelPath string) (*VADGate, error) {
	if modelPath == "" {
		return nil, nil
	}
	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           vadSampleRate,
		Threshold:            vadThreshold,
		MinSilenceDurationMs: 500,
		SpeechPadMs:          100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VAD detector: %w", err)
	}
	return &VADGate{detector: detector}, nil
}

// HasSpeech reports whether the block contains at least one detected
// speech segment. Detector errors fail open so a broken VAD never mutes
// a speaker.
func (g *VADGate) HasSpeech(samples []float32) bool {
	if g == nil {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	segments, err := g.detector.Detect(samples)
	if err != nil {
		return true
	}
	g.detector.Reset()
	return len(segments) > 0
}

// Close releases the detector resources.
func (g *VADGate) Close() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.detector.Destroy()
}
