// Package ports declares the interfaces the translation core consumes.
// Concrete adapters live under internal/adapters; the pipeline and hub
// depend only on these types.
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/babelroom/babelroom/internal/domain/models"
)

// AuthPort validates a bearer token and yields the authenticated user id.
type AuthPort interface {
	Validate(ctx context.Context, token string) (uuid.UUID, error)
}

// UserDirectory resolves user records for roster snapshots and language
// preference defaults.
type UserDirectory interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// RoomRegistry answers whether a room exists. Room lifecycle is owned by
// the REST collaborator.
type RoomRegistry interface {
	Exists(ctx context.Context, roomID string) (bool, error)
}

// ASRResult is the outcome of one transcription call.
type ASRResult struct {
	Text               string  `json:"text"`
	DetectedLanguage   string  `json:"detected_language"`
	LanguageConfidence float32 `json:"language_confidence"`
	Duration           float32 `json:"duration,omitempty"`
}

// ASRPort transcribes little-endian PCM16 mono audio. languageHint may be
// empty for autodetection; implementations run VAD filtering internally.
type ASRPort interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, languageHint string) (*ASRResult, error)
}

// MTPort translates text between languages.
type MTPort interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// TTSResult carries synthesized PCM16 audio and whether the requested
// voice reference was honored. VoiceUsed false with a non-nil reference
// means the synthesizer fell back to its default voice.
type TTSResult struct {
	PCM        []byte
	SampleRate int
	VoiceUsed  bool
}

// TTSPort synthesizes speech. ref may be nil for the default voice.
type TTSPort interface {
	Synthesize(ctx context.Context, text, language string, ref *models.VoiceReference) (*TTSResult, error)
}

// VoiceProfilePort retrieves a speaker's cloning reference. A nil result
// with a nil error means no usable profile exists.
type VoiceProfilePort interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.VoiceReference, error)
}

// IDGenerator mints connection ids for log correlation.
type IDGenerator interface {
	GenerateConnectionID() string
}
