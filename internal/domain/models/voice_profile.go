package models

import (
	"time"

	"github.com/google/uuid"
)

// VoiceProfile points at the reference audio sample TTS uses to clone a
// speaker's voice. The sample itself lives on disk; the record only
// carries its path.
type VoiceProfile struct {
	UserID             uuid.UUID `json:"user_id"`
	ReferenceAudioPath string    `json:"reference_audio_path"`
	Language           string    `json:"language"`
	CreatedAt          time.Time `json:"created_at"`
}

// VoiceReference is what the TTS port receives: the on-disk sample plus
// the language it was recorded in.
type VoiceReference struct {
	Path     string
	Language string
}
