// Package protocol defines the JSON wire frames exchanged on the room
// WebSocket. Inbound frames are discriminated by the "type" tag; unknown
// tags are logged and dropped by the handler.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/babelroom/babelroom/internal/domain/models"
)

// Inbound frame types.
const (
	TypeInitSettings   = "init_settings"
	TypeLanguageUpdate = "language_update"
	TypeAudioChunk     = "audio_chunk"
	TypeControl        = "control"
	TypeWebRTCOffer    = "webrtc_offer"
	TypeWebRTCAnswer   = "webrtc_answer"
	TypeICECandidate   = "ice_candidate"
)

// Outbound frame types.
const (
	TypeConnected          = "connected"
	TypeParticipantJoined  = "participant_joined"
	TypeParticipantLeft    = "participant_left"
	TypeLanguageUpdated    = "language_updated"
	TypeMuteStatus         = "mute_status"
	TypePartialTranscript  = "partial_transcript"
	TypePartialTranslation = "partial_translation"
	TypeTranslatedAudio    = "translated_audio"
	TypeError              = "error"
)

// Control actions.
const (
	ActionMute   = "mute"
	ActionUnmute = "unmute"
)

// Pipeline stages reported in error frames.
const (
	StageASR  = "asr"
	StageMT   = "mt"
	StageTTS  = "tts"
	StageSend = "send"
)

// WebSocket close codes. 1000/1008/1011 are standard; 4001 signals the
// connection was replaced by a newer one for the same (user, room).
const (
	CloseNormal   = 1000
	ClosePolicy   = 1008
	CloseInternal = 1011
	CloseReplaced = 4001

	ReasonReplaced   = "replaced by new connection"
	ReasonAuth       = "authentication failed"
	ReasonRoomFull   = "room is full"
	ReasonNoSuchRoom = "room does not exist"
)

// Envelope is the minimally-decoded inbound frame: the tag plus the raw
// bytes, re-decoded into the concrete shape by the handler.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// ParseEnvelope extracts the discriminator without decoding the payload.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if probe.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return &Envelope{Type: probe.Type, Raw: data}, nil
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

// InitSettings configures a connection's languages and starts processing.
type InitSettings struct {
	InputLanguage        string   `json:"input_language"`
	OutputLanguage       string   `json:"output_language"`
	SpeaksLanguages      []string `json:"speaks_languages,omitempty"`
	UnderstandsLanguages []string `json:"understands_languages,omitempty"`
	VoiceProfileExists   bool     `json:"voice_profile_exists,omitempty"`
}

// LanguageUpdate hot-swaps languages; the next cycle uses the new values.
type LanguageUpdate struct {
	InputLanguage        string   `json:"input_language"`
	OutputLanguage       string   `json:"output_language"`
	SpeaksLanguages      []string `json:"speaks_languages,omitempty"`
	UnderstandsLanguages []string `json:"understands_languages,omitempty"`
}

// AudioChunk carries base64 PCM16 LE 16kHz mono input audio.
type AudioChunk struct {
	AudioData string `json:"audio_data"`
	Timestamp int64  `json:"timestamp"`
}

// Control carries mute/unmute actions.
type Control struct {
	Action string `json:"action"`
}

// Signal is the common shape of the three WebRTC signaling frames. The
// SDP/candidate payloads are opaque to the relay and never inspected.
type Signal struct {
	TargetUserID string          `json:"target_user_id"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

// ForwardedSignal is a Signal re-addressed with the sender's id.
type ForwardedSignal struct {
	Type       string          `json:"type"`
	FromUserID string          `json:"from_user_id"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

// Connected confirms a successful authenticate-and-register handshake.
type Connected struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
}

// ParticipantJoined announces a new room member with a roster snapshot.
type ParticipantJoined struct {
	Type         string               `json:"type"`
	UserID       string               `json:"user_id"`
	UserName     string               `json:"user_name"`
	Participants []models.Participant `json:"participants"`
}

// ParticipantLeft announces a departure with the remaining roster.
type ParticipantLeft struct {
	Type         string               `json:"type"`
	UserID       string               `json:"user_id"`
	Participants []models.Participant `json:"participants"`
}

// LanguageUpdated acknowledges init_settings / language_update.
type LanguageUpdated struct {
	Type           string `json:"type"`
	InputLanguage  string `json:"input_language"`
	OutputLanguage string `json:"output_language"`
}

// MuteStatus acknowledges a control frame.
type MuteStatus struct {
	Type  string `json:"type"`
	Muted bool   `json:"muted"`
}

// PartialTranscript is the speaker-side early caption.
type PartialTranscript struct {
	Type      string  `json:"type"`
	UserID    string  `json:"user_id"`
	Text      string  `json:"text"`
	Language  string  `json:"language"`
	Timestamp float64 `json:"timestamp"`
}

// PartialTranslation is the listener-side early caption, sent before TTS.
type PartialTranslation struct {
	Type       string  `json:"type"`
	FromUserID string  `json:"from_user_id"`
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Timestamp  float64 `json:"timestamp"`
}

// AudioPayload is the synthesized audio body of a translated_audio frame.
type AudioPayload struct {
	Data       string `json:"data"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// TranslatedAudio delivers one synthesized cycle to one listener. Seq is
// monotonic per (speaker, listener) so a client jitter buffer can reorder.
type TranslatedAudio struct {
	Type             string       `json:"type"`
	UserID           string       `json:"user_id"`
	Seq              uint64       `json:"seq"`
	Audio            AudioPayload `json:"audio"`
	Text             string       `json:"text"`
	OriginalText     string       `json:"original_text"`
	Language         string       `json:"language"`
	DetectedLanguage string       `json:"detected_language"`
	VoiceFallback    bool         `json:"voice_fallback"`
	Timestamp        float64      `json:"timestamp"`
}

// ErrorFrame reports a recoverable pipeline failure to the speaker.
type ErrorFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Stage string `json:"stage,omitempty"`
}

const EncodingPCMS16LE = "pcm_s16le"
