// Package pipeline runs one translation loop per speaker: buffered
// audio is drained on a fixed cadence, transcribed, translated per
// listener language and synthesized back to speech.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/babelroom/babelroom/internal/adapters/metrics"
	"github.com/babelroom/babelroom/internal/config"
	"github.com/babelroom/babelroom/internal/domain/models"
	"github.com/babelroom/babelroom/internal/loader"
	"github.com/babelroom/babelroom/internal/ports"
	"github.com/babelroom/babelroom/internal/protocol"
	"github.com/babelroom/babelroom/internal/tcache"
)

// ErrNotRunning is returned by Feed when the processor is not accepting
// audio.
var ErrNotRunning = errors.New("processor not running")

// duplicateWindow suppresses identical consecutive transcripts, which
// Whisper produces when the tail of an utterance is drained twice.
const duplicateWindow = 1500 * time.Millisecond

// State is the processor lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// Listener is one translation target in the speaker's room.
type Listener struct {
	UserID   uuid.UUID
	Language string
}

// RosterFunc returns the speaker's current listeners, excluding the
// speaker. It is called once per cycle so joins and leaves take effect
// on the next drain.
type RosterFunc func() []Listener

// Delivery abstracts the connection hub. SendToUser reports false when
// the target has no connection; Broadcast fans out to the whole room.
type Delivery interface {
	SendToUser(userID uuid.UUID, frame any) bool
	Broadcast(frame any)
}

// Settings is the speaker's language configuration.
type Settings struct {
	InputLanguage   string
	OutputLanguage  string
	SpeaksLanguages []string
}

// Deps bundles the collaborators a Processor needs.
type Deps struct {
	ASR    ports.ASRPort
	MT     ports.MTPort
	TTS    ports.TTSPort
	Voices ports.VoiceProfilePort
	Loader *loader.Loader
	Cache  *tcache.Cache
	Gate   *VADGate
	Cfg    config.PipelineConfig
	Logger *slog.Logger
}

// Processor drives one speaker's translation loop.
type Processor struct {
	roomID    string
	speakerID uuid.UUID
	deps      Deps
	buf       *ChunkBuffer
	roster    RosterFunc
	delivery  Delivery
	logger    *slog.Logger

	mu               sync.Mutex
	state            State
	settings         Settings
	muted            bool
	lastGoodLang     string
	lastTranscript   string
	lastTranscriptAt time.Time
	seq              map[uuid.UUID]uint64
	voiceRef         *models.VoiceReference

	cancel context.CancelFunc
	done   chan struct{}
}

// NewProcessor creates an idle processor for one (speaker, room) pair.
func NewProcessor(roomID string, speakerID uuid.UUID, settings Settings, roster RosterFunc, delivery Delivery, deps Deps) *Processor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings.InputLanguage = models.NormalizeLanguage(settings.InputLanguage)
	settings.OutputLanguage = models.NormalizeLanguage(settings.OutputLanguage)
	return &Processor{
		roomID:    roomID,
		speakerID: speakerID,
		deps:      deps,
		buf:       NewChunkBuffer(deps.Cfg.ChunkBufferMax),
		roster:    roster,
		delivery:  delivery,
		logger:    logger.With("room_id", roomID, "user_id", speakerID),
		settings:  settings,
		seq:       make(map[uuid.UUID]uint64),
	}
}

// Start launches the cycle goroutine. Calling Start on a running
// processor is a no-op.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.state == StateRunning {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.state = StateRunning
	p.cancel = cancel
	p.done = make(chan struct{})
	p.mu.Unlock()

	if p.deps.Voices != nil {
		if ref, err := p.deps.Voices.Get(ctx, p.speakerID); err == nil {
			p.mu.Lock()
			p.voiceRef = ref
			p.mu.Unlock()
		} else {
			p.logger.Warn("voice profile lookup failed", "error", err)
		}
	}

	go p.run(ctx)
}

// Stop terminates the loop and waits for the in-flight cycle to finish.
// Idempotent.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.state = StateStopped
		p.mu.Unlock()
		return
	}
	p.state = StateStopping
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
}

// CurrentState reports the lifecycle state.
func (p *Processor) CurrentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Feed appends decoded PCM16 audio to the chunk buffer.
func (p *Processor) Feed(pcm []byte) error {
	p.mu.Lock()
	running := p.state == StateRunning
	p.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	p.buf.Push(pcm)
	return nil
}

// UpdateSettings hot-swaps languages; the next cycle uses the new
// values. Changing the input language resets the detected-language
// memory.
func (p *Processor) UpdateSettings(s Settings) {
	s.InputLanguage = models.NormalizeLanguage(s.InputLanguage)
	s.OutputLanguage = models.NormalizeLanguage(s.OutputLanguage)

	p.mu.Lock()
	defer p.mu.Unlock()
	if s.InputLanguage != p.settings.InputLanguage {
		p.lastGoodLang = ""
	}
	p.settings = s
}

// Languages returns the current normalized input and output languages.
func (p *Processor) Languages() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.InputLanguage, p.settings.OutputLanguage
}

// SetMuted toggles the mute flag. While muted, buffered audio is
// discarded and no cycles run.
func (p *Processor) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
	if muted {
		p.buf.Reset()
	}
}

// Muted reports the mute flag.
func (p *Processor) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.deps.Cfg.CycleInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Processor) cycle(ctx context.Context) {
	if p.Muted() {
		p.buf.Reset()
		metrics.PipelineCycles.WithLabelValues("muted").Inc()
		return
	}
	if p.buf.Len() < p.deps.Cfg.MinBlockBytes() {
		metrics.PipelineCycles.WithLabelValues("empty").Inc()
		return
	}

	block := p.buf.Drain(p.deps.Cfg.MaxBlockBytes())
	samples := pcm16ToFloat32(block)

	if rmsOf(samples) < p.deps.Cfg.SilenceRMS {
		metrics.PipelineCycles.WithLabelValues("silence").Inc()
		return
	}
	if !p.deps.Gate.HasSpeech(samples) {
		metrics.PipelineCycles.WithLabelValues("no_speech").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.deps.Cfg.CycleDeadline())
	defer cancel()

	if err := p.ensureModel(ctx, loader.KindASR); err != nil {
		p.logger.Warn("dropping block, ASR unavailable", "error", err)
		p.sendError("speech recognition unavailable", protocol.StageASR)
		metrics.PipelineCycles.WithLabelValues("model_unavailable").Inc()
		return
	}

	result, err := p.deps.ASR.Transcribe(ctx, block, p.deps.Cfg.InputSampleRate, p.languageHint())
	if err != nil {
		p.logger.Error("transcription failed", "error", err)
		p.sendError("transcription failed", protocol.StageASR)
		metrics.PipelineCycles.WithLabelValues("asr_error").Inc()
		return
	}

	text := strings.TrimSpace(result.Text)
	if isNoiseTranscript(text) {
		metrics.PipelineCycles.WithLabelValues("noise").Inc()
		return
	}
	if p.isDuplicate(text) {
		metrics.PipelineCycles.WithLabelValues("duplicate").Inc()
		return
	}

	srcLang := p.resolveSourceLanguage(result)
	now := float64(time.Now().UnixMilli()) / 1000

	p.delivery.Broadcast(&protocol.PartialTranscript{
		Type:      protocol.TypePartialTranscript,
		UserID:    p.speakerID.String(),
		Text:      text,
		Language:  srcLang,
		Timestamp: now,
	})

	p.fanOut(ctx, text, srcLang, models.NormalizeLanguage(result.DetectedLanguage), now)
	metrics.PipelineCycles.WithLabelValues("ok").Inc()
}

// fanOut translates and synthesizes for each listener. MT runs at most
// once per target language per cycle; failures on one listener never
// block the others.
func (p *Processor) fanOut(ctx context.Context, text, srcLang, detected string, now float64) {
	memo := make(map[string]string)
	voiceRef := p.currentVoiceRef()

	for _, listener := range p.roster() {
		tgt := models.NormalizeLanguage(listener.Language)
		if tgt == "" {
			tgt = "en"
		}

		translated, ok := memo[tgt]
		if !ok {
			var err error
			translated, err = p.translate(ctx, text, srcLang, tgt)
			if err != nil {
				p.logger.Error("translation failed", "target_lang", tgt, "error", err)
				p.sendError("translation failed", protocol.StageMT)
				continue
			}
			memo[tgt] = translated
		}
		if translated == "" {
			continue
		}

		p.delivery.SendToUser(listener.UserID, &protocol.PartialTranslation{
			Type:       protocol.TypePartialTranslation,
			FromUserID: p.speakerID.String(),
			Text:       translated,
			Language:   tgt,
			Timestamp:  now,
		})

		audio, err := p.synthesize(ctx, translated, tgt, voiceRef)
		if err != nil {
			p.logger.Error("synthesis failed", "target_lang", tgt, "error", err)
			continue
		}

		frame := &protocol.TranslatedAudio{
			Type:   protocol.TypeTranslatedAudio,
			UserID: p.speakerID.String(),
			Seq:    p.nextSeq(listener.UserID),
			Audio: protocol.AudioPayload{
				Data:       base64.StdEncoding.EncodeToString(audio.PCM),
				Encoding:   protocol.EncodingPCMS16LE,
				SampleRate: audio.SampleRate,
			},
			Text:             translated,
			OriginalText:     text,
			Language:         tgt,
			DetectedLanguage: detected,
			VoiceFallback:    voiceRef != nil && !audio.VoiceUsed,
			Timestamp:        now,
		}
		if !p.delivery.SendToUser(listener.UserID, frame) {
			metrics.SlowConsumerDrops.Inc()
		}
	}
}

// translate resolves text into tgt, consulting the shared cache before
// calling the MT service.
func (p *Processor) translate(ctx context.Context, text, srcLang, tgt string) (string, error) {
	if tgt == srcLang {
		return text, nil
	}
	if p.deps.Cache != nil {
		if cached, ok := p.deps.Cache.Get(text, srcLang, tgt); ok {
			return cached, nil
		}
	}
	if err := p.ensureModel(ctx, loader.KindMT); err != nil {
		return "", err
	}
	translated, err := p.deps.MT.Translate(ctx, text, srcLang, tgt)
	if err != nil {
		return "", err
	}
	if p.deps.Cache != nil && translated != "" {
		p.deps.Cache.Put(text, srcLang, tgt, translated)
	}
	return translated, nil
}

// synthesize runs TTS over sentence-sized segments and concatenates the
// PCM. A failure with a voice reference is retried once with the
// default voice.
func (p *Processor) synthesize(ctx context.Context, text, lang string, ref *models.VoiceReference) (*ports.TTSResult, error) {
	if err := p.ensureModel(ctx, loader.KindTTS); err != nil {
		return nil, err
	}

	result, err := p.synthesizeSegments(ctx, text, lang, ref)
	if err != nil && ref != nil {
		p.logger.Warn("cloned-voice synthesis failed, retrying with default voice", "error", err)
		result, err = p.synthesizeSegments(ctx, text, lang, nil)
	}
	return result, err
}

func (p *Processor) synthesizeSegments(ctx context.Context, text, lang string, ref *models.VoiceReference) (*ports.TTSResult, error) {
	segments := splitForTTS(text, p.deps.Cfg.MaxTTSChars)

	combined := &ports.TTSResult{VoiceUsed: ref != nil}
	for _, segment := range segments {
		res, err := p.deps.TTS.Synthesize(ctx, segment, lang, ref)
		if err != nil {
			return nil, err
		}
		combined.PCM = append(combined.PCM, res.PCM...)
		combined.SampleRate = res.SampleRate
		combined.VoiceUsed = combined.VoiceUsed && res.VoiceUsed
	}
	return combined, nil
}

func (p *Processor) ensureModel(ctx context.Context, kind loader.Kind) error {
	if p.deps.Loader == nil {
		return nil
	}
	return p.deps.Loader.Ensure(ctx, kind)
}

// languageHint picks the ASR hint: the configured input language, or
// the last confidently detected one when the speaker is on auto.
func (p *Processor) languageHint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings.InputLanguage != "" && p.settings.InputLanguage != "auto" {
		return p.settings.InputLanguage
	}
	return p.lastGoodLang
}

// resolveSourceLanguage decides the language the transcript is in and
// updates the detected-language memory.
func (p *Processor) resolveSourceLanguage(result *ports.ASRResult) string {
	detected := models.NormalizeLanguage(result.DetectedLanguage)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.settings.InputLanguage != "" && p.settings.InputLanguage != "auto" {
		return p.settings.InputLanguage
	}

	if detected != "" && result.LanguageConfidence >= 0.70 {
		p.lastGoodLang = detected
		return detected
	}
	if p.lastGoodLang != "" {
		return p.lastGoodLang
	}
	if len(p.settings.SpeaksLanguages) > 0 {
		return models.NormalizeLanguage(p.settings.SpeaksLanguages[0])
	}
	if detected != "" {
		return detected
	}
	return "en"
}

func (p *Processor) currentVoiceRef() *models.VoiceReference {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceRef
}

func (p *Processor) isDuplicate(text string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if text == p.lastTranscript && now.Sub(p.lastTranscriptAt) < duplicateWindow {
		return true
	}
	p.lastTranscript = text
	p.lastTranscriptAt = now
	return false
}

func (p *Processor) nextSeq(listenerID uuid.UUID) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq[listenerID]++
	return p.seq[listenerID]
}

func (p *Processor) sendError(text, stage string) {
	p.delivery.SendToUser(p.speakerID, &protocol.ErrorFrame{
		Type:  protocol.TypeError,
		Text:  text,
		Stage: stage,
	})
}
