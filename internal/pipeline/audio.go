package pipeline

import (
	"encoding/binary"
	"math"
	"strings"
)

// pcm16ToFloat32 converts little-endian PCM16 bytes to normalized
// float32 samples in [-1, 1]. A trailing odd byte is ignored.
func pcm16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// rmsOf returns the root mean square energy of normalized samples.
func rmsOf(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// noiseTokens are transcripts Whisper emits for silence or breathing.
var noiseTokens = map[string]struct{}{
	"...": {},
	".":   {},
	",":   {},
	"?":   {},
	"!":   {},
}

// isNoiseTranscript reports whether a transcript carries no speech.
func isNoiseTranscript(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	_, ok := noiseTokens[trimmed]
	return ok
}

// splitForTTS breaks long text into synthesis segments of at most max
// characters, preferring sentence boundaries, then word boundaries.
func splitForTTS(text string, max int) []string {
	text = strings.TrimSpace(text)
	if max <= 0 || len(text) <= max {
		return []string{text}
	}

	var segments []string
	var current strings.Builder
	for _, sentence := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+1+len(sentence) > max {
			segments = append(segments, current.String())
			current.Reset()
		}
		if len(sentence) > max {
			if current.Len() > 0 {
				segments = append(segments, current.String())
				current.Reset()
			}
			segments = append(segments, splitWords(sentence, max)...)
			continue
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

// splitSentences cuts text after sentence-final punctuation.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			if s := strings.TrimSpace(text[start:end]); s != "" {
				out = append(out, s)
			}
			start = end
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// splitWords hard-wraps an oversized sentence on spaces.
func splitWords(sentence string, max int) []string {
	var out []string
	var current strings.Builder
	for _, word := range strings.Fields(sentence) {
		if current.Len() > 0 && current.Len()+1+len(word) > max {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
