package speech

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestASRAdapterTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != transcriptionsPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("language"); got != "pt" {
			t.Errorf("language hint = %q, want pt", got)
		}
		if got := r.FormValue("vad_filter"); got != "true" {
			t.Errorf("vad_filter = %q", got)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		header := make([]byte, 4)
		if _, err := file.Read(header); err != nil || string(header) != "RIFF" {
			t.Errorf("upload is not a WAV container: %q %v", header, err)
		}

		json.NewEncoder(w).Encode(whisperResponse{
			Text:                "Olá mundo",
			Language:            "pt",
			LanguageProbability: 0.97,
			Duration:            0.8,
		})
	}))
	defer srv.Close()

	adapter := NewASRAdapter(srv.URL, "", "whisper-large-v3")
	pcm := make([]byte, 6400)
	result, err := adapter.Transcribe(context.Background(), pcm, 16000, "pt")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if result.Text != "Olá mundo" {
		t.Errorf("Text = %q", result.Text)
	}
	if result.DetectedLanguage != "pt" {
		t.Errorf("DetectedLanguage = %q", result.DetectedLanguage)
	}
	if result.LanguageConfidence < 0.9 {
		t.Errorf("LanguageConfidence = %f", result.LanguageConfidence)
	}
}

func TestASRAdapterRejectsEmptyAudio(t *testing.T) {
	adapter := NewASRAdapter("http://localhost:1", "", "")
	if _, err := adapter.Transcribe(context.Background(), nil, 16000, ""); err == nil {
		t.Error("expected error for empty audio")
	}
}

func TestWrapWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := wrapWAV(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != 4 {
		t.Errorf("data size = %d", size)
	}
}
