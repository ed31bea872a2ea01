// Package speech provides the speech-to-text adapter implementing
// ports.Transcriber against an OpenAI-compatible transcription endpoint
// (OpenAI, whisper.cpp server, faster-whisper servers).
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
)

const (
	DefaultBaseURL = "http://localhost:8080/v1"
	DefaultModel   = "whisper-1"
)

// Options configures the transcriber. Zero values select defaults.
type Options struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string // ISO-639-1 hint, optional
	Timeout  time.Duration
}

// WhisperTranscriber calls POST {BaseURL}/audio/transcriptions.
type WhisperTranscriber struct {
	baseURL  string
	apiKey   string
	model    string
	language string
	client   *http.Client
	logger   zerolog.Logger
}

// NewWhisperTranscriber creates a transcriber.
func NewWhisperTranscriber(opts Options, logger zerolog.Logger) *WhisperTranscriber {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &WhisperTranscriber{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		model:    opts.Model,
		language: opts.Language,
		client:   &http.Client{Timeout: opts.Timeout},
		logger:   logger.With().Str("component", "speech").Logger(),
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends WAV audio for recognition. An empty transcript yields
// entities.ErrNoSpeech.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", entities.ErrNoSpeech
	}

	body, contentType, err := t.encode(audio)
	if err != nil {
		return "", fmt.Errorf("encoding audio: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	text := strings.TrimSpace(out.Text)
	t.logger.Debug().
		Int("audio_bytes", len(audio)).
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("transcription received")
	if text == "" {
		return "", entities.ErrNoSpeech
	}
	return text, nil
}

func (t *WhisperTranscriber) encode(audio []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "speech.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model", t.model); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}
	if t.language != "" {
		if err := w.WriteField("language", t.language); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
