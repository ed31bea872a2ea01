package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
)

var _ ports.Transcriber = (*WhisperTranscriber)(nil)

func TestWhisperTranscriber_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-test", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		f, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "RIFFdata", string(data))
		}

		json.NewEncoder(w).Encode(map[string]string{"text": " I feel so anxious lately \n"})
	}))
	defer server.Close()

	tr := NewWhisperTranscriber(Options{
		BaseURL:  server.URL + "/v1/",
		APIKey:   "secret",
		Model:    "whisper-test",
		Language: "en",
	}, zerolog.Nop())

	text, err := tr.Transcribe(context.Background(), []byte("RIFFdata"))
	require.NoError(t, err)
	assert.Equal(t, "I feel so anxious lately", text)
}

func TestWhisperTranscriber_NoSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	}))
	defer server.Close()

	tr := NewWhisperTranscriber(Options{BaseURL: server.URL}, zerolog.Nop())

	_, err := tr.Transcribe(context.Background(), []byte("RIFF"))
	assert.ErrorIs(t, err, entities.ErrNoSpeech)

	_, err = tr.Transcribe(context.Background(), nil)
	assert.ErrorIs(t, err, entities.ErrNoSpeech)
}

func TestWhisperTranscriber_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tr := NewWhisperTranscriber(Options{BaseURL: server.URL}, zerolog.Nop())
	_, err := tr.Transcribe(context.Background(), []byte("RIFF"))

	require.Error(t, err)
	assert.NotErrorIs(t, err, entities.ErrNoSpeech)
	assert.Contains(t, err.Error(), "503")
}

func TestWhisperTranscriber_Defaults(t *testing.T) {
	tr := NewWhisperTranscriber(Options{}, zerolog.Nop())
	assert.Equal(t, DefaultBaseURL, tr.baseURL)
	assert.Equal(t, DefaultModel, tr.model)
}
