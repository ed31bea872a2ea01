// Package usecases - conversation.go holds one session's turn-taking loop.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
)

// ApologyMessage is shown to the user when their speech could not be understood.
const ApologyMessage = "Sorry, I did not get that"

// Responder produces the assistant answer for a message and its history.
type Responder interface {
	Compose(ctx context.Context, message string, history []entities.Turn) (*entities.ChatResponse, error)
}

// State is the conversation loop state.
type State int

const (
	StateIdle State = iota
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResponding:
		return "responding"
	}
	return "unknown"
}

// RecognitionKind classifies why speech input failed.
type RecognitionKind string

const (
	RecognitionNoSpeech RecognitionKind = "no_speech" // audio held nothing recognizable
	RecognitionCapture  RecognitionKind = "capture"   // recording failed or is not configured
	RecognitionService  RecognitionKind = "service"   // transcription service failed
)

// RecognitionError is returned when audio input could not become a message.
type RecognitionError struct {
	Kind RecognitionKind
	Err  error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("speech recognition failed (%s): %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

var errAudioNotConfigured = errors.New("audio input not configured")

// UserMessage converts a turn error into the text shown to the user.
func UserMessage(err error) string {
	var recErr *RecognitionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &recErr):
		return ApologyMessage
	case errors.Is(err, entities.ErrBusy):
		return "Please wait, I'm still answering your last message."
	case errors.Is(err, entities.ErrEmptyMessage):
		return "Please type a message."
	case errors.Is(err, entities.ErrRetrievalShortfall):
		return "I don't have enough material to answer that yet."
	}
	return "Sorry, something went wrong. Please try again."
}

// Exchange is one completed user/assistant round.
type Exchange struct {
	User     entities.Turn
	Response *entities.ChatResponse
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithTranscriber enables the audio path.
func WithTranscriber(t ports.Transcriber) Option {
	return func(c *Conversation) { c.transcriber = t }
}

// WithRecorder sets the capture device for SubmitAudio.
func WithRecorder(r ports.AudioRecorder) Option {
	return func(c *Conversation) { c.recorder = r }
}

// WithLogger sets the conversation logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Conversation) { c.logger = l }
}

// Conversation owns the ordered history of a session. Both turns of a round
// are appended together, user first, only after a response is obtained.
type Conversation struct {
	id          string
	responder   Responder
	transcriber ports.Transcriber
	recorder    ports.AudioRecorder
	logger      zerolog.Logger

	mu        sync.Mutex
	state     State
	history   []entities.Turn
	updatedAt time.Time
}

// NewConversation creates an idle conversation with empty history.
func NewConversation(id string, responder Responder, opts ...Option) *Conversation {
	c := &Conversation{
		id:        id,
		responder: responder,
		logger:    zerolog.Nop(),
		history:   []entities.Turn{},
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "conversation").Str("session", id).Logger()
	return c
}

// ID returns the session id.
func (c *Conversation) ID() string { return c.id }

// State returns the current loop state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a copy of the turn history.
func (c *Conversation) History() []entities.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.Turn, len(c.history))
	copy(out, c.history)
	return out
}

// Len returns the number of turns in history.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// UpdatedAt returns the time of the last change to history.
func (c *Conversation) UpdatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}

// Reset clears history, as on session restart.
func (c *Conversation) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateResponding {
		return entities.ErrBusy
	}
	c.history = []entities.Turn{}
	c.updatedAt = time.Now()
	return nil
}

// SubmitText answers a typed message.
func (c *Conversation) SubmitText(ctx context.Context, text string) (*Exchange, error) {
	return c.respond(ctx, text)
}

// SubmitAudio records one utterance, transcribes it and answers it. A
// recognition failure returns a *RecognitionError and leaves history as is.
func (c *Conversation) SubmitAudio(ctx context.Context) (*Exchange, error) {
	if c.recorder == nil {
		return nil, &RecognitionError{Kind: RecognitionCapture, Err: errAudioNotConfigured}
	}
	audio, err := c.recorder.Record(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("audio capture failed")
		return nil, &RecognitionError{Kind: RecognitionCapture, Err: err}
	}
	return c.SubmitRecording(ctx, audio)
}

// SubmitRecording transcribes already captured audio and answers it.
func (c *Conversation) SubmitRecording(ctx context.Context, audio []byte) (*Exchange, error) {
	text, err := c.transcribe(ctx, audio)
	if err != nil {
		c.logger.Warn().Err(err).Msg("speech not recognized")
		return nil, err
	}
	c.logger.Debug().Int("chars", len(text)).Msg("speech transcribed")
	return c.respond(ctx, text)
}

func (c *Conversation) transcribe(ctx context.Context, audio []byte) (string, error) {
	if c.transcriber == nil {
		return "", &RecognitionError{Kind: RecognitionCapture, Err: errAudioNotConfigured}
	}
	if len(audio) == 0 {
		return "", &RecognitionError{Kind: RecognitionNoSpeech, Err: entities.ErrNoSpeech}
	}
	text, err := c.transcriber.Transcribe(ctx, audio)
	if err != nil {
		kind := RecognitionService
		if errors.Is(err, entities.ErrNoSpeech) {
			kind = RecognitionNoSpeech
		}
		return "", &RecognitionError{Kind: kind, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &RecognitionError{Kind: RecognitionNoSpeech, Err: entities.ErrNoSpeech}
	}
	return text, nil
}

func (c *Conversation) respond(ctx context.Context, text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, entities.ErrEmptyMessage
	}

	history, err := c.begin()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.responder.Compose(ctx, text, history)
	if err != nil {
		c.finish()
		c.logger.Error().Err(err).Dur("took", time.Since(start)).Msg("turn failed")
		return nil, err
	}

	user := entities.UserTurn(text)
	if strings.TrimSpace(resp.Answer) == "" {
		c.finish()
		c.logger.Warn().Str("route", string(resp.Route)).Msg("empty answer, history unchanged")
		return &Exchange{User: user, Response: resp}, nil
	}
	c.finish(user, entities.AssistantTurn(resp.Answer))
	c.logger.Info().
		Str("route", string(resp.Route)).
		Dur("took", time.Since(start)).
		Msg("turn completed")

	return &Exchange{User: user, Response: resp}, nil
}

// begin moves Idle to Responding and snapshots history.
func (c *Conversation) begin() ([]entities.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateResponding {
		return nil, entities.ErrBusy
	}
	c.state = StateResponding
	snapshot := make([]entities.Turn, len(c.history))
	copy(snapshot, c.history)
	return snapshot, nil
}

// finish appends turns and moves back to Idle.
func (c *Conversation) finish(turns ...entities.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(turns) > 0 {
		c.history = append(c.history, turns...)
		c.updatedAt = time.Now()
	}
	c.state = StateIdle
}
