package entities

import "errors"

var (
	// ErrRetrievalShortfall is returned when the index holds too few
	// passages to satisfy the selection policy.
	ErrRetrievalShortfall = errors.New("not enough passages retrieved")

	// ErrNoSpeech is returned by transcribers when the audio contained no
	// recognizable speech.
	ErrNoSpeech = errors.New("no speech recognized")

	// ErrEmptyMessage is returned when a submitted message is blank.
	ErrEmptyMessage = errors.New("empty message")

	// ErrBusy is returned when a session is already producing a response.
	ErrBusy = errors.New("conversation is responding")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
)
