// Package audio captures microphone input by running an external recorder
// that writes a WAV stream to stdout.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
)

// DefaultCommand records five seconds of 16 kHz mono audio with ALSA.
const DefaultCommand = "arecord -q -f S16_LE -r 16000 -c 1 -d 5 -t wav -"

// CommandRecorder implements ports.AudioRecorder with a child process.
type CommandRecorder struct {
	argv   []string
	logger zerolog.Logger
}

// NewCommandRecorder parses command with shell quoting rules.
func NewCommandRecorder(command string, logger zerolog.Logger) (*CommandRecorder, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parsing recorder command: %w", err)
	}
	if len(argv) == 0 {
		return nil, errors.New("recorder command is empty")
	}
	return &CommandRecorder{
		argv:   argv,
		logger: logger.With().Str("component", "recorder").Str("cmd", argv[0]).Logger(),
	}, nil
}

// Record runs the recorder until it exits and returns its stdout.
func (r *CommandRecorder) Record(ctx context.Context) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", r.argv[0], err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", r.argv[0], err)
	}

	r.logger.Debug().Int("bytes", stdout.Len()).Dur("took", time.Since(start)).Msg("audio captured")
	return stdout.Bytes(), nil
}
