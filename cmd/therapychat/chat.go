package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/therapychat-go/internal/domain/usecases"
)

func chatCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal, by keyboard or microphone",
		Long: `Start an interactive chat session. Type a message and press enter.

Commands:
  /record   capture one utterance from the microphone
  /reset    forget the conversation so far
  /exit     quit

Examples:
  therapychat chat
  therapychat chat -m "I can't sleep, I keep worrying"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			recorder, err := a.newRecorder()
			if err != nil {
				return err
			}
			conv := a.newConversation(uuid.NewString(), recorder)

			if message != "" {
				return oneShot(cmd.Context(), conv, message, cmd.OutOrStdout())
			}
			return runREPL(cmd.Context(), conv, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "one-shot message (omit for interactive mode)")

	return cmd
}

func oneShot(ctx context.Context, conv *usecases.Conversation, message string, out io.Writer) error {
	ex, err := conv.SubmitText(ctx, message)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ex.Response.Answer)
	return nil
}

// runREPL reads lines until EOF, /exit or ctx is done.
func runREPL(ctx context.Context, conv *usecases.Conversation, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Hi, I'm here to listen. Type /record to speak, /reset to start over, /exit to quit.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "\nYou: ")

		lines := make(chan bool, 1)
		go func() { lines <- scanner.Scan() }()

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		case ok := <-lines:
			if !ok {
				return scanner.Err()
			}
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/exit", "/quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "/reset":
			if err := conv.Reset(); err != nil {
				fmt.Fprintf(out, "\n%s\n", usecases.UserMessage(err))
				continue
			}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		case "/record":
			fmt.Fprintln(out, "Listening...")
			ex, err := conv.SubmitAudio(ctx)
			if err != nil {
				printTurnError(out, err)
				continue
			}
			fmt.Fprintf(out, "You said: %s\n", ex.User.Content)
			fmt.Fprintf(out, "\nAssistant: %s\n", ex.Response.Answer)
			continue
		}

		ex, err := conv.SubmitText(ctx, input)
		if err != nil {
			printTurnError(out, err)
			continue
		}
		fmt.Fprintf(out, "\nAssistant: %s\n", ex.Response.Answer)
	}
}

// printTurnError shows the apology for unrecognized speech and the
// failure itself for everything else.
func printTurnError(out io.Writer, err error) {
	var recErr *usecases.RecognitionError
	if errors.As(err, &recErr) {
		fmt.Fprintf(out, "\nAssistant: %s\n", usecases.ApologyMessage)
		return
	}
	fmt.Fprintf(out, "\n%s\n  (%v)\n", usecases.UserMessage(err), err)
}
