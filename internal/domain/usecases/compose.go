// Package usecases - compose.go routes a message to chat or retrieval.
package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/0xcro3dile/therapychat-go/internal/domain/entities"
	"github.com/0xcro3dile/therapychat-go/internal/domain/ports"
)

// DefaultReferral is the health service named for serious situations.
const DefaultReferral = "Moroccan health services"

// DefaultSystemPrompt returns the assistant persona, referring serious
// situations to referral.
func DefaultSystemPrompt(referral string) string {
	if strings.TrimSpace(referral) == "" {
		referral = DefaultReferral
	}
	var sb strings.Builder
	sb.WriteString("You are a Chatbot for mental health support, don't overtalk. ")
	sb.WriteString("When the users are trying to harm themselves, remind them that they're loved by someone.\n")
	sb.WriteString("When asked about someone (celebrity for example) say \"sorry, I don't wanna talk about other people\". ")
	sb.WriteString("Stick to the context of mental health. ")
	sb.WriteString("If the situation is serious refer to ")
	sb.WriteString(referral)
	sb.WriteString(".\n")
	sb.WriteString("Don't say \"Based on the provided context\" or \"According to the provided document\" or any such phrases.\n")
	sb.WriteString("If there is no answer, please answer with \"")
	sb.WriteString(InsufficientContextAnswer)
	sb.WriteString("\"\n")
	return sb.String()
}

// Retrieval answers a question from the knowledge base.
type Retrieval interface {
	Retrieve(ctx context.Context, question string) (*entities.ChatResponse, error)
}

// Composer builds the prompt for a turn and picks the answering path.
type Composer struct {
	classifier   *Classifier
	retriever    Retrieval
	llm          ports.LLMService
	systemPrompt string
	logger       zerolog.Logger
}

// NewComposer creates a Composer. An empty systemPrompt selects
// DefaultSystemPrompt with the default referral.
func NewComposer(
	classifier *Classifier,
	retriever Retrieval,
	llm ports.LLMService,
	systemPrompt string,
	logger zerolog.Logger,
) *Composer {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt("")
	}
	return &Composer{
		classifier:   classifier,
		retriever:    retriever,
		llm:          llm,
		systemPrompt: systemPrompt,
		logger:       logger.With().Str("component", "composer").Logger(),
	}
}

// SystemPrompt returns the configured system prompt.
func (c *Composer) SystemPrompt() string { return c.systemPrompt }

// BuildMessages returns the system prompt, every history turn in order and
// the new user turn. The result never aliases history.
func (c *Composer) BuildMessages(message string, history []entities.Turn) []entities.Turn {
	messages := make([]entities.Turn, 0, len(history)+2)
	messages = append(messages, entities.SystemTurn(c.systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, entities.UserTurn(message))
	return messages
}

// Compose answers message given the prior history. Mental-health messages are
// answered by the retriever and returned unchanged; everything else goes to
// the chat model with the full message list.
func (c *Composer) Compose(ctx context.Context, message string, history []entities.Turn) (*entities.ChatResponse, error) {
	messages := c.BuildMessages(message, history)

	if kw := c.classifier.Match(message); kw != "" {
		c.logger.Debug().Str("keyword", kw).Msg("routing to retrieval")
		if c.retriever == nil {
			return nil, fmt.Errorf("retrieval requested but no retriever configured")
		}
		return c.retriever.Retrieve(ctx, message)
	}

	c.logger.Debug().Int("messages", len(messages)).Msg("routing to chat")
	answer, err := c.llm.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return &entities.ChatResponse{Answer: answer, Route: entities.RouteChat}, nil
}
