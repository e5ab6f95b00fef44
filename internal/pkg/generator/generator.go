// Package generator abstracts the text model that drafts handler code. The
// rest of the application consumes a finished text blob; provider wiring stays
// behind the Generator interface.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// ErrNotConfigured is returned when no provider credentials are available.
var ErrNotConfigured = errors.New("generator is not configured")

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const defaultModel = "claude-haiku-4-5-20251001"

// Anthropic is a Generator backed by the Anthropic Messages API.
type Anthropic struct {
	client anthropicclient.Client
	model  string
}

// NewAnthropic builds a Generator for the given API key. baseURL and model are
// optional overrides.
func NewAnthropic(apiKey, baseURL, model string) *Anthropic {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(strings.TrimSpace(apiKey)),
		anthropicoption.WithMaxRetries(0),
	}
	if endpoint := strings.TrimSpace(baseURL); endpoint != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Anthropic{client: anthropicclient.NewClient(opts...), model: model}
}

// Generate sends the prompt and concatenates the text blocks of the reply.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropicclient.MessageNewParams{
		Model:     anthropicclient.Model(a.model),
		MaxTokens: 2048,
		Messages: []anthropicclient.MessageParam{
			anthropicclient.NewUserMessage(anthropicclient.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var full strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			full.WriteString(block.Text)
		}
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from model %s", a.model)
	}
	return text, nil
}
