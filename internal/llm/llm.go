// Package llm is the boundary to the external text-generation service.
// The service is treated as unreliable: every operation degrades to a
// deterministic fallback string and never returns an error to the
// caller.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"examtrainer/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible API client. The availability flag
// is resolved once at construction; operations branch on it instead of
// re-checking credentials per call.
type Client struct {
	api     *openai.Client
	model   string
	enabled bool
	timeout time.Duration

	mu       sync.Mutex
	feedback map[int64]string // successful feedback memoized by answer id
}

// New creates a gateway client. An empty API key disables the gateway;
// all operations then return their fallback output.
func New(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		enabled:  apiKey != "",
		timeout:  timeout,
		feedback: make(map[int64]string),
	}
}

// Enabled reports whether the gateway has a credential configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Ping verifies the endpoint is reachable. A disabled gateway pings OK.
func (c *Client) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint: %w", err)
	}
	return nil
}

// Feedback returns one feedback string for an answer. Successful
// generations are memoized by answer id so a regeneration path (for
// example when persisted feedback went missing) does not repeat the
// external call. Fallback strings embed the correct answer so the
// caller can always display them as valid output.
func (c *Client) Feedback(ctx context.Context, answerID int64, q model.Question, userAnswer string) string {
	if !c.enabled {
		return fmt.Sprintf("AI-feedback niet beschikbaar (geen API-key). Juiste antwoord is '%s'.", q.CorrectAnswer)
	}

	c.mu.Lock()
	if cached, ok := c.feedback[answerID]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	system := fmt.Sprintf(
		"Je bent een behulpzame %s-docent op %s niveau. "+
			"Leg kort (max 2 zinnen) uit waarom het antwoord juist of onjuist is en geef een tip.",
		q.Subject, strings.ToUpper(string(q.Level)),
	)
	var sb strings.Builder
	sb.WriteString("Vraag: " + q.Text + "\n")
	sb.WriteString("Antwoord leerling: " + userAnswer + "\n")
	sb.WriteString("Correcte antwoord: " + q.CorrectAnswer + "\n")
	sb.WriteString("Geef feedback:")

	text, err := c.complete(ctx, system, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: sb.String()},
	}, 100, 0.7)
	if err != nil {
		slog.Warn("feedback call failed", "answer_id", answerID, "error", err)
		return fmt.Sprintf("(Fout bij ophalen AI-feedback: %v) Juiste antwoord: '%s'.", err, q.CorrectAnswer)
	}

	c.mu.Lock()
	c.feedback[answerID] = text
	c.mu.Unlock()
	return text
}

// GenerateFollowup writes n new exam questions seeded by the mistakes
// of the last exam. It returns an empty list when there are no mistakes
// or the gateway is unavailable, and never fails the caller.
func (c *Client) GenerateFollowup(ctx context.Context, subject string, level model.Level, mistakes []string, n int) []string {
	if !c.enabled || len(mistakes) == 0 {
		return nil
	}

	system := fmt.Sprintf(
		"Je bent een examenmaker voor het vak %s (niveau %s). "+
			"Schrijf %d nieuwe examenvragen gebaseerd op deze fouten. "+
			"Elke vraag moet een korte multiple-choice vraag zijn met 4 opties (A-D) en geef het correcte antwoord apart.",
		subject, strings.ToUpper(string(level)), n,
	)
	prompt := "Fouten/onderwerpen: " + strings.Join(mistakes, "; ")

	text, err := c.complete(ctx, system, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, 300, 0.8)
	if err != nil {
		slog.Warn("follow-up generation failed", "subject", subject, "error", err)
		return []string{fmt.Sprintf("(Fout bij genereren vragen: %v)", err)}
	}
	return []string{text}
}

// AskTutor answers one tutor-chat question. The gateway keeps no memory
// of its own; the caller supplies the full prior turn history.
func (c *Client) AskTutor(ctx context.Context, subject string, level model.Level, question string, history []model.ChatMessage) string {
	if !c.enabled {
		return "AI-chat niet beschikbaar (geen API-key)."
	}

	system := fmt.Sprintf(
		"Je bent een behulpzame %s-docent op %s niveau. Antwoord zo helder mogelijk.",
		subject, strings.ToUpper(string(level)),
	)

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == model.ChatRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	text, err := c.complete(ctx, system, msgs, 300, 0.7)
	if err != nil {
		slog.Warn("tutor chat failed", "subject", subject, "error", err)
		return fmt.Sprintf("(Fout bij tutorchat: %v)", err)
	}
	return text
}

// complete performs one chat completion under the configured timeout.
// A deadline expiry surfaces as an error and lands in the fallback path
// like any other transport failure.
func (c *Client) complete(ctx context.Context, system string, msgs []openai.ChatCompletionMessage, maxTokens int, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	all := append([]openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}, msgs...)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    all,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
