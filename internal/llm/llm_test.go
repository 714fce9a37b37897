package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"examtrainer/internal/model"
)

func disabledClient() *Client {
	return New("", "", "gpt-4o-mini", time.Second)
}

func TestDisabledWithoutKey(t *testing.T) {
	c := disabledClient()
	if c.Enabled() {
		t.Fatal("client without an API key must be disabled")
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("disabled client must ping OK, got %v", err)
	}

	c = New("http://localhost:1/v1", "sleutel", "gpt-4o-mini", time.Second)
	if !c.Enabled() {
		t.Error("client with an API key must be enabled")
	}
}

func TestFeedbackFallbackEmbedsCorrectAnswer(t *testing.T) {
	c := disabledClient()
	q := model.Question{
		ID:            1,
		Subject:       "Economie",
		Level:         model.LevelHavo,
		Text:          "Wat is inflatie?",
		CorrectAnswer: "Stijging van het prijspeil",
	}

	fb := c.Feedback(context.Background(), 42, q, "geen idee")
	if !strings.Contains(fb, q.CorrectAnswer) {
		t.Errorf("fallback feedback must embed the correct answer, got %q", fb)
	}
	if !strings.Contains(fb, "niet beschikbaar") {
		t.Errorf("fallback feedback must say the service is unavailable, got %q", fb)
	}
}

func TestFeedbackMemoization(t *testing.T) {
	c := disabledClient()
	c.feedback[7] = "eerder gegenereerde feedback"

	// Disabled clients short-circuit before the cache; flip the flag to
	// exercise the memoized path without a network call.
	c.enabled = true

	q := model.Question{ID: 1, Subject: "Engels", Level: model.LevelVwo, CorrectAnswer: "a"}
	fb := c.Feedback(context.Background(), 7, q, "b")
	if fb != "eerder gegenereerde feedback" {
		t.Errorf("expected memoized feedback, got %q", fb)
	}
}

func TestGenerateFollowupEmptyCases(t *testing.T) {
	c := disabledClient()

	if out := c.GenerateFollowup(context.Background(), "Economie", model.LevelHavo, []string{"vraag"}, 3); out != nil {
		t.Errorf("disabled gateway must return nil, got %v", out)
	}

	c.enabled = true
	if out := c.GenerateFollowup(context.Background(), "Economie", model.LevelHavo, nil, 3); out != nil {
		t.Errorf("no mistakes must return nil without a call, got %v", out)
	}
}

func TestAskTutorDisabled(t *testing.T) {
	c := disabledClient()
	reply := c.AskTutor(context.Background(), "Nederlands", model.LevelMavo, "Wat is een metafoor?", nil)
	if !strings.Contains(reply, "niet beschikbaar") {
		t.Errorf("disabled tutor must return the unavailable message, got %q", reply)
	}
}
