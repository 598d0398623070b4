// Package service implements the application's business logic on top of the
// repositories.
package service

import (
	"context"
	"hash/fnv"
	"strings"
)

// Responder produces the companion's reply to a user message.
// Implementations must be safe for concurrent use.
type Responder interface {
	Reply(ctx context.Context, userID uint, message string) (string, error)
}

// responseRule maps message keywords to a themed reply.
type responseRule struct {
	keywords []string
	reply    string
}

// scriptedResponder answers from a fixed rulebook. The first rule whose
// keyword appears in the message wins; otherwise a general supportive line
// is chosen deterministically from the message text.
type scriptedResponder struct {
	rules    []responseRule
	fallback []string
}

// NewScriptedResponder returns the built-in keyword responder.
func NewScriptedResponder() Responder {
	return &scriptedResponder{
		rules: []responseRule{
			{
				keywords: []string{"anxious", "anxiety", "panic", "worried", "worry"},
				reply:    "It sounds like you're carrying a lot of worry right now. Try taking a slow breath in for four counts and out for six. What's weighing on you the most?",
			},
			{
				keywords: []string{"sad", "down", "depress", "hopeless", "empty"},
				reply:    "I'm sorry you're feeling low. Those feelings are real and they matter. Is there one small thing that has brought you even a little comfort lately?",
			},
			{
				keywords: []string{"sleep", "insomnia", "tired", "exhausted"},
				reply:    "Rest is hard to come by when your mind won't quiet down. A regular wind-down routine can help. What does the hour before bed usually look like for you?",
			},
			{
				keywords: []string{"angry", "anger", "frustrated", "furious"},
				reply:    "Anger often points at something that matters to you. It's okay to feel it. What happened that stirred this up?",
			},
			{
				keywords: []string{"alone", "lonely", "isolated", "nobody"},
				reply:    "Feeling alone is painful, and reaching out here took courage. You're not talking into the void. Who in your life, past or present, has felt safe to talk to?",
			},
			{
				keywords: []string{"thank", "thanks"},
				reply:    "You're very welcome. I'm glad to be here with you.",
			},
			{
				keywords: []string{"hello", "hi ", "hey"},
				reply:    "Hello! I'm here to listen. How are you feeling today?",
			},
		},
		fallback: []string{
			"Thank you for sharing that with me. Can you tell me more about how that's been affecting you?",
			"I hear you. Sometimes putting things into words is the hardest part. What would feel most helpful to talk through right now?",
			"That sounds like a lot to hold. I'm listening. What else is on your mind?",
			"It takes strength to open up. How long have you been feeling this way?",
		},
	}
}

func (r *scriptedResponder) Reply(_ context.Context, _ uint, message string) (string, error) {
	lowered := strings.ToLower(message)
	for _, rule := range r.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.reply, nil
			}
		}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(lowered))
	return r.fallback[int(h.Sum32())%len(r.fallback)], nil
}
