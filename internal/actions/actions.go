// Package actions implements the single-shot AI features: draft analysis,
// rewrite suggestions, and the conversational assistant. Each one builds a
// system prompt, runs a completion through the gateway, and decodes the
// structured reply.
package actions

import (
	"context"
	"fmt"
	"strings"

	"poststudio/internal/gateway"
	"poststudio/internal/logging"
	"poststudio/internal/prompt"
)

// ScoreSet is the engagement/friendliness/virality triple.
type ScoreSet struct {
	Engagement   float64 `json:"engagement"`
	Friendliness float64 `json:"friendliness"`
	Virality     float64 `json:"virality"`
}

// Analytics is the structured diagnostics block returned with an analysis.
type Analytics struct {
	Readability struct {
		Score       float64 `json:"score"`
		Level       string  `json:"level"`
		Description string  `json:"description"`
	} `json:"readability"`
	Sentiment struct {
		Score    float64  `json:"score"`
		Type     string   `json:"type"`
		Emotions []string `json:"emotions"`
	} `json:"sentiment"`
	Timing struct {
		BestTime string   `json:"bestTime"`
		Timezone string   `json:"timezone"`
		PeakDays []string `json:"peakDays"`
	} `json:"timing"`
	Audience struct {
		Primary   string   `json:"primary"`
		Interests []string `json:"interests"`
		Age       string   `json:"age"`
	} `json:"audience"`
	Keywords struct {
		Optimal  []string `json:"optimal"`
		Trending []string `json:"trending"`
	} `json:"keywords"`
}

// Analysis is the qualitative feedback block.
type Analysis struct {
	Synthesis       string   `json:"synthesis"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
}

// AnalysisResult is the full analyze-draft response.
type AnalysisResult struct {
	Scores    ScoreSet  `json:"scores"`
	Analytics Analytics `json:"analytics"`
	Analysis  Analysis  `json:"analysis"`
}

// Suggestion is one rewritten alternative.
type Suggestion struct {
	Text      string    `json:"text"`
	Scores    ScoreSet  `json:"scores"`
	Analytics Analytics `json:"analytics"`
}

// SuggestionsResult carries the three rewrite alternatives.
type SuggestionsResult struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// AnalyzeRequest is the input to AnalyzePost and SuggestRewrites.
type AnalyzeRequest struct {
	Content          string `json:"content"`
	Niche            string `json:"niche,omitempty"`
	Goal             string `json:"goal,omitempty"`
	HasVisualContent bool   `json:"hasVisualContent,omitempty"`
	APIKey           string `json:"apiKey,omitempty"`
}

func (r AnalyzeRequest) options() prompt.AnalyzeOptions {
	return prompt.AnalyzeOptions{
		Niche:            r.Niche,
		Goal:             r.Goal,
		HasVisualContent: r.HasVisualContent,
	}
}

// ChatMessage is one turn of assistant conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AssistantRequest is the input to AssistantChat.
type AssistantRequest struct {
	Messages      []ChatMessage `json:"messages"`
	EditorContent string        `json:"editorContent,omitempty"`
	APIKey        string        `json:"apiKey,omitempty"`
}

// Service runs the single-shot AI actions.
type Service struct {
	gw *gateway.Gateway
}

// NewService creates a service on top of the gateway.
func NewService(gw *gateway.Gateway) *Service {
	return &Service{gw: gw}
}

// AnalyzePost scores and diagnoses a draft.
func (s *Service) AnalyzePost(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, gateway.ErrEmptyInput
	}

	var result AnalysisResult
	system := prompt.BuildAnalyzeSystem(req.options())
	if err := s.gw.CompleteJSON(ctx, req.APIKey, system, content, &result); err != nil {
		return nil, err
	}
	logging.Studio("analyze: content_len=%d engagement=%.0f", len(content), result.Scores.Engagement)
	return &result, nil
}

// SuggestRewrites returns three higher-performing alternatives for a draft.
func (s *Service) SuggestRewrites(ctx context.Context, req AnalyzeRequest) (*SuggestionsResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, gateway.ErrEmptyInput
	}

	var result SuggestionsResult
	system := prompt.BuildSuggestionsSystem(req.options())
	if err := s.gw.CompleteJSON(ctx, req.APIKey, system, content, &result); err != nil {
		return nil, err
	}
	if len(result.Suggestions) == 0 {
		return nil, fmt.Errorf("%w: no suggestions in payload", gateway.ErrInvalidResponse)
	}
	logging.Studio("suggestions: content_len=%d count=%d", len(content), len(result.Suggestions))
	return &result, nil
}

// AssistantChat runs one turn of the content assistant over the caller's
// conversation history, grounded in the current draft.
func (s *Service) AssistantChat(ctx context.Context, req AssistantRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", gateway.ErrEmptyInput
	}

	messages := make([]gateway.Message, 0, len(req.Messages)+2)
	messages = append(messages,
		gateway.Message{Role: "system", Content: prompt.BuildAssistantSystem(req.EditorContent)},
		gateway.Message{Role: "system", Content: prompt.BuildGuardrails()},
	)
	for _, m := range req.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, gateway.Message{Role: m.Role, Content: m.Content})
	}
	if len(messages) == 2 {
		return "", gateway.ErrEmptyInput
	}

	reply, err := s.gw.CompleteChat(ctx, req.APIKey, messages)
	if err != nil {
		return "", err
	}
	return reply, nil
}
