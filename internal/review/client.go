// Package review implements the asynchronous AI review pipeline: a job
// store with at-most-one in-flight job per idea, a polling worker that
// claims and processes jobs, and a client for the review generator.
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const maxAnalysisChars = 8000

// IdeaInput is what the generator sees about an idea.
type IdeaInput struct {
	Title   string
	Summary string
	Content string
	Tags    []string
}

// Review is the structured result of one generated review. Scores are
// always within [0,100] after parsing.
type Review struct {
	FeasibilityScore     int    `json:"feasibility_score"`
	ProfitPotentialScore int    `json:"profit_potential_score"`
	AnalysisText         string `json:"analysis_text"`
	Model                string `json:"model"`
}

// Generator produces a review for an idea. Implementations must respect
// the context deadline.
type Generator interface {
	Generate(ctx context.Context, idea IdeaInput) (*Review, error)
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a review generator client. timeout bounds each call;
// a timed-out call is reported as an ordinary generator failure.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the model to evaluate the idea and parses its reply.
func (c *Client) Generate(ctx context.Context, idea IdeaInput) (*Review, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("review generator API key is not configured")
	}

	prompt := fmt.Sprintf(`You are an evaluator for startup/product ideas.
Return STRICT JSON with keys:
- feasibilityScore (0-100)
- profitPotentialScore (0-100)
- analysisText (string, concise but useful, bullet points OK)

Idea:
Title: %s
Summary: %s
Tags: %s
Content: %s`, idea.Title, idea.Summary, strings.Join(idea.Tags, ", "), idea.Content)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("review generator call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("review generator returned %d: %s", resp.StatusCode, string(msg))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode generator response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("review generator returned no choices")
	}

	return ParseReview(chat.Choices[0].Message.Content, c.model), nil
}

// rawReview matches the JSON shape the prompt asks the model for.
type rawReview struct {
	FeasibilityScore     float64 `json:"feasibilityScore"`
	ProfitPotentialScore float64 `json:"profitPotentialScore"`
	AnalysisText         string  `json:"analysisText"`
}

// ParseReview extracts the structured review from raw model output.
// Malformed output never fails: it degrades to neutral 50/50 scores with
// the raw text as analysis. Scores are clamped to [0,100] and the analysis
// is capped at 8000 characters.
func ParseReview(text, model string) *Review {
	jsonText := extractJSONObject(text)

	var raw rawReview
	if jsonText == "" || json.Unmarshal([]byte(jsonText), &raw) != nil {
		analysis := strings.TrimSpace(text)
		if analysis == "" {
			analysis = "AI returned empty response."
		}
		return &Review{
			FeasibilityScore:     50,
			ProfitPotentialScore: 50,
			AnalysisText:         truncate(analysis, maxAnalysisChars),
			Model:                model,
		}
	}

	return &Review{
		FeasibilityScore:     clampScore(raw.FeasibilityScore),
		ProfitPotentialScore: clampScore(raw.ProfitPotentialScore),
		AnalysisText:         truncate(raw.AnalysisText, maxAnalysisChars),
		Model:                model,
	}
}

// extractJSONObject returns the first "{" through the last "}" of text,
// or "" when no object is present.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func clampScore(n float64) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return int(n)
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
