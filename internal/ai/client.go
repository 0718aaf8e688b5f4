package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ideaboard-app/ideaboard/internal/plans"
)

// ErrUpstream marks any failure of the completion provider: transport
// errors, non-2xx responses and unparseable output. Callers treat it as
// retryable and must not consume quota for it.
var ErrUpstream = errors.New("ai provider error")

// Analysis is the structured market-research report. Field presence grows
// with the prompt tier: problem/audience/monetization always,
// competitors/market gaps/demand probability from standard,
// risks/marketing strategies at advanced.
type Analysis struct {
	Problem             string   `json:"problem"`
	Audience            string   `json:"audience"`
	Monetization        string   `json:"monetization"`
	Competitors         []string `json:"competitors,omitempty"`
	MarketGaps          []string `json:"marketGaps,omitempty"`
	DemandProbability   string   `json:"demandProbability,omitempty"`
	PotentialRisks      []string `json:"potentialRisks,omitempty"`
	MarketingStrategies []string `json:"marketingStrategies,omitempty"`
}

// BuildPlan is a phased build plan with copy/paste prompts for the chosen
// platform.
type BuildPlan struct {
	Platform string  `json:"platform"`
	Phases   []Phase `json:"phases"`
}

type Phase struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Prompts     []string `json:"prompts"`
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete generates a market-research analysis for the idea at the given
// prompt tier.
func (c *Client) Complete(ctx context.Context, tier plans.PromptTier, ideaText string) (*Analysis, error) {
	content, err := c.chat(ctx, analysisPrompt(tier), ideaText)
	if err != nil {
		return nil, err
	}

	var analysis Analysis
	if err := json.Unmarshal(stripCodeFence(content), &analysis); err != nil {
		return nil, fmt.Errorf("%w: decoding analysis: %v", ErrUpstream, err)
	}
	if analysis.Problem == "" && analysis.Audience == "" {
		return nil, fmt.Errorf("%w: analysis missing required fields", ErrUpstream)
	}
	return &analysis, nil
}

// Plan generates a phased build plan for the idea on the chosen platform.
func (c *Client) Plan(ctx context.Context, tier plans.PromptTier, ideaText, platform string) (*BuildPlan, error) {
	content, err := c.chat(ctx, buildPlanPrompt(tier, platform), ideaText)
	if err != nil {
		return nil, err
	}

	var plan BuildPlan
	if err := json.Unmarshal(stripCodeFence(content), &plan); err != nil {
		return nil, fmt.Errorf("%w: decoding build plan: %v", ErrUpstream, err)
	}
	if len(plan.Phases) == 0 {
		return nil, fmt.Errorf("%w: build plan has no phases", ErrUpstream)
	}
	if plan.Platform == "" {
		plan.Platform = platform
	}
	return &plan, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
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

func (c *Client) chat(ctx context.Context, systemPrompt, userContent string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(body, 256))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUpstream)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// stripCodeFence removes a surrounding ```json fence some models emit even
// in JSON mode.
func stripCodeFence(s string) []byte {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return []byte(strings.TrimSpace(trimmed))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
