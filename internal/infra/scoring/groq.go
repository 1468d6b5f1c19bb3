// Package scoring calls the external completion API (Groq,
// OpenAI-compatible) and recovers a single JSON verdict from the reply.
//
// The call is a single blocking round-trip bounded by the HTTP client's
// timeout. No retries and no circuit breaking here: a slow or failing
// scoring service surfaces directly as an error on the qualifying request
// and must not be masked by resilience machinery.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/avasquez/leadqual/internal/domain"
	"github.com/avasquez/leadqual/internal/prompt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/scoring")

// DefaultBaseURL is the Groq OpenAI-compatible API root.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is the completion model used for scoring.
const DefaultModel = "llama-3.1-8b-instant"

const maxRawExcerpt = 500

// Client calls the chat-completions endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *zap.Logger
}

// NewClient creates a scoring client. The apiKey may be empty; Score
// reports a configuration error before any network I/O in that case.
func NewClient(httpClient *http.Client, baseURL, apiKey, model string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.Trim(strings.TrimSpace(apiKey), `"'`),
		model:      model,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Score sends the rendered prompt and parses the model's verdict.
func (c *Client) Score(ctx context.Context, userPrompt string) (*domain.ScoreResult, error) {
	ctx, span := tracer.Start(ctx, "Scoring.Score")
	defer span.End()
	span.SetAttributes(attribute.String("scoring.model", c.model))

	if c.apiKey == "" {
		return nil, &domain.ErrConfiguration{Setting: "GROQ_API_KEY"}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.SystemInstruction},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.2,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, &domain.ErrScoringService{Message: "marshal request", Err: err}
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ErrScoringService{Message: "create request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("scoring: request failed", zap.Error(err))
		return nil, &domain.ErrScoringService{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ErrScoringService{Message: "read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("scoring: non-2xx response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), maxRawExcerpt)),
		)
		return nil, &domain.ErrScoringService{
			Status:  resp.StatusCode,
			Message: truncate(string(raw), maxRawExcerpt),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &domain.ErrScoringService{Message: "decode completion envelope", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &domain.ErrScoringService{Message: "completion returned no choices"}
	}

	content := parsed.Choices[0].Message.Content
	verdict, err := ExtractJSON(content)
	if err != nil {
		return nil, &domain.ErrScoringParse{Excerpt: truncate(content, maxRawExcerpt), Err: err}
	}

	result := resultFrom(verdict)
	result.Usage = domain.TokenUsage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}

	c.logger.Debug("scoring: verdict parsed",
		zap.Any("score", result.Score),
		zap.String("status", result.Status),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)
	return result, nil
}

// ExtractJSON decodes one JSON object from free text: direct decode first,
// then the first balanced {...} substring. The fallback is a recovery
// attempt for models that wrap the object in prose.
func ExtractJSON(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj, nil
	}

	candidate, ok := firstBalancedObject(trimmed)
	if !ok {
		return nil, fmt.Errorf("no JSON object in text")
	}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// firstBalancedObject returns the first balanced top-level {...} substring,
// tracking brace depth outside of JSON string literals.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// resultFrom coerces the loosely-typed verdict map into a ScoreResult.
// Keys that are absent or non-numeric stay nil.
func resultFrom(verdict map[string]any) *domain.ScoreResult {
	result := &domain.ScoreResult{
		Score:       asInt(verdict["score"]),
		EngagedMins: asInt(verdict["engaged_mins"]),
	}
	if s, ok := verdict["reasoning"].(string); ok {
		result.Reasoning = s
	}
	if s, ok := verdict["status"].(string); ok {
		result.Status = s
	}
	return result
}

// asInt coerces a decoded JSON value to an int. Strings are accepted when
// they parse as a number; anything else is nil.
func asInt(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case json.Number:
		if f, err := n.Float64(); err == nil {
			i := int(f)
			return &i
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			i := int(f)
			return &i
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
