package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zenpress/internal/config"
	"zenpress/internal/domain"
	"zenpress/internal/ports"
)

// excerptLimit bounds how much article body goes into the prompt.
const excerptLimit = 1200

// OpenAIClient generates drafts through an OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	temperature  float64
	httpClient   *http.Client
}

var _ ports.Generator = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		temperature:  cfg.Temperature,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// draftPayload is the JSON contract the model must return.
type draftPayload struct {
	Title string `json:"title"`
	Lead  string `json:"lead"`
	Body  string `json:"body"`
}

// GenerateDraft rewrites the article as a Zen post. The model response
// must be a JSON object {title, lead, body}; an empty body is an error so
// the caller leaves the article status unchanged.
func (c *OpenAIClient) GenerateDraft(ctx context.Context, article domain.Article) (domain.Draft, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Draft{}, fmt.Errorf("openai client misconfigured")
	}

	content, err := c.complete(ctx, buildDraftPrompt(article))
	if err != nil {
		return domain.Draft{}, err
	}

	var payload draftPayload
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &payload); err != nil {
		return domain.Draft{}, fmt.Errorf("decode draft payload: %w", err)
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = article.Title
	}
	body := strings.TrimSpace(payload.Body)
	if body == "" {
		return domain.Draft{}, fmt.Errorf("model returned empty draft body")
	}

	return domain.Draft{
		ArticleID: article.ID,
		Title:     title,
		Lead:      strings.TrimSpace(payload.Lead),
		Body:      body,
		Model:     c.model,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": c.systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func buildDraftPrompt(article domain.Article) string {
	brief := map[string]any{
		"url":          article.URL,
		"title":        article.Title,
		"author":       article.Author,
		"published_at": article.PublishedAt.Format(time.RFC3339),
		"tags":         article.Tags,
		"summary":      excerpt(article.Body, excerptLimit),
	}
	raw, _ := json.Marshal(brief)

	return "Write a Yandex Zen post in Russian based on the article data. " +
		"Keep it engaging for a broad audience and avoid clickbait. " +
		"Return JSON only: {\"title\": \"...\", \"lead\": \"...\", \"body\": \"...\"}.\n\n" +
		string(raw)
}

// stripCodeFence removes a surrounding markdown fence some models wrap
// around JSON output.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a helpful editor."
	}
	return prompt
}
