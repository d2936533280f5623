package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel   = "google/gemini-2.0-flash-lite"

	// notFoundSentinel is what the model is instructed to answer when it
	// cannot identify a title with confidence.
	notFoundSentinel = "NOT_FOUND"

	requestTimeout = 15 * time.Second
	maxTokens      = 60
)

const (
	identifyPrompt = "You are a media content finder. " +
		"Given a description or partial info about a specific movie or TV series, " +
		"return ONLY its exact title (Russian or English). " +
		"If you cannot identify it with confidence, respond with exactly: NOT_FOUND"

	moodPrompt = "You are a film recommendation expert. " +
		"Given a mood, genre preference, or vague description, suggest ONE highly-rated " +
		"movie or TV series that fits well. " +
		"Return ONLY the title, nothing else: no explanation, no year, no punctuation."

	randomPrompt = "You are a film recommendation expert. " +
		"Suggest ONE acclaimed, interesting movie or TV series that not everyone has seen. " +
		"Vary your suggestions. Return ONLY the title, nothing else."
)

// Client asks an OpenRouter-hosted model to identify or suggest titles. It
// is a soft dependency: New returns nil when no API key is configured, and
// callers simply skip the corresponding feature path.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates an assist client, or nil when apiKey is empty.
func New(apiKey, model string) *Client {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete makes one chat-completion call and returns the trimmed answer.
func (c *Client) complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode openrouter response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openrouter error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// ask wraps complete, mapping the NOT_FOUND sentinel to an empty title.
func (c *Client) ask(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	answer, err := c.complete(ctx, systemPrompt, userMessage)
	if err != nil {
		return "", err
	}
	if answer == "" || strings.Contains(strings.ToUpper(answer), notFoundSentinel) {
		return "", nil
	}
	return answer, nil
}

// IdentifyByDescription guesses the exact title from a free-text
// description. Returns "" when the model declines to guess.
func (c *Client) IdentifyByDescription(ctx context.Context, text string) (string, error) {
	title, err := c.ask(ctx, identifyPrompt, text)
	if err != nil {
		return "", err
	}
	if title == "" {
		log.Printf("[assist] could not identify content from %q", text)
		return "", nil
	}
	log.Printf("[assist] identified %q from %q", title, text)
	return title, nil
}

// SuggestByMood suggests a single title matching a mood or vague wish.
func (c *Client) SuggestByMood(ctx context.Context, mood string) (string, error) {
	return c.ask(ctx, moodPrompt, mood)
}

// SuggestRandom suggests a single acclaimed title.
func (c *Client) SuggestRandom(ctx context.Context) (string, error) {
	return c.ask(ctx, randomPrompt, "Suggest something great")
}
