package localllm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"pantrychef/internal/inference"
)

const (
	// DefaultURL is the chat completions endpoint of a local OpenAI-compatible server.
	DefaultURL   = "http://localhost:1234/v1/chat/completions"
	DefaultModel = "gemma-3-12b-it:2"
)

// ErrNoContent is returned when the server answers without a choice.
var ErrNoContent = errors.New("no content found in response")

// Client represents a client for the local LLM.
type Client struct {
	http   *resty.Client
	apiURL string
	model  string
}

// NewClient creates a new client for the local LLM.
func NewClient(apiURL, model string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		http:   resty.New().SetTimeout(timeout),
		apiURL: apiURL,
		model:  model,
	}
}

// Request represents the request body for the local LLM.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	TopP        float32   `json:"top_p"`
	TopK        int32     `json:"top_k"`
	MaxTokens   int32     `json:"max_tokens"`
}

// Message represents a message in the request.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// Content represents the content of a message.
type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents the image URL in the content.
type ImageURL struct {
	URL string `json:"url"`
}

// Response represents the response from the local LLM.
type Response struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a choice in the response.
type Choice struct {
	Message ResponseMessage `json:"message"`
}

// ResponseMessage represents a message in the response.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate sends the prompt and images as a single user message and returns
// the content of the first choice.
func (c *Client) Generate(ctx context.Context, prompt string, images []inference.Image) (string, error) {
	content := []Content{{Type: "text", Text: prompt}}
	for _, img := range images {
		content = append(content, Content{
			Type: "image_url",
			ImageURL: &ImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)),
			},
		})
	}

	reqBody := Request{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: content}},
		Temperature: inference.Temperature,
		TopP:        inference.TopP,
		TopK:        inference.TopK,
		MaxTokens:   inference.MaxOutputTokens,
	}

	var llmResp Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&llmResp).
		Post(c.apiURL)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("received non-OK status code: %d", resp.StatusCode())
	}

	if len(llmResp.Choices) == 0 || llmResp.Choices[0].Message.Content == "" {
		return "", ErrNoContent
	}
	return llmResp.Choices[0].Message.Content, nil
}
