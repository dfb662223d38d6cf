package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"captains-log/config"
	"captains-log/constant"
)

const (
	DefaultHTTPTimeout = 2 * time.Minute
	MaxRetries         = 2
)

var ErrEmptyResponse = errors.New("openai returned no choices")

// Client performs the four annotation calls of a recording.
type Client struct {
	client             openaigo.Client
	transcriptionModel string
	chatModel          string
}

func NewClient(cfg config.OpenAI, httpClient *http.Client, opts ...option.RequestOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	base := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(MaxRetries),
	}
	if u := strings.TrimSpace(cfg.BaseURL); u != "" {
		base = append(base, option.WithBaseURL(u))
	}
	return &Client{
		client:             openaigo.NewClient(append(base, opts...)...),
		transcriptionModel: cfg.TranscriptionModel,
		chatModel:          cfg.ChatModel,
	}
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, openaigo.AudioTranscriptionNewParams{
		File:  openaigo.File(bytes.NewReader(audio), filename, contentType),
		Model: openaigo.AudioModel(c.transcriptionModel),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) SummarizeTitle(ctx context.Context, text string) (string, error) {
	out, err := c.complete(ctx, fmt.Sprintf("Summarize the transcribed text for a title in less than 7 words: %q", text))
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	return strings.Trim(out, "\"' "), nil
}

func (c *Client) Sentiment(ctx context.Context, text string) (string, error) {
	out, err := c.complete(ctx, fmt.Sprintf("Analyze the sentiment of this text and respond with just one word (positive/negative/neutral): %q", text))
	if err != nil {
		return "", fmt.Errorf("analyze sentiment: %w", err)
	}
	return NormalizeSentiment(out), nil
}

func (c *Client) Keywords(ctx context.Context, text string) ([]string, error) {
	out, err := c.complete(ctx, fmt.Sprintf("Extract up to 5 key topics from this text and respond with just the words separated by commas: %q", text))
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	return SplitKeywords(out), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(c.chatModel),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// NormalizeSentiment lowercases the model answer and strips punctuation.
func NormalizeSentiment(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), ".!\"' "))
}

// SplitKeywords parses a comma separated answer into at most
// constant.MaxKeywords topics.
func SplitKeywords(s string) []string {
	keywords := make([]string, 0, constant.MaxKeywords)
	for _, part := range strings.Split(s, ",") {
		word := strings.Trim(strings.TrimSpace(part), ".\"'")
		if word == "" {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == constant.MaxKeywords {
			break
		}
	}
	return keywords
}
