package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/andino-labs/policychat/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the OpenAI model used for chat completions
	DefaultChatModel = "gpt-4o-mini"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// ChatStream yields content deltas from a streaming chat completion.
// Recv returns io.EOF when the stream ends.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

// ChatMessage is one turn passed to the completion API
type ChatMessage struct {
	Role    string
	Content string
}

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	StreamChat(ctx context.Context, messages []ChatMessage) (ChatStream, error)
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// Client wraps the OpenAI API client. Every embedding failure it returns,
// other than empty input, unwraps to domain.ErrEmbeddingProvider so callers
// see a single error kind regardless of the underlying cause.
type Client struct {
	api        EmbeddingAPI
	chat       ChatAPI
	dimensions int
}

type OpenAIAdapter struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	chatModel string
}

func NewOpenAIAdapter(apiKey string, model openai.EmbeddingModel, chatModel string) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	return &OpenAIAdapter{
		client:    openai.NewClient(apiKey),
		model:     model,
		chatModel: chatModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// StreamChat opens a streaming chat completion
func (a *OpenAIAdapter) StreamChat(ctx context.Context, messages []ChatMessage) (ChatStream, error) {
	reqMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    a.chatModel,
		Messages: reqMessages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	return &completionStream{stream: stream}, nil
}

// Complete runs a one-shot, non-streaming chat completion
func (a *OpenAIAdapter) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	reqMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.chatModel,
		Messages: reqMessages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

type completionStream struct {
	stream *openai.ChatCompletionStream
}

func (s *completionStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	ChatModel           string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	adapter := NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel, cfg.ChatModel)
	return &Client{
		api:        adapter,
		chat:       adapter,
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for the given text. Newlines are
// replaced with spaces before the API call; ada-style models embed text with
// newlines poorly.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	normalized := strings.ReplaceAll(text, "\n", " ")

	embedding, err := c.api.CreateEmbeddings(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingProvider, err)
	}

	expected := c.dimensions
	if expected <= 0 {
		expected = DefaultEmbeddingDimensions
	}
	if len(embedding) != expected {
		return nil, fmt.Errorf("%w: got %d dimensions, expected %d",
			domain.ErrEmbeddingProvider, len(embedding), expected)
	}

	return embedding, nil
}

// StreamChatCompletion opens a streaming completion for the given messages
func (c *Client) StreamChatCompletion(ctx context.Context, messages []ChatMessage) (ChatStream, error) {
	return c.chat.StreamChat(ctx, messages)
}

// ChatCompletion runs a one-shot completion and returns the full response text
func (c *Client) ChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	return c.chat.Complete(ctx, messages)
}
