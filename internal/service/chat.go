package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andino-labs/policychat/internal/domain"
	openai "github.com/andino-labs/policychat/internal/openai"
	"github.com/andino-labs/policychat/internal/telemetry"
)

const (
	// maxContextDocuments caps how many retrieved documents are quoted in
	// the model prompt. Retrieval may return more; only the best three are
	// worth the prompt budget.
	maxContextDocuments = 3

	// maxSessionTitleChars truncates the first user message into a title
	maxSessionTitleChars = 80

	systemPrompt = `You are an assistant that answers questions about company policy documents.
Respond in clear, friendly, professional markdown. Do not invent
information; when the provided sources do not cover the question, say so
and fall back to general knowledge, making clear that you are doing so.
Do not wrap the whole answer in triple backticks.`
)

// ChatRepositoryInterface defines the repository interface for chat session persistence
type ChatRepositoryInterface interface {
	Save(ctx context.Context, session *domain.ChatSession) error
	GetByID(ctx context.Context, id string) (*domain.ChatSession, error)
	ListByUser(ctx context.Context, userEmail string) ([]*domain.ChatSession, error)
	Delete(ctx context.Context, id string) error
}

// RetrieverInterface finds documents relevant to a query, best-effort
type RetrieverInterface interface {
	FindRelevant(ctx context.Context, query string) []RelevantDocument
}

// ChatModelInterface defines the interface for streaming chat completions
type ChatModelInterface interface {
	StreamChatCompletion(ctx context.Context, messages []openai.ChatMessage) (openai.ChatStream, error)
}

// ChatService orchestrates the streaming chat flow and session bookkeeping
type ChatService struct {
	repo      ChatRepositoryInterface
	retriever RetrieverInterface
	model     ChatModelInterface
	uuidGen   UUIDGenerator
	now       func() time.Time
}

// NewChatService creates a new ChatService instance
func NewChatService(repo ChatRepositoryInterface, retriever RetrieverInterface, model ChatModelInterface) *ChatService {
	return NewChatServiceWithClock(repo, retriever, model, &DefaultUUIDGenerator{}, time.Now)
}

// NewChatServiceWithClock creates a new ChatService with injected UUID generator and clock (for testing)
func NewChatServiceWithClock(
	repo ChatRepositoryInterface,
	retriever RetrieverInterface,
	model ChatModelInterface,
	uuidGen UUIDGenerator,
	now func() time.Time,
) *ChatService {
	return &ChatService{
		repo:      repo,
		retriever: retriever,
		model:     model,
		uuidGen:   uuidGen,
		now:       now,
	}
}

// ChatInput represents one streaming chat request
type ChatInput struct {
	SessionID string
	UserEmail string
	Messages  []domain.ChatMessage
}

// streamEvent is the `e:` progress frame payload
type streamEvent struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

// toolEvent is the `b:` tool-call frame payload that carries document sources
type toolEvent struct {
	ToolCallID string           `json:"toolCallId"`
	ToolName   string           `json:"toolName"`
	ToolArgs   map[string]any   `json:"toolArgs"`
	State      string           `json:"state"`
	CreatedAt  string           `json:"createdAt"`
	Result     []documentSource `json:"result"`
}

type documentSource struct {
	DocumentURL  string `json:"document_url"`
	DocumentName string `json:"document_name"`
}

// StreamResponse runs the chat pipeline and writes wire frames through send.
// Frame layout is fixed by the web client: progress events as `data: e: {…}
// [END_MESSAGE]`, tool calls as `data: b: …`, content deltas as `data: 0:
// …[END_MESSAGE]`, and a final `data: [DONE]`.
func (s *ChatService) StreamResponse(ctx context.Context, input ChatInput, send func(frame string) error) error {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.StreamResponse", telemetry.SpanAttributes{
		UserEmail: input.UserEmail,
		SessionID: input.SessionID,
		Operation: "chat",
	})
	defer span.End()

	if len(input.Messages) == 0 {
		return fmt.Errorf("%w: messages", domain.ErrMissingRequiredField)
	}
	lastMessage := input.Messages[len(input.Messages)-1]

	if err := s.sendEvent(send, "Processing query"); err != nil {
		return err
	}
	if err := s.sendEvent(send, "Searching relevant documents"); err != nil {
		return err
	}

	toolCallID := "call_" + s.uuidGen.NewString()
	if err := s.sendToolFrame(send, toolCallID, "calling", nil, true); err != nil {
		return err
	}

	relevant := s.retriever.FindRelevant(ctx, lastMessage.Content)

	if err := s.sendEvent(send, "Generating response"); err != nil {
		return err
	}

	prompt := buildPrompt(input.Messages, relevant)
	answer, err := s.streamCompletion(ctx, prompt, lastMessage.Content, send)
	if err != nil {
		span.SetError(err)
		return err
	}

	sources := make([]documentSource, 0, len(relevant))
	documentIDs := make([]string, 0, len(relevant))
	for _, rd := range relevant {
		sources = append(sources, documentSource{
			DocumentURL:  rd.Document.URL,
			DocumentName: rd.Document.Name,
		})
		documentIDs = append(documentIDs, rd.Document.ID)
	}
	if err := s.sendToolFrame(send, toolCallID, "result", sources, false); err != nil {
		return err
	}

	if err := s.sendEvent(send, "Response generated"); err != nil {
		return err
	}
	if err := send("data: [DONE]\n"); err != nil {
		return err
	}

	return s.saveTurn(ctx, input, lastMessage, answer, documentIDs)
}

func (s *ChatService) streamCompletion(ctx context.Context, prompt, userMessage string, send func(string) error) (string, error) {
	stream, err := s.model.StreamChatCompletion(ctx, []openai.ChatMessage{
		{Role: "system", Content: prompt},
		{Role: "user", Content: userMessage},
	})
	if err != nil {
		return "", fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		delta, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("completion stream failed: %w", err)
		}
		if delta == "" {
			continue
		}
		answer.WriteString(delta)
		if err := send(fmt.Sprintf("data: 0: %s[END_MESSAGE]\n", delta)); err != nil {
			return "", err
		}
	}
	return answer.String(), nil
}

func (s *ChatService) sendEvent(send func(string) error, message string) error {
	event := streamEvent{
		ID:        "event_" + s.uuidGen.NewString(),
		Timestamp: s.now().Format(time.RFC3339),
		Type:      "message",
		Message:   message,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return send(fmt.Sprintf("data: e: %s [END_MESSAGE]\n", payload))
}

func (s *ChatService) sendToolFrame(send func(string) error, toolCallID, state string, sources []documentSource, wrapInArray bool) error {
	event := toolEvent{
		ToolCallID: toolCallID,
		ToolName:   "internal_document_event",
		ToolArgs:   map[string]any{},
		State:      state,
		CreatedAt:  s.now().Format(time.RFC3339),
		Result:     sources,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// The initial "calling" frame is wrapped in a JSON array, the result
	// frame is not. The client depends on this asymmetry.
	if wrapInArray {
		return send(fmt.Sprintf("data: b: [%s] [END_MESSAGE]\n", payload))
	}
	return send(fmt.Sprintf("data: b: %s [END_MESSAGE]\n", payload))
}

func (s *ChatService) saveTurn(ctx context.Context, input ChatInput, lastMessage domain.ChatMessage, answer string, documentIDs []string) error {
	now := s.now().UTC()

	session, err := s.repo.GetByID(ctx, input.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrChatSessionNotFound) {
			return err
		}
		session = &domain.ChatSession{
			ID:        input.SessionID,
			UserEmail: input.UserEmail,
			Title:     sessionTitle(lastMessage.Content),
			CreatedAt: now,
		}
	}
	if session.UserEmail != input.UserEmail {
		return domain.ErrNotSessionOwner
	}

	userMsg := lastMessage
	if userMsg.ID == "" {
		userMsg.ID = s.uuidGen.NewString()
	}
	if userMsg.CreatedAt.IsZero() {
		userMsg.CreatedAt = now
	}

	session.Messages = append(session.Messages, userMsg, domain.ChatMessage{
		ID:          s.uuidGen.NewString(),
		Role:        domain.MessageRoleAssistant,
		Content:     answer,
		DocumentIDs: documentIDs,
		CreatedAt:   now,
	})
	session.LastUpdate = now

	return s.repo.Save(ctx, session)
}

func buildPrompt(messages []domain.ChatMessage, relevant []RelevantDocument) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	b.WriteString("\n\n# Conversation history:\n")
	for _, msg := range messages {
		role := "User"
		if msg.Role == domain.MessageRoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "\n%s: %s\n", role, msg.Content)
	}

	if len(relevant) > 0 {
		b.WriteString("\n===\n# Relevant sources:\n\n")
		limit := len(relevant)
		if limit > maxContextDocuments {
			limit = maxContextDocuments
		}
		for i := 0; i < limit; i++ {
			doc := relevant[i].Document
			var content strings.Builder
			for _, chunk := range relevant[i].Chunks {
				content.WriteString(chunk.Embedding.ChunkText)
				content.WriteString("\n")
			}
			fmt.Fprintf(&b, "Source %d:\nurl: %s\ndocument title: %s\n\nSource %d content: ```%s```\n\n",
				i+1, doc.URL, doc.Name, i+1, strings.TrimSpace(content.String()))
		}
	}

	return b.String()
}

func sessionTitle(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)
	if runes := []rune(title); len(runes) > maxSessionTitleChars {
		title = string(runes[:maxSessionTitleChars])
	}
	if title == "" {
		title = "New chat"
	}
	return title
}

// GetSession fetches a chat session, enforcing ownership
func (s *ChatService) GetSession(ctx context.Context, sessionID, userEmail string) (*domain.ChatSession, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserEmail != userEmail {
		return nil, domain.ErrNotSessionOwner
	}
	return session, nil
}

// ListSessions returns the user's sessions grouped into recency buckets,
// most recent first within each bucket.
func (s *ChatService) ListSessions(ctx context.Context, userEmail string) (map[domain.RecencyBucket][]*domain.ChatSession, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.ListSessions", telemetry.SpanAttributes{
		UserEmail: userEmail,
		Operation: "list_sessions",
	})
	defer span.End()

	sessions, err := s.repo.ListByUser(ctx, userEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()
	grouped := map[domain.RecencyBucket][]*domain.ChatSession{
		domain.RecencyToday:     {},
		domain.RecencyYesterday: {},
		domain.RecencyLastWeek:  {},
		domain.RecencyLastMonth: {},
		domain.RecencyOlder:     {},
	}
	for _, session := range sessions {
		bucket := domain.BucketForTime(session.LastUpdate, now)
		grouped[bucket] = append(grouped[bucket], session)
	}
	return grouped, nil
}

// DeleteSession removes a chat session, enforcing ownership
func (s *ChatService) DeleteSession(ctx context.Context, sessionID, userEmail string) error {
	if _, err := s.GetSession(ctx, sessionID, userEmail); err != nil {
		return err
	}
	return s.repo.Delete(ctx, sessionID)
}

// RateMessage records user feedback on one assistant message
func (s *ChatService) RateMessage(ctx context.Context, sessionID, messageID, userEmail string, rating domain.MessageRating) error {
	session, err := s.GetSession(ctx, sessionID, userEmail)
	if err != nil {
		return err
	}

	updated := false
	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			session.Messages[i].Rating = rating
			updated = true
			break
		}
	}
	if !updated {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrChatSessionNotFound)
	}

	return s.repo.Save(ctx, session)
}

// DownloadChat renders a session as plain text for export. Returns the
// content and a timestamped filename.
func (s *ChatService) DownloadChat(ctx context.Context, sessionID, userEmail string) (string, string, error) {
	session, err := s.GetSession(ctx, sessionID, userEmail)
	if err != nil {
		return "", "", err
	}

	var lines []string
	for _, msg := range session.Messages {
		speaker := "User"
		if msg.Role == domain.MessageRoleAssistant {
			speaker = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s \nDate: %s \n", speaker, msg.Content, msg.CreatedAt.Format(time.RFC3339)))
		lines = append(lines, "===========")
	}

	filename := fmt.Sprintf("chat_%s_%s.txt", sessionID, s.now().Format("20060102_150405"))
	return strings.Join(lines, "\n"), filename, nil
}
