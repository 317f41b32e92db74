package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mozadev/docubot/internal/knowledge"
	"github.com/mozadev/docubot/internal/session"
)

const (
	// historyLimit bounds how many stored messages are replayed to the model.
	historyLimit = 20

	// snippetMaxRunes is how much of a source chunk is quoted back to the user.
	snippetMaxRunes = 200

	// emptyQuestionReply is returned without touching the model when the
	// question is blank.
	emptyQuestionReply = "Please provide a valid question."

	// fallbackReply covers the rare case of a model returning empty text.
	fallbackReply = "I could not generate a response. Please try rephrasing your question."
)

const systemPrompt = `You are an AI assistant that answers questions about a document collection.

Instructions:
1. Answer based only on the provided document context.
2. If the context does not contain the answer, say so clearly.
3. Keep answers clear and concise.
4. Cite source files when appropriate.
5. Keep a professional but friendly tone.`

// Retriever is the document search surface the manager depends on.
// *knowledge.Store satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Answer is the result of one question against the document collection.
type Answer struct {
	Question   string           `json:"question"`
	Text       string           `json:"answer"`
	Sources    []session.Source `json:"sources"`
	Confidence float64          `json:"confidence"`
}

// StreamCallback receives partial answer text as the model produces it.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk string) error

// Config carries the manager's dependencies and tuning.
type Config struct {
	Genkit    *genkit.Genkit
	Sessions  *session.Store
	Retriever Retriever
	Logger    *slog.Logger

	ModelName   string // provider-qualified, e.g. "gpt-4o-mini" or "googleai/gemini-2.5-flash"
	Temperature float64
	MaxTokens   int
	TopK        int

	Retry       RetryConfig   // zero value uses defaults
	RateLimiter *rate.Limiter // nil uses the default limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Manager answers questions grounded in the document collection, keeping
// per-session conversation history in the session store.
//
// All configuration is captured immutably at construction, so a single
// Manager is safe for concurrent use.
type Manager struct {
	g         *genkit.Genkit
	sessions  *session.Store
	retriever Retriever
	logger    *slog.Logger

	modelName   string
	temperature float64
	maxTokens   int
	topK        int

	retry   RetryConfig
	limiter *rate.Limiter
}

// New creates a Manager from cfg.
func New(cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	m := &Manager{
		g:           cfg.Genkit,
		sessions:    cfg.Sessions,
		retriever:   cfg.Retriever,
		logger:      cfg.Logger,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		topK:        topK,
		retry:       retry,
		limiter:     limiter,
	}

	m.logger.Info("chat manager initialized", "model", m.modelName, "top_k", m.topK)
	return m, nil
}

// Ask answers question within the given session (non-streaming).
func (m *Manager) Ask(ctx context.Context, sessionID uuid.UUID, question string) (*Answer, error) {
	return m.AskStream(ctx, sessionID, question, nil)
}

// AskStream answers question, invoking callback for each text chunk when
// callback is non-nil. The complete answer is returned either way.
func (m *Manager) AskStream(ctx context.Context, sessionID uuid.UUID, question string, callback StreamCallback) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return &Answer{Text: emptyQuestionReply, Sources: []session.Source{}}, nil
	}

	results, err := m.retriever.Search(ctx, question, knowledge.WithTopK(m.topK))
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	history, err := m.sessions.History(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	messages := append(history, ai.NewUserMessage(ai.NewTextPart(buildQuestion(question, results))))

	opts := []ai.GenerateOption{
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithConfig(map[string]any{
			"temperature":     m.temperature,
			"maxOutputTokens": m.maxTokens,
		}),
	}
	if m.modelName != "" {
		opts = append(opts, ai.WithModelName(m.modelName))
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return callback(ctx, chunk.Text())
		}))
	}

	resp, err := m.generateWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		m.logger.Warn("model returned empty response", "session_id", sessionID)
		text = fallbackReply
	}

	answer := &Answer{
		Question:   question,
		Text:       text,
		Sources:    buildSources(results),
		Confidence: meanSimilarity(results),
	}

	m.persistTurn(ctx, sessionID, answer)

	m.logger.Info("question answered",
		"session_id", sessionID,
		"sources", len(answer.Sources),
		"confidence", answer.Confidence,
	)
	return answer, nil
}

// persistTurn appends the Q/A pair to the session. Best-effort: a storage
// failure is logged rather than failing an already generated answer.
func (m *Manager) persistTurn(ctx context.Context, sessionID uuid.UUID, answer *Answer) {
	if err := m.sessions.AddMessage(ctx, &session.Message{
		SessionID: sessionID,
		Role:      session.RoleUser,
		Content:   answer.Question,
	}); err != nil {
		m.logger.Warn("saving user message", "error", err)
		return
	}
	if err := m.sessions.AddMessage(ctx, &session.Message{
		SessionID:  sessionID,
		Role:       session.RoleModel,
		Content:    answer.Text,
		Sources:    answer.Sources,
		Confidence: answer.Confidence,
	}); err != nil {
		m.logger.Warn("saving model message", "error", err)
	}
}

const summaryTimeout = 30 * time.Second

// Summary asks the model for a concise summary of the session so far.
func (m *Manager) Summary(ctx context.Context, sessionID uuid.UUID) (string, error) {
	messages, err := m.sessions.Recent(ctx, sessionID, historyLimit)
	if err != nil {
		return "", fmt.Errorf("loading messages: %w", err)
	}
	if len(messages) == 0 {
		return "There is no conversation history yet.", nil
	}

	var sb strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
	}

	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithPrompt("Generate a concise summary of the following conversation:\n\n%s\n\nSummary:", sb.String()),
	}
	if m.modelName != "" {
		opts = append(opts, ai.WithModelName(m.modelName))
	}

	resp, err := m.generateWithRetry(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("summarizing conversation: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// ClearHistory removes the session's messages, keeping the session itself.
func (m *Manager) ClearHistory(ctx context.Context, sessionID uuid.UUID) error {
	return m.sessions.ClearMessages(ctx, sessionID)
}

// buildQuestion wraps the user's question with the retrieved document
// context. An empty result set is stated explicitly so the model does not
// invent sources.
func buildQuestion(question string, results []knowledge.Result) string {
	var sb strings.Builder
	sb.WriteString("Document context:\n")
	if len(results) == 0 {
		sb.WriteString("(no relevant documents found)\n")
	}
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s (similarity %.2f)\n%s\n\n", i+1, r.Document.Source(), r.Similarity, r.Document.Content)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

func buildSources(results []knowledge.Result) []session.Source {
	sources := make([]session.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, session.Source{
			Filename: r.Document.Source(),
			Snippet:  snippet(r.Document.Content),
			Score:    r.Similarity,
		})
	}
	return sources
}

// snippet returns the first snippetMaxRunes runes of content, with an
// ellipsis when truncated.
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetMaxRunes {
		return content
	}
	return string(runes[:snippetMaxRunes]) + "..."
}

func meanSimilarity(results []knowledge.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += float64(r.Similarity)
	}
	return sum / float64(len(results))
}
