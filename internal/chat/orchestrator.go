// Package chat runs one retrieval-augmented turn: resolve the session,
// embed the question, search the tenant's vectors, assemble a grounded
// prompt with windowed history, call the chat provider, and persist the
// exchange. Turns are written only after the provider succeeds, so a
// failed or cancelled call leaves the session untouched.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/vectorleaf/ragserve/internal/llm"
	"github.com/vectorleaf/ragserve/internal/models"
	"github.com/vectorleaf/ragserve/internal/session"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
)

var (
	// ErrInvalidTopK rejects out-of-range retrieval depth before any
	// provider is contacted.
	ErrInvalidTopK = errors.New("chat: top_k out of range")

	ErrEmptyMessage = errors.New("chat: empty message")
)

const systemPrompt = `You are a helpful assistant. Answer the user's question using ONLY the context passages below. Each passage is labeled with its citation key. If the context does not contain the answer, say you don't know rather than guessing.`

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

type Options struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	MaxSearchK      int // upper bound on top_k
	HistoryMaxTurns int // prior turns included in the prompt
	ContextMaxChars int // total budget for context passages
	SnippetMaxChars int // per-passage truncation
}

func DefaultOptions() Options {
	return Options{
		MaxSearchK:      50,
		HistoryMaxTurns: 20,
		ContextMaxChars: 8000,
		SnippetMaxChars: 1200,
	}
}

type Orchestrator struct {
	embedder QueryEmbedder
	vectors  vectorstore.Store
	sessions session.Store
	provider llm.Provider
	opts     Options
}

func NewOrchestrator(embedder QueryEmbedder, vectors vectorstore.Store, sessions session.Store, provider llm.Provider, opts Options) *Orchestrator {
	if opts.MaxSearchK <= 0 {
		opts.MaxSearchK = DefaultOptions().MaxSearchK
	}
	if opts.ContextMaxChars <= 0 {
		opts.ContextMaxChars = DefaultOptions().ContextMaxChars
	}
	if opts.SnippetMaxChars <= 0 {
		opts.SnippetMaxChars = DefaultOptions().SnippetMaxChars
	}
	return &Orchestrator{
		embedder: embedder,
		vectors:  vectors,
		sessions: sessions,
		provider: provider,
		opts:     opts,
	}
}

type Request struct {
	TenantID  string
	SessionID string // empty starts a new session
	Message   string
	SourceIDs []string // empty searches all of the tenant's sources
	TopK      int
	// IncludeHistory replays the windowed session transcript into the
	// prompt. Off, the turn is answered statelessly but still recorded.
	IncludeHistory bool
}

type Response struct {
	SessionID string              `json:"session_id"`
	Answer    string              `json:"answer"`
	Citations []string            `json:"citations"`
	Matches   []vectorstore.Match `json:"matches,omitempty"`
	Provider  string              `json:"provider"`
	Model     string              `json:"model"`
}

func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Response, error) {
	scope := vectorstore.Scope{TenantID: req.TenantID, SourceIDs: req.SourceIDs}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	// Range check comes before any session or provider work so a bad
	// request never costs an embedding call.
	if req.TopK < 1 || req.TopK > o.opts.MaxSearchK {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidTopK, req.TopK, o.opts.MaxSearchK)
	}

	sessionID, err := o.sessions.GetOrCreate(ctx, req.TenantID, req.SessionID)
	if err != nil {
		return nil, err
	}

	var history []models.Turn
	if req.IncludeHistory {
		history, err = o.sessions.History(ctx, req.TenantID, sessionID, o.opts.HistoryMaxTurns)
		if err != nil {
			return nil, err
		}
	}

	queryVec, err := o.embedder.EmbedSingle(ctx, req.Message)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := o.vectors.Search(ctx, scope, queryVec, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	contextBlock, citations := o.buildContext(matches)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    models.RoleSystem,
		Content: systemPrompt + "\n\n" + contextBlock,
	})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: models.RoleUser, Content: req.Message})

	// Retrieval coming back empty is not an error; the provider is
	// still asked and the system prompt tells it the context is empty.
	resp, err := o.provider.ChatCompletion(ctx, llm.ChatRequest{
		Model:       o.opts.Model,
		Messages:    messages,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	// Persist only after the provider answered: a cancelled or failed
	// call must not leave a dangling user turn in the history.
	if err := o.sessions.AppendTurns(ctx, req.TenantID, sessionID, []models.Turn{
		{Role: models.RoleUser, Content: req.Message},
		{Role: models.RoleAssistant, Content: resp.Content, Citations: citations},
	}); err != nil {
		return nil, fmt.Errorf("append turns: %w", err)
	}

	slog.Info("chat turn completed",
		"tenant_id", req.TenantID,
		"session_id", sessionID,
		"matches", len(matches),
		"provider", resp.Provider,
	)

	return &Response{
		SessionID: sessionID,
		Answer:    resp.Content,
		Citations: citations,
		Matches:   matches,
		Provider:  resp.Provider,
		Model:     resp.Model,
	}, nil
}

// SessionHistory returns the full stored transcript of a session, in
// chronological order.
func (o *Orchestrator) SessionHistory(ctx context.Context, tenantID, sessionID string) ([]models.Turn, error) {
	return o.sessions.History(ctx, tenantID, sessionID, 0)
}

// buildContext renders matches into labeled passages under the char
// budget and collects citation keys in first-reference order. A match
// that no longer fits the budget is dropped along with its citation.
func (o *Orchestrator) buildContext(matches []vectorstore.Match) (string, []string) {
	if len(matches) == 0 {
		return "Context: (no relevant passages found)", []string{}
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	used := 0
	citations := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))

	for _, m := range matches {
		snippet := truncate(m.Metadata.Content, o.opts.SnippetMaxChars)
		key := CitationKey(m.Metadata)
		block := fmt.Sprintf("[%s | score=%.3f]\n%s\n\n", key, m.Score, snippet)
		if used+len(block) > o.opts.ContextMaxChars {
			break
		}
		b.WriteString(block)
		used += len(block)
		if !seen[key] {
			seen[key] = true
			citations = append(citations, key)
		}
	}
	return strings.TrimRight(b.String(), "\n"), citations
}

// truncate cuts s to at most max bytes without splitting a rune.
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

// CitationKey names a retrieved chunk for the client, e.g.
// "handbook.pdf#chunk3".
func CitationKey(md vectorstore.Metadata) string {
	return fmt.Sprintf("%s#chunk%d", md.Filename, md.ChunkIndex)
}
