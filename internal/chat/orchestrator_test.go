package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorleaf/ragserve/internal/llm"
	"github.com/vectorleaf/ragserve/internal/session"
	"github.com/vectorleaf/ragserve/internal/vectorstore"
	"github.com/vectorleaf/ragserve/pkg/fingerprint"
)

type fakeEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeProvider struct {
	calls    int
	requests []llm.ChatRequest
	answer   string
	err      error
}

func (f *fakeProvider) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Provider: "fake", Model: "fake-1", Content: f.answer}, nil
}

func (f *fakeProvider) GenerateEmbedding(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) Name() string { return "fake" }

func seedStore(t *testing.T, store vectorstore.Store, tenantID string, entries []vectorstore.Entry) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(),
		vectorstore.Scope{TenantID: tenantID}, entries))
}

func entry(fp string, vec []float32, filename string, chunk int, content string) vectorstore.Entry {
	return vectorstore.Entry{
		Fingerprint: fingerprint.Fingerprint(fp),
		Vector:      vec,
		Metadata: vectorstore.Metadata{
			SourceID:   "src-1",
			Filename:   filename,
			ChunkIndex: chunk,
			Content:    content,
		},
	}
}

func newTestOrchestrator(store vectorstore.Store, embedder *fakeEmbedder, provider *fakeProvider) (*Orchestrator, session.Store) {
	sessions := session.NewMemoryStore()
	o := NewOrchestrator(embedder, store, sessions, provider, DefaultOptions())
	return o, sessions
}

func TestChat_InvalidTopKBeforeAnyProviderContact(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	provider := &fakeProvider{answer: "hi"}
	o, _ := newTestOrchestrator(vectorstore.NewMemoryStore(), embedder, provider)

	for _, topK := range []int{0, -1, 51} {
		_, err := o.Chat(context.Background(), Request{TenantID: "acme", Message: "q", TopK: topK})
		assert.ErrorIs(t, err, ErrInvalidTopK, "top_k=%d", topK)
	}
	assert.Zero(t, embedder.calls, "no embedding call for rejected requests")
	assert.Zero(t, provider.calls, "no chat call for rejected requests")
}

func TestChat_EmptyMessage(t *testing.T) {
	o, _ := newTestOrchestrator(vectorstore.NewMemoryStore(), &fakeEmbedder{vec: []float32{1}}, &fakeProvider{})

	_, err := o.Chat(context.Background(), Request{TenantID: "acme", Message: "   ", TopK: 3})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChat_GroundedAnswerWithCitations(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "acme", []vectorstore.Entry{
		entry("fp-a", []float32{1, 0}, "handbook.pdf", 0, "vacation policy is 25 days"),
		entry("fp-b", []float32{0.9, 0.1}, "handbook.pdf", 3, "remote work is allowed"),
		entry("fp-c", []float32{0, 1}, "menu.txt", 0, "tuesday is taco day"),
	})
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	provider := &fakeProvider{answer: "You get 25 days."}
	o, sessions := newTestOrchestrator(store, embedder, provider)

	resp, err := o.Chat(context.Background(), Request{
		TenantID: "acme", Message: "how much vacation do I get?", TopK: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "You get 25 days.", resp.Answer)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, []string{"handbook.pdf#chunk0", "handbook.pdf#chunk3"}, resp.Citations)
	require.Len(t, resp.Matches, 2)

	// System prompt carries the retrieved passages.
	require.Len(t, provider.requests, 1)
	sys := provider.requests[0].Messages[0]
	assert.Equal(t, "system", sys.Role)
	assert.Contains(t, sys.Content, "vacation policy is 25 days")
	assert.NotContains(t, sys.Content, "taco day")

	// Both turns persisted, assistant turn carries the citations.
	turns, err := sessions.History(context.Background(), "acme", resp.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "how much vacation do I get?", turns[0].Content)
	assert.Equal(t, resp.Citations, turns[1].Citations)
}

func TestChat_SessionReuseThreadsHistory(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "acme", []vectorstore.Entry{
		entry("fp-a", []float32{1, 0}, "doc.txt", 0, "widgets cost five dollars"),
	})
	provider := &fakeProvider{answer: "answer"}
	o, _ := newTestOrchestrator(store, &fakeEmbedder{vec: []float32{1, 0}}, provider)

	first, err := o.Chat(context.Background(), Request{TenantID: "acme", Message: "q1", TopK: 1, IncludeHistory: true})
	require.NoError(t, err)

	second, err := o.Chat(context.Background(), Request{
		TenantID: "acme", SessionID: first.SessionID, Message: "q2", TopK: 1, IncludeHistory: true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	// Second prompt: system, q1, a1, q2.
	msgs := provider.requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "q1", msgs[1].Content)
	assert.Equal(t, "answer", msgs[2].Content)
	assert.Equal(t, "q2", msgs[3].Content)
}

func TestChat_DistinctSessionsDoNotShareHistory(t *testing.T) {
	provider := &fakeProvider{answer: "a"}
	o, _ := newTestOrchestrator(vectorstore.NewMemoryStore(), &fakeEmbedder{vec: []float32{1}}, provider)

	first, err := o.Chat(context.Background(), Request{TenantID: "acme", Message: "q1", TopK: 1, IncludeHistory: true})
	require.NoError(t, err)
	second, err := o.Chat(context.Background(), Request{TenantID: "acme", Message: "q2", TopK: 1, IncludeHistory: true})
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	// Neither prompt saw the other's turns.
	require.Len(t, provider.requests, 2)
	assert.Len(t, provider.requests[0].Messages, 2)
	assert.Len(t, provider.requests[1].Messages, 2)
}

func TestChat_HistoryOptOut(t *testing.T) {
	provider := &fakeProvider{answer: "a"}
	o, sessions := newTestOrchestrator(vectorstore.NewMemoryStore(), &fakeEmbedder{vec: []float32{1}}, provider)

	first, err := o.Chat(context.Background(), Request{
		TenantID: "acme", Message: "q1", TopK: 1, IncludeHistory: true,
	})
	require.NoError(t, err)

	// Opting out keeps the prior turns out of the prompt entirely.
	_, err = o.Chat(context.Background(), Request{
		TenantID: "acme", SessionID: first.SessionID, Message: "q2", TopK: 1,
	})
	require.NoError(t, err)
	msgs := provider.requests[1].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "q2", msgs[1].Content)

	// The turn is still recorded even when history is not replayed.
	turns, err := sessions.History(context.Background(), "acme", first.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 4)
}

func TestChat_ForeignSessionRejected(t *testing.T) {
	provider := &fakeProvider{answer: "a"}
	embedder := &fakeEmbedder{vec: []float32{1}}
	o, _ := newTestOrchestrator(vectorstore.NewMemoryStore(), embedder, provider)

	first, err := o.Chat(context.Background(), Request{TenantID: "acme", Message: "q", TopK: 1})
	require.NoError(t, err)
	callsAfterFirst := provider.calls

	_, err = o.Chat(context.Background(), Request{
		TenantID: "globex", SessionID: first.SessionID, Message: "q", TopK: 1,
	})
	assert.ErrorIs(t, err, session.ErrTenantMismatch)
	assert.Equal(t, callsAfterFirst, provider.calls, "no provider call for a rejected session")
}

func TestChat_EmptyRetrievalStillAnswers(t *testing.T) {
	provider := &fakeProvider{answer: "I don't know."}
	o, _ := newTestOrchestrator(vectorstore.NewMemoryStore(), &fakeEmbedder{vec: []float32{1}}, provider)

	resp, err := o.Chat(context.Background(), Request{TenantID: "acme", Message: "anything?", TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.Equal(t, 1, provider.calls)
	assert.Contains(t, provider.requests[0].Messages[0].Content, "no relevant passages")
}

func TestChat_ProviderFailureLeavesSessionUntouched(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("%w: quota", llm.ErrProvider)}
	o, sessions := newTestOrchestrator(vectorstore.NewMemoryStore(), &fakeEmbedder{vec: []float32{1}}, provider)

	sessionID, err := sessions.GetOrCreate(context.Background(), "acme", "")
	require.NoError(t, err)

	_, err = o.Chat(context.Background(), Request{
		TenantID: "acme", SessionID: sessionID, Message: "q", TopK: 1,
	})
	require.ErrorIs(t, err, llm.ErrProvider)

	turns, err := sessions.History(context.Background(), "acme", sessionID, 0)
	require.NoError(t, err)
	assert.Empty(t, turns, "failed turn is not persisted")
}

func TestChat_SourceScopedRetrieval(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedStore(t, store, "acme", []vectorstore.Entry{
		{
			Fingerprint: "fp-hr",
			Vector:      []float32{1, 0},
			Metadata:    vectorstore.Metadata{SourceID: "src-hr", Filename: "hr.txt", ChunkIndex: 0, Content: "hr text"},
		},
		{
			Fingerprint: "fp-eng",
			Vector:      []float32{1, 0},
			Metadata:    vectorstore.Metadata{SourceID: "src-eng", Filename: "eng.txt", ChunkIndex: 0, Content: "eng text"},
		},
	})
	provider := &fakeProvider{answer: "a"}
	o, _ := newTestOrchestrator(store, &fakeEmbedder{vec: []float32{1, 0}}, provider)

	resp, err := o.Chat(context.Background(), Request{
		TenantID: "acme", Message: "q", TopK: 10, SourceIDs: []string{"src-hr"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hr.txt#chunk0"}, resp.Citations)
}

func TestBuildContext_BudgetAndDedup(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil, nil, Options{
		MaxSearchK:      50,
		ContextMaxChars: 120,
		SnippetMaxChars: 1200,
	})

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	matches := []vectorstore.Match{
		{Fingerprint: "a", Score: 0.9, Metadata: vectorstore.Metadata{Filename: "f.txt", ChunkIndex: 1, Content: "short one"}},
		{Fingerprint: "b", Score: 0.8, Metadata: vectorstore.Metadata{Filename: "f.txt", ChunkIndex: 1, Content: "short one again"}},
		{Fingerprint: "c", Score: 0.7, Metadata: vectorstore.Metadata{Filename: "g.txt", ChunkIndex: 0, Content: string(long)}},
	}

	ctxBlock, citations := o.buildContext(matches)
	assert.Contains(t, ctxBlock, "f.txt#chunk1")
	assert.NotContains(t, ctxBlock, "g.txt", "over-budget passage dropped")
	assert.Equal(t, []string{"f.txt#chunk1"}, citations, "duplicate keys collapse, first-reference order")
}

func TestBuildContext_TruncatesOnRuneBoundary(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil, nil, Options{
		MaxSearchK:      50,
		ContextMaxChars: 8000,
		SnippetMaxChars: 5,
	})

	// Each é is two bytes, so a byte cut at 5 would land mid-rune.
	matches := []vectorstore.Match{
		{Fingerprint: "a", Score: 0.9, Metadata: vectorstore.Metadata{Filename: "f.txt", ChunkIndex: 0, Content: strings.Repeat("é", 10)}},
	}

	ctxBlock, _ := o.buildContext(matches)
	assert.True(t, utf8.ValidString(ctxBlock))
	assert.Contains(t, ctxBlock, "éé")
	assert.NotContains(t, ctxBlock, "ééé")
}
