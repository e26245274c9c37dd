package analyses

import (
	"context"
	"sync"
	"testing"
	"time"

	"competitor-knowledge/internal/alerts"
	"competitor-knowledge/internal/catalog"
	"competitor-knowledge/internal/pricehistory"
	"competitor-knowledge/internal/queue"
	"competitor-knowledge/internal/search"
)

type fakeSearch struct {
	results  []search.Result
	err      error
	queries  []string
	onSearch func()
}

func (f *fakeSearch) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	if f.onSearch != nil {
		f.onSearch()
	}
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

type fakeLLM struct {
	raw    string
	err    error
	inputs []map[string]any
}

func (f *fakeLLM) Analyze(ctx context.Context, prompt string, input map[string]any) (string, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return "", f.err
	}
	return f.raw, nil
}

type recordingSender struct {
	sent []alerts.Notification
	err  error
}

func (s *recordingSender) Send(ctx context.Context, n alerts.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *recordingQueue) pop() (queue.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) == 0 {
		return queue.Message{}, false
	}
	msg := q.msgs[0]
	q.msgs = q.msgs[1:]
	return msg, true
}

type emptyCatalog struct{}

func (emptyCatalog) Get(ctx context.Context, id string) (catalog.Entity, error) {
	return catalog.Entity{}, catalog.ErrNotFound
}

func (emptyCatalog) Upsert(ctx context.Context, e catalog.Entity) error { return nil }

type failingHistory struct{}

func (failingHistory) Append(ctx context.Context, rec pricehistory.Record) (pricehistory.Record, error) {
	return pricehistory.Record{}, context.DeadlineExceeded
}

func (failingHistory) ListByEntity(ctx context.Context, id string, limit int) ([]pricehistory.Record, error) {
	return nil, nil
}

type harness struct {
	repo     *MemoryRepo
	catalog  *catalog.MemoryStore
	search   *fakeSearch
	llm      *fakeLLM
	history  *pricehistory.MemoryRepo
	sender   *recordingSender
	queue    *recordingQueue
	pipeline *Pipeline
	svc      *Service
}

const competitorJSON = `{"competitors":[{"name":"Rival","url":"https://rival.test/p","price":"$70.00","currency":"USD","stock_status":"in_stock","comparison_notes":"cheaper"}]}`

func threeHits() []search.Result {
	return []search.Result{
		{URL: "https://a.test", Title: "A", Content: "alpha"},
		{URL: "https://b.test", Title: "B", Content: "beta"},
		{URL: "https://c.test", Title: "C", Snippet: "gamma"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo: NewMemoryRepo(),
		catalog: catalog.NewMemoryStore(catalog.Entity{
			ID:          "sku-1",
			Name:        "Trail Shoe",
			SKU:         "TS-1",
			Price:       100,
			Description: "<p>Light <b>trail</b> shoe</p>",
			Categories:  []string{"Shoes", "Outdoor"},
		}),
		search:  &fakeSearch{results: threeHits()},
		llm:     &fakeLLM{raw: competitorJSON},
		history: pricehistory.NewMemoryRepo(),
		sender:  &recordingSender{},
		queue:   &recordingQueue{},
	}
	h.pipeline = &Pipeline{
		Repo:        h.repo,
		Catalog:     h.catalog,
		Search:      h.search,
		LLM:         h.llm,
		Queue:       h.queue,
		History:     h.history,
		Alerts:      h.sender,
		Model:       "gpt-4o-mini",
		Threshold:   10,
		NotifyEmail: "owner@example.com",
		Currency:    "USD",
	}
	h.svc = &Service{
		Repo:     h.repo,
		Catalog:  h.catalog,
		Queue:    h.queue,
		Pipeline: h.pipeline,
		History:  h.history,
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}
	return h
}

// drain runs queued steps until the queue is empty, the way a worker would.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg, ok := h.queue.pop()
		if !ok {
			return
		}
		if err := h.pipeline.Run(context.Background(), msg.AnalysisID, msg.Step); err != nil {
			t.Fatalf("run %s: %v", msg.Step, err)
		}
	}
	t.Fatalf("queue did not drain")
}

func (h *harness) get(t *testing.T, id string) Analysis {
	t.Helper()
	a, err := h.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	return a
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// staleRepo serves a fixed snapshot from GetByID, like a worker that read the record before another delivery finished it.
type staleRepo struct {
	*MemoryRepo
	snapshot Analysis
}

func (r *staleRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == r.snapshot.ID {
		return r.snapshot, nil
	}
	return r.MemoryRepo.GetByID(ctx, analysisID)
}
