package analyses

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"competitor-knowledge/internal/alerts"
	"competitor-knowledge/internal/catalog"
	"competitor-knowledge/internal/llm"
	"competitor-knowledge/internal/pricehistory"
	"competitor-knowledge/internal/queue"
	"competitor-knowledge/internal/search"
	"competitor-knowledge/internal/shared/metrics"
	"competitor-knowledge/internal/shared/storage/object"
	"competitor-knowledge/internal/shared/telemetry"
	"competitor-knowledge/internal/shared/util"
)

const (
	defaultSearchLimit = 10
	defaultCurrency    = "USD"
)

// StepOutcome reports what follows a step. Next is empty when the run is over.
type StepOutcome struct {
	Next    string
	Failed  bool
	Skipped bool
}

// Pipeline runs the search, analyze and save steps for one analysis.
// Each step re-reads persisted state so any worker can pick up any step.
type Pipeline struct {
	Repo    Repo
	Catalog catalog.Store
	Search  search.Provider
	LLM     llm.Client
	Queue   queue.Client
	History pricehistory.Repo
	Alerts  alerts.Sender
	Store   object.ObjectStore

	Model       string
	Modules     []string
	SearchLimit int
	Threshold   float64
	NotifyEmail string
	Currency    string

	Now func() time.Time
}

type stepFunc func(ctx context.Context, a Analysis) (StepOutcome, error)

// Run executes one step and enqueues the next one.
// It returns an error only when the failure could not be recorded on the analysis.
func (p *Pipeline) Run(ctx context.Context, analysisID, step string) error {
	outcome, err := p.Execute(ctx, analysisID, step)
	if err != nil {
		return err
	}
	if outcome.Next == "" {
		return nil
	}
	if p.Queue == nil {
		_, err := p.failOutcome(ctx, analysisID, step, &UpstreamError{Op: "enqueue " + outcome.Next, Err: errors.New("queue not configured")})
		return err
	}
	msg := queue.NewMessage(analysisID, outcome.Next, requestIDFromContext(ctx))
	if err := p.Queue.Send(ctx, msg); err != nil {
		_, ferr := p.failOutcome(ctx, analysisID, step, &UpstreamError{Op: "enqueue " + outcome.Next, Err: err})
		return ferr
	}
	telemetry.Info("analysis.step.enqueued", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"step":        outcome.Next,
	})
	return nil
}

// Execute runs a single step against the stored record without dispatching the next one.
// Step failures are written to the record and reported through StepOutcome.Failed.
func (p *Pipeline) Execute(ctx context.Context, analysisID, step string) (outcome StepOutcome, err error) {
	fn, ok := p.stepFor(step)
	if !ok {
		return StepOutcome{}, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	analysis, err := p.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return StepOutcome{}, err
	}
	if analysis.Terminal() {
		return p.skip(ctx, analysisID, step, analysis.Status), nil
	}

	defer func() {
		if r := recover(); r != nil {
			outcome, err = p.failOutcome(ctx, analysisID, step, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	telemetry.Info("analysis.step.started", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"entity_id":   analysis.TargetEntityID,
		"step":        step,
	})
	outcome, err = fn(ctx, analysis)
	if err != nil {
		return p.failOutcome(ctx, analysisID, step, err)
	}
	return outcome, nil
}

// failOutcome records a step failure. A record another delivery already finished is left as is.
func (p *Pipeline) failOutcome(ctx context.Context, analysisID, step string, cause error) (StepOutcome, error) {
	if errors.Is(cause, ErrTerminal) {
		return p.skip(ctx, analysisID, step, "terminal"), nil
	}
	if err := p.fail(ctx, analysisID, step, cause); err != nil {
		if errors.Is(err, ErrTerminal) {
			return p.skip(ctx, analysisID, step, "terminal"), nil
		}
		return StepOutcome{}, err
	}
	return StepOutcome{Failed: true}, nil
}

func (p *Pipeline) skip(ctx context.Context, analysisID, step, status string) StepOutcome {
	telemetry.Warn("analysis.step.skipped", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"step":        step,
		"status":      status,
	})
	return StepOutcome{Skipped: true}
}

func (p *Pipeline) stepFor(step string) (stepFunc, bool) {
	switch step {
	case queue.StepSearch:
		return p.SearchStep, true
	case queue.StepAnalyze:
		return p.AnalyzeStep, true
	case queue.StepSave:
		return p.SaveStep, true
	}
	return nil, false
}

// SearchStep looks up competitors for the analysis entity and stores the raw results.
func (p *Pipeline) SearchStep(ctx context.Context, a Analysis) (StepOutcome, error) {
	if err := p.Repo.MarkStep(ctx, a.ID, StepSearching, 1); err != nil {
		return StepOutcome{}, &PersistenceError{Op: "mark searching", Err: err}
	}
	entity, err := p.entity(ctx, a.TargetEntityID)
	if err != nil {
		return StepOutcome{}, err
	}
	if p.Search == nil {
		return StepOutcome{}, &UpstreamError{Op: "search", Err: errors.New("search provider not configured")}
	}

	query := search.BuildQuery(entity.Name, entity.Categories)
	results, err := p.Search.Search(ctx, query, p.searchLimit())
	if err != nil {
		return StepOutcome{}, &UpstreamError{Op: "search", Err: err}
	}
	if len(results) == 0 {
		return StepOutcome{}, &EmptyResultError{Msg: "no search results found"}
	}
	if err := p.Repo.SaveSearchResults(ctx, a.ID, results); err != nil {
		return StepOutcome{}, &PersistenceError{Op: "save search results", Err: err}
	}
	telemetry.Info("analysis.search.completed", map[string]any{
		"analysis_id": a.ID,
		"entity_id":   a.TargetEntityID,
		"results":     len(results),
	})
	return StepOutcome{Next: queue.StepAnalyze}, nil
}

// AnalyzeStep sends truncated search results to the model and stores the parsed object.
func (p *Pipeline) AnalyzeStep(ctx context.Context, a Analysis) (StepOutcome, error) {
	if err := p.Repo.MarkStep(ctx, a.ID, StepAnalyzing, 2); err != nil {
		return StepOutcome{}, &PersistenceError{Op: "mark analyzing", Err: err}
	}
	if len(a.SearchResults) == 0 {
		return StepOutcome{}, &EmptyResultError{Msg: "no search results to analyze"}
	}
	entity, err := p.entity(ctx, a.TargetEntityID)
	if err != nil {
		return StepOutcome{}, err
	}
	if p.LLM == nil {
		return StepOutcome{}, &UpstreamError{Op: "ai analyze", Err: errors.New("ai client not configured")}
	}

	input := map[string]any{
		"product_name":        entity.Name,
		"product_description": entity.ShortDescription(),
		"product_price":       entity.Price,
		"product_sku":         entity.SKU,
		"search_results":      search.Truncate(a.SearchResults),
	}
	prompt := llm.BuildPrompt(p.Model, p.Modules)
	raw, err := p.LLM.Analyze(ctx, prompt, input)
	if err != nil {
		return StepOutcome{}, &UpstreamError{Op: "ai analyze", Err: err}
	}
	p.archiveRaw(ctx, a.ID, raw)

	obj, err := llm.ParseObject(raw)
	if err != nil {
		return StepOutcome{}, &ParseError{Err: err}
	}
	if len(obj) == 0 {
		return StepOutcome{}, &ParseError{Err: &llm.ParseError{Reason: "empty object"}}
	}
	if err := p.Repo.SaveAIResults(ctx, a.ID, obj); err != nil {
		return StepOutcome{}, &PersistenceError{Op: "save ai results", Err: err}
	}
	return StepOutcome{Next: queue.StepSave}, nil
}

// SaveStep promotes AI results to final data, then records prices and evaluates alerts.
func (p *Pipeline) SaveStep(ctx context.Context, a Analysis) (StepOutcome, error) {
	if err := p.Repo.MarkStep(ctx, a.ID, StepSaving, 3); err != nil {
		return StepOutcome{}, &PersistenceError{Op: "mark saving", Err: err}
	}
	if len(a.AIResults) == 0 {
		return StepOutcome{}, &EmptyResultError{Msg: "no ai results to save"}
	}
	completedAt := p.now()
	if err := p.Repo.Complete(ctx, a.ID, a.AIResults, completedAt); err != nil {
		return StepOutcome{}, &PersistenceError{Op: "save final data", Err: err}
	}
	metrics.IncAnalysisCompleted()
	if a.StartedAt != nil {
		metrics.ObserveAnalysisDurationMs(float64(completedAt.Sub(*a.StartedAt).Milliseconds()))
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       a.ID,
		"entity_id":         a.TargetEntityID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
	})

	p.recordPrices(ctx, a)
	return StepOutcome{}, nil
}

// recordPrices writes price history and sends alerts. Failures are logged and never fail the run.
func (p *Pipeline) recordPrices(ctx context.Context, a Analysis) {
	insights := llm.InsightsFromObject(a.AIResults)
	if len(insights.Competitors) == 0 {
		return
	}
	entity, entityErr := p.entity(ctx, a.TargetEntityID)
	if entityErr != nil {
		telemetry.Warn("analysis.alerts.entity_lookup_failed", map[string]any{
			"analysis_id": a.ID,
			"entity_id":   a.TargetEntityID,
			"error":       sanitizeError(entityErr),
		})
	}

	for _, c := range insights.Competitors {
		if c.Name == "" || c.Price == "" {
			continue
		}
		price := pricehistory.NormalizePrice(c.Price)
		if p.History != nil {
			rec := pricehistory.Record{
				TargetEntityID: a.TargetEntityID,
				AnalysisID:     a.ID,
				CompetitorName: c.Name,
				Price:          price,
				Currency:       p.currency(c.Currency),
			}
			if _, err := p.History.Append(ctx, rec); err != nil {
				metrics.IncPriceRecorded(false)
				telemetry.Error("analysis.price_history.failed", map[string]any{
					"analysis_id": a.ID,
					"competitor":  c.Name,
					"error":       sanitizeError(err),
				})
			} else {
				metrics.IncPriceRecorded(true)
			}
		}

		if entityErr != nil || p.Alerts == nil {
			continue
		}
		note, fire := alerts.Evaluate(entity.Price, c.Name, price, p.Threshold, p.NotifyEmail, entity.Name)
		if !fire {
			continue
		}
		if sendErr := p.Alerts.Send(ctx, note); sendErr != nil {
			metrics.IncPriceAlert(false)
			telemetry.Error("analysis.alert.failed", map[string]any{
				"analysis_id": a.ID,
				"competitor":  c.Name,
				"error":       sanitizeError(sendErr),
			})
			continue
		}
		metrics.IncPriceAlert(true)
		telemetry.Info("analysis.alert.sent", map[string]any{
			"analysis_id": a.ID,
			"competitor":  c.Name,
			"diff_pct":    note.DiffPct,
		})
	}
}

func (p *Pipeline) entity(ctx context.Context, id string) (catalog.Entity, error) {
	if p.Catalog == nil {
		return catalog.Entity{}, &PersistenceError{Op: "catalog lookup", Err: errors.New("catalog not configured")}
	}
	entity, err := p.Catalog.Get(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Entity{}, &NotFoundError{EntityID: id, Err: err}
		}
		return catalog.Entity{}, &PersistenceError{Op: "catalog lookup", Err: err}
	}
	return entity, nil
}

func (p *Pipeline) archiveRaw(ctx context.Context, analysisID, raw string) {
	if p.Store == nil {
		return
	}
	key := object.RawResponseKey(analysisID)
	if _, err := p.Store.Put(ctx, key, "text/plain; charset=utf-8", strings.NewReader(raw)); err != nil {
		telemetry.Warn("analysis.raw_archive.failed", map[string]any{
			"analysis_id": analysisID,
			"key":         key,
			"error":       sanitizeError(err),
		})
	}
}

// fail records a step failure. The write uses a fresh context so a cancelled caller still leaves a terminal record.
func (p *Pipeline) fail(ctx context.Context, analysisID, step string, cause error) error {
	code := errorCode(cause)
	msg := sanitizeError(cause)
	trace := fmt.Sprintf("step=%s code=%s: %+v", step, code, cause)
	completedAt := p.now()
	if err := p.Repo.Fail(context.WithoutCancel(ctx), analysisID, code, msg, trace, completedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			return err
		}
		telemetry.Error("analysis.fail.update_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"step":        step,
			"error":       sanitizeError(err),
			"cause":       msg,
		})
		return fmt.Errorf("record failure for %s: %w", analysisID, err)
	}
	metrics.IncAnalysisFailed()
	metrics.IncStepFailed(step)
	telemetry.Error("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"step":              step,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"error":             msg,
	})
	return nil
}

func (p *Pipeline) searchLimit() int {
	if p.SearchLimit <= 0 {
		return defaultSearchLimit
	}
	return p.SearchLimit
}

func (p *Pipeline) currency(competitorCurrency string) string {
	if c := strings.TrimSpace(competitorCurrency); c != "" {
		return c
	}
	if p.Currency != "" {
		return p.Currency
	}
	return defaultCurrency
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	return util.TruncateRunes(strings.TrimSpace(msg), 500)
}
