// Package registry keeps track of the tasks started by this process and
// answers status and result queries from the engine.
//
// The registry is process local and not durable: a restart forgets the
// records, while the engine still knows the tasks by their ids.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/CZERTAINLY/runway/internal/parallel"

	"github.com/google/uuid"
)

// refreshLimit caps concurrent status queries of List
const refreshLimit = 8

// Engine is the part of the durable-execution engine used by the registry
type Engine interface {
	Start(ctx context.Context, id, queue string, workflow any, in model.TaskInput) error
	Status(ctx context.Context, id string) (model.Status, error)
	Result(ctx context.Context, id string, out any) error
}

// Kind describes the task variant a registry serves
type Kind struct {
	Kind      model.Kind
	Prefix    string // of generated ids
	TaskQueue string
	Workflow  any
	// Noun names a task in messages, e.g. Task or Scan
	Noun string
	// names of the tools to poll and fetch with, used in messages
	CheckTool string
	FetchTool string
}

// Check is the answer to a status query
type Check struct {
	TaskID  string
	Status  model.Status
	Record  *model.TaskRecord // nil when the task was not started here
	Message string
}

// Fetched is the result of a finished task
type Fetched[R any] struct {
	TaskID string
	Status model.Status
	Result R
}

// Registry maps task ids to records. R is the structured result type of
// the kind's workflow.
type Registry[R any] struct {
	engine Engine
	kind   Kind
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	records map[string]*model.TaskRecord
	order   []string
}

func New[R any](engine Engine, kind Kind) *Registry[R] {
	return &Registry[R]{
		engine:  engine,
		kind:    kind,
		now:     time.Now,
		newID:   func() string { return NewID(kind.Prefix) },
		records: make(map[string]*model.TaskRecord),
	}
}

// WithClock replaces the clock used for StartedAt
func (r *Registry[R]) WithClock(now func() time.Time) *Registry[R] {
	r.now = now
	return r
}

// WithIDs replaces the id generator
func (r *Registry[R]) WithIDs(newID func() string) *Registry[R] {
	r.newID = newID
	return r
}

func (r *Registry[R]) Kind() Kind {
	return r.kind
}

// NewID returns prefix-<first 12 hex characters of a random UUID>
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + hex[:12]
}

// Start starts the task workflow and returns at once. A task id set in in is
// used as is and must not be known yet. An empty label is replaced by
// model.DefaultLabel.
func (r *Registry[R]) Start(ctx context.Context, in model.TaskInput, label string) (model.TaskRecord, error) {
	if in.TaskID == "" {
		in.TaskID = r.newID()
	} else if _, ok := r.get(in.TaskID); ok {
		return model.TaskRecord{}, fmt.Errorf("%w: %s", model.ErrDuplicateTask, in.TaskID)
	}
	if label == "" {
		label = model.DefaultLabel(r.kind.Kind, in)
	}

	if err := r.engine.Start(ctx, in.TaskID, r.kind.TaskQueue, r.kind.Workflow, in); err != nil {
		return model.TaskRecord{}, err
	}

	rec := model.TaskRecord{
		TaskID:    in.TaskID,
		Kind:      r.kind.Kind,
		Input:     in,
		Label:     label,
		StartedAt: r.now().UTC(),
		Status:    model.StatusRunning,
	}
	r.mu.Lock()
	r.records[rec.TaskID] = &rec
	r.order = append(r.order, rec.TaskID)
	r.mu.Unlock()

	slog.InfoContext(ctx, "task started", "task_id", rec.TaskID, "kind", rec.Kind, "label", rec.Label)
	return rec, nil
}

// StartMessage tells the caller how to follow a started task
func (r *Registry[R]) StartMessage(id string) string {
	return fmt.Sprintf("%s started. Use %s('%s') to poll and %s('%s') when complete.",
		r.kind.Noun, r.kind.CheckTool, id, r.kind.FetchTool, id)
}

// Check asks the engine for the status of id. Engine errors are not
// returned, the status is UNKNOWN then.
func (r *Registry[R]) Check(ctx context.Context, id string) Check {
	status := r.status(ctx, id)
	rec := r.update(id, status)
	return Check{
		TaskID:  id,
		Status:  status,
		Record:  rec,
		Message: r.message(id, status),
	}
}

func (r *Registry[R]) message(id string, status model.Status) string {
	switch status {
	case model.StatusCompleted:
		return fmt.Sprintf("%s finished! Use %s('%s') to retrieve results.", r.kind.Noun, r.kind.FetchTool, id)
	case model.StatusFailed:
		return r.kind.Noun + " failed. Check the Temporal UI for details."
	case model.StatusRunning:
		return r.kind.Noun + " is still running. Check again shortly."
	default:
		return "Workflow status: " + status.String()
	}
}

// Fetch returns the result of a completed task. It does not block: a task
// in any other status returns model.ErrNotReady. Fetching a completed task
// again returns the same result.
func (r *Registry[R]) Fetch(ctx context.Context, id string) (Fetched[R], error) {
	status := r.status(ctx, id)
	r.update(id, status)
	if status != model.StatusCompleted {
		return Fetched[R]{TaskID: id, Status: status}, fmt.Errorf("%w: %s is not yet complete (status: %s), use %s() to poll",
			model.ErrNotReady, r.kind.Noun, status, r.kind.CheckTool)
	}

	var res R
	if err := r.engine.Result(ctx, id, &res); err != nil {
		return Fetched[R]{TaskID: id, Status: status}, fmt.Errorf("reading result of %s: %w", id, err)
	}
	return Fetched[R]{TaskID: id, Status: model.StatusCompleted, Result: res}, nil
}

// RunBlocking starts a task and waits for its result. Prefer Start, Check
// and Fetch for tasks running longer than a few seconds.
func (r *Registry[R]) RunBlocking(ctx context.Context, in model.TaskInput, label string) (Fetched[R], error) {
	rec, err := r.Start(ctx, in, label)
	if err != nil {
		return Fetched[R]{}, err
	}

	var res R
	if err := r.engine.Result(ctx, rec.TaskID, &res); err != nil {
		status := model.StatusFailed
		if ctx.Err() != nil {
			// the task keeps running, only the caller gave up
			status = r.status(context.WithoutCancel(ctx), rec.TaskID)
		}
		r.update(rec.TaskID, status)
		return Fetched[R]{TaskID: rec.TaskID, Status: status}, fmt.Errorf("%s %s: %w", r.kind.Noun, rec.TaskID, err)
	}
	r.update(rec.TaskID, model.StatusCompleted)
	return Fetched[R]{TaskID: rec.TaskID, Status: model.StatusCompleted, Result: res}, nil
}

// List returns all records in start order. Records in RUNNING or UNKNOWN
// status are refreshed first, a failed refresh marks the record UNKNOWN.
func (r *Registry[R]) List(ctx context.Context) []model.TaskRecord {
	r.mu.Lock()
	recs := make([]model.TaskRecord, 0, len(r.order))
	for _, id := range r.order {
		recs = append(recs, *r.records[id])
	}
	r.mu.Unlock()

	var stale []string
	for _, rec := range recs {
		if !rec.Status.Terminal() {
			stale = append(stale, rec.TaskID)
		}
	}
	statuses := parallel.Map(ctx, refreshLimit, stale, r.status)

	for i, id := range stale {
		r.update(id, statuses[i])
		idx := slices.IndexFunc(recs, func(rec model.TaskRecord) bool { return rec.TaskID == id })
		recs[idx].Status = statuses[i]
	}
	return recs
}

// Get returns a copy of the record of id
func (r *Registry[R]) Get(id string) (model.TaskRecord, bool) {
	return r.get(id)
}

func (r *Registry[R]) get(id string) (model.TaskRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return model.TaskRecord{}, false
	}
	return *rec, true
}

// status asks the engine, errors are logged and reported as UNKNOWN
func (r *Registry[R]) status(ctx context.Context, id string) model.Status {
	status, err := r.engine.Status(ctx, id)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, model.ErrUnknownTask) {
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "querying task status", "task_id", id, "error", err)
		return model.StatusUnknown
	}
	return status
}

// update stores the last observed status of a known task and returns a copy
// of its record
func (r *Registry[R]) update(id string, status model.Status) *model.TaskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	rec.Status = status
	ret := *rec
	return &ret
}
