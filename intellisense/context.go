// Package intellisense tracks the active Dataverse environment and caches the
// schema metadata used for completion.
package intellisense

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueryRequest asks whoever owns query execution to run a query.
type QueryRequest struct {
	ID            uuid.UUID `json:"id"`
	Query         string    `json:"query"`
	EnvironmentID string    `json:"environmentId"`
}

// ContextService is the single source of truth for the active environment.
// One instance is created at startup and passed to every consumer.
//
// Listeners run synchronously on the caller's goroutine, in registration
// order, with no lock held. A listener may call back into the service; the
// nested change is dispatched before the outer dispatch continues.
type ContextService struct {
	logger *zap.Logger

	mu     sync.Mutex
	active string

	envChange broadcaster[string]
	execute   broadcaster[QueryRequest]
}

// NewContextService creates a service with no active environment.
func NewContextService(logger *zap.Logger) *ContextService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ContextService{logger: logger}
}

// SetActiveEnvironment makes id the active environment. An empty id clears it.
// Listeners fire only when the value changes, and have all returned by the
// time this call does.
func (s *ContextService) SetActiveEnvironment(id string) {
	s.mu.Lock()
	if s.active == id {
		s.mu.Unlock()

		return
	}

	prev := s.active
	s.active = id
	s.mu.Unlock()

	s.logger.Debug("active environment changed",
		zap.String("from", prev),
		zap.String("to", id))

	s.envChange.publish(id)
}

// ClearActiveEnvironment is SetActiveEnvironment("").
func (s *ContextService) ClearActiveEnvironment() {
	s.SetActiveEnvironment("")
}

// ActiveEnvironment returns the active environment id and whether one is set.
func (s *ContextService) ActiveEnvironment() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active, s.active != ""
}

// HasActiveEnvironment reports whether an environment is active.
func (s *ContextService) HasActiveEnvironment() bool {
	_, ok := s.ActiveEnvironment()

	return ok
}

// OnEnvironmentChange registers fn to receive the new environment id ("" when
// cleared). The returned function removes exactly this registration; calling
// it more than once is a no-op.
func (s *ContextService) OnEnvironmentChange(fn func(id string)) func() {
	return s.envChange.subscribe(fn)
}

// OnExecuteQueryRequest registers fn to receive query execution requests.
func (s *ContextService) OnExecuteQueryRequest(fn func(QueryRequest)) func() {
	return s.execute.subscribe(fn)
}

// RequestQueryExecution broadcasts a request to run query against the active
// environment. The request is returned so callers can correlate responses.
func (s *ContextService) RequestQueryExecution(query string) QueryRequest {
	env, _ := s.ActiveEnvironment()

	req := QueryRequest{
		ID:            uuid.New(),
		Query:         query,
		EnvironmentID: env,
	}

	s.logger.Debug("query execution requested",
		zap.Stringer("id", req.ID),
		zap.String("environment", env))

	s.execute.publish(req)

	return req
}

// broadcaster is a listener list dispatched in registration order.
type broadcaster[T any] struct {
	mu   sync.Mutex
	subs []*subscription[T]
}

type subscription[T any] struct {
	fn      func(T)
	removed atomic.Bool
}

func (b *broadcaster[T]) subscribe(fn func(T)) func() {
	sub := &subscription[T]{fn: fn}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		if sub.removed.Swap(true) {
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		if i := slices.Index(b.subs, sub); i >= 0 {
			b.subs = slices.Delete(b.subs, i, i+1)
		}
	}
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	subs := slices.Clone(b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		// Removed by an earlier listener in this dispatch.
		if sub.removed.Load() {
			continue
		}

		sub.fn(v)
	}
}
