// README: Debounced, last-query-wins place suggester for one input field.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"rideflow/internal/metrics"
	"rideflow/internal/types"
)

type Options struct {
	MinLength int
	Debounce  time.Duration
	Timeout   time.Duration
	Scheduler Scheduler
}

type Suggester struct {
	lookup Lookup
	opts   Options
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	query       string
	gen         uint64
	suggestions []types.Suggestion
	status      Status
	isOpen      bool
	err         error
	timer       Timer
	abort       context.CancelFunc
	closed      bool
}

// NewSuggester wraps lookup. A nil lookup behaves as an unconfigured provider.
func NewSuggester(lookup Lookup, opts Options, log *zap.Logger) *Suggester {
	if opts.MinLength <= 0 {
		opts.MinLength = 2
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Suggester{
		lookup: lookup,
		opts:   opts,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		status: StatusIdle,
	}
}

// OnQueryChange records a keystroke. Short queries clear the list at once and
// text over types.MaxPlaceQueryLen fails without a lookup; anything else is
// looked up after the quiet period if still current.
func (s *Suggester) OnQueryChange(text string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.stateLocked()
	}

	s.query = text
	s.isOpen = true
	s.supersedeLocked()

	if err := types.ValidatePlaceText(text); err != nil {
		s.suggestions = nil
		s.status = StatusError
		s.err = err
		return s.stateLocked()
	}
	if !s.searchableLocked() {
		s.suggestions = nil
		s.status = StatusIdle
		s.err = nil
		return s.stateLocked()
	}
	s.scheduleLocked()
	return s.stateLocked()
}

// Focus opens the list and looks up the current query if nothing is shown.
func (s *Suggester) Focus() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.stateLocked()
	}
	s.isOpen = true
	if s.searchableLocked() && len(s.suggestions) == 0 && s.timer == nil && s.abort == nil {
		s.gen++
		s.scheduleLocked()
	}
	return s.stateLocked()
}

func (s *Suggester) Blur() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isOpen = false
	return s.stateLocked()
}

// Select returns the chosen suggestion and resets the field.
func (s *Suggester) Select(id string) (types.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sg := range s.suggestions {
		if sg.ID != id {
			continue
		}
		s.supersedeLocked()
		s.query = ""
		s.suggestions = nil
		s.status = StatusIdle
		s.err = nil
		s.isOpen = false
		return sg, nil
	}
	return types.Suggestion{}, ErrUnknownSuggestion
}

func (s *Suggester) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Suggester) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.supersedeLocked()
	s.cancel()
}

// supersedeLocked invalidates the pending timer and any in-flight lookup.
func (s *Suggester) supersedeLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.abort != nil {
		s.abort()
		s.abort = nil
		s.status = StatusIdle
	}
}

// searchableLocked reports whether the query is long enough to look up and
// within MaxPlaceQueryLen.
func (s *Suggester) searchableLocked() bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s.query))
	return n >= s.opts.MinLength && n <= types.MaxPlaceQueryLen
}

func (s *Suggester) scheduleLocked() {
	gen := s.gen
	s.timer = s.opts.Scheduler.AfterFunc(s.opts.Debounce, func() { s.fire(gen) })
}

func (s *Suggester) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	query := strings.TrimSpace(s.query)
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	s.abort = cancel
	s.status = StatusLoading
	s.mu.Unlock()

	var (
		results []types.Suggestion
		err     error
	)
	if s.lookup == nil {
		err = fmt.Errorf("%w: no place lookup", types.ErrConfiguration)
	} else {
		results, err = s.lookup.Search(ctx, query)
	}
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		metrics.StaleResultsTotal.WithLabelValues("search").Inc()
		return
	}
	s.abort = nil

	switch {
	case err == nil:
		s.suggestions = results
		s.status = StatusIdle
		s.err = nil
		metrics.SuggestionFetchesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, types.ErrConfiguration):
		s.log.Warn("place lookup not configured", zap.Error(err))
		s.suggestions = nil
		s.status = StatusIdle
		s.err = nil
		metrics.SuggestionFetchesTotal.WithLabelValues("unconfigured").Inc()
	default:
		s.log.Warn("place lookup failed", zap.String("query", query), zap.Error(err))
		s.suggestions = nil
		s.status = StatusError
		s.err = err
		metrics.SuggestionFetchesTotal.WithLabelValues("error").Inc()
	}
}

func (s *Suggester) stateLocked() State {
	st := State{
		Query:       s.query,
		Suggestions: append(make([]types.Suggestion, 0, len(s.suggestions)), s.suggestions...),
		Status:      s.status,
		IsLoading:   s.status == StatusLoading,
		IsOpen:      s.isOpen,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	return st
}
