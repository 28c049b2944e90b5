// README: Place lookup contract and the search state exposed to the UI.
package search

import (
	"context"
	"errors"
	"time"

	"rideflow/internal/types"
)

// Lookup turns partial text into place suggestions. An empty result is not an error.
type Lookup interface {
	Search(ctx context.Context, text string) ([]types.Suggestion, error)
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

var ErrUnknownSuggestion = errors.New("suggestion not in current list")

type State struct {
	Query       string             `json:"query"`
	Suggestions []types.Suggestion `json:"suggestions"`
	Status      Status             `json:"status"`
	IsLoading   bool               `json:"is_loading"`
	IsOpen      bool               `json:"is_open"`
	Error       string             `json:"error,omitempty"`
}

// Timer is the subset of *time.Timer the suggester needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
