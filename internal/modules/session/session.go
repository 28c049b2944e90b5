// README: One rider's booking screen: a quote cache plus pickup and dropoff suggesters.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"rideflow/internal/modules/quote"
	"rideflow/internal/modules/search"
	"rideflow/internal/types"
)

type Field string

const (
	FieldPickup  Field = "pickup"
	FieldDropoff Field = "dropoff"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrInvalidField = errors.New("field must be pickup or dropoff")
)

func ParseField(v string) (Field, error) {
	switch Field(v) {
	case FieldPickup, FieldDropoff:
		return Field(v), nil
	default:
		return "", ErrInvalidField
	}
}

type Session struct {
	ID      string
	Quote   *quote.Cache
	pickup  *search.Suggester
	dropoff *search.Suggester
	now     func() time.Time

	// mu also serializes re-keying the quote so Route and Quote.Key agree.
	mu          sync.Mutex
	pickupText  string
	dropoffText string
	lastSeen    time.Time
}

// SetRoute selects both endpoints and returns the resulting quote snapshot.
// Text longer than types.MaxPlaceQueryLen is rejected and leaves the route as is.
func (s *Session) SetRoute(pickup, dropoff string) (quote.Snapshot, error) {
	if err := types.NewRouteKey(pickup, dropoff).Validate(); err != nil {
		return quote.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pickupText, s.dropoffText = pickup, dropoff
	return s.Quote.GetQuote(pickup, dropoff), nil
}

func (s *Session) Route() (pickup, dropoff string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pickupText, s.dropoffText
}

func (s *Session) Suggester(f Field) (*search.Suggester, error) {
	switch f {
	case FieldPickup:
		return s.pickup, nil
	case FieldDropoff:
		return s.dropoff, nil
	default:
		return nil, ErrInvalidField
	}
}

func (s *Session) SetQuery(f Field, text string) (search.State, error) {
	sg, err := s.Suggester(f)
	if err != nil {
		return search.State{}, err
	}
	if err := types.ValidatePlaceText(text); err != nil {
		return search.State{}, fmt.Errorf("%s: %w", f, err)
	}
	return sg.OnQueryChange(text), nil
}

// SelectSuggestion fills the field with the chosen place and re-keys the quote.
func (s *Session) SelectSuggestion(f Field, id string) (types.Suggestion, quote.Snapshot, error) {
	sg, err := s.Suggester(f)
	if err != nil {
		return types.Suggestion{}, quote.Snapshot{}, err
	}
	chosen, err := sg.Select(id)
	if err != nil {
		return types.Suggestion{}, quote.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f == FieldPickup {
		s.pickupText = chosen.Title
	} else {
		s.dropoffText = chosen.Title
	}
	return chosen, s.Quote.GetQuote(s.pickupText, s.dropoffText), nil
}

func (s *Session) SelectAlternative(location string) (quote.Selection, error) {
	return s.Quote.SelectAlternative(location)
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Touch marks the session as in use so the janitor keeps it.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Session) close() {
	s.Quote.Close()
	s.pickup.Close()
	s.dropoff.Close()
}
