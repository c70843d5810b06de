/*package variant keeps track of which colour scheme is active.

Exactly one of N variants is active once a Selector has been initialized.
The Selector is the only place that state lives: views read it through
State and hear about changes through Subscribe, and never write it back.
*/
package variant

import (
	"errors"
	"fmt"
)

// ErrSoleVariant is returned when the active variant is deactivated
// without another being selected first.
var ErrSoleVariant = errors.New("cannot deactivate the only active variant")

// State is a snapshot of a Selector. Active is -1 before initialization.
type State struct {
	Active, N int
}

// Selector holds radio-button state over N variants.
type Selector struct {
	n, active int
	subs      []func(State)
}

// NewSelector creates an uninitialized Selector over n variants.
func NewSelector(n int) (*Selector, error) {
	if n < 1 {
		return nil, fmt.Errorf("A selector needs at least one variant, not %d.", n)
	}
	return &Selector{n: n, active: -1}, nil
}

func (s *Selector) State() State { return State{s.active, s.n} }
func (s *Selector) Active() int  { return s.active }
func (s *Selector) Len() int     { return s.n }

func (s *Selector) check(k int) error {
	if k < 0 || k >= s.n {
		return fmt.Errorf("Variant %d is out of range [0, %d).", k, s.n)
	}
	return nil
}

// Select makes k the active variant. Subscribers are notified only if the
// active variant changed.
func (s *Selector) Select(k int) (State, error) {
	if err := s.check(k); err != nil {
		return s.State(), err
	}
	if k == s.active {
		return s.State(), nil
	}
	s.active = k
	st := s.State()
	s.notify(st)
	return st, nil
}

// Deactivate turns k off. Turning off the active variant is refused with
// ErrSoleVariant, and turning off an inactive one does nothing.
func (s *Selector) Deactivate(k int) (State, error) {
	if err := s.check(k); err != nil {
		return s.State(), err
	}
	if k == s.active {
		return s.State(), ErrSoleVariant
	}
	return s.State(), nil
}

// Reset returns the Selector to its uninitialized state.
func (s *Selector) Reset() State {
	if s.active == -1 {
		return s.State()
	}
	s.active = -1
	st := s.State()
	s.notify(st)
	return st
}

// Subscribe registers f to be called after every change. f must not call
// back into the Selector.
func (s *Selector) Subscribe(f func(State)) {
	s.subs = append(s.subs, f)
}

func (s *Selector) notify(st State) {
	for _, f := range s.subs {
		f(st)
	}
}
