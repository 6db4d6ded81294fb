// Package gate decides whether the admin dashboard may be shown for a
// session snapshot, and keeps deciding as the session changes.
package gate

import (
	"errors"

	"github.com/dmitrijs2005/folio/internal/client/models"
	"github.com/dmitrijs2005/folio/internal/client/session"
)

const (
	// DestinationUnauthorized is where a Redirect sends the user.
	DestinationUnauthorized = "/not-authorized"
	// NotAuthorizedMessage is shown at DestinationUnauthorized.
	NotAuthorizedMessage = "You are not authorized to access this page."
)

var (
	ErrNotAuthorized  = errors.New("not authorized")
	ErrSessionLoading = errors.New("session is still loading")
)

type Decision int

const (
	// Wait renders nothing and navigates nowhere.
	Wait Decision = iota
	Redirect
	Admit
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Admit:
		return "admit"
	default:
		return "unknown"
	}
}

func Evaluate(s session.Snapshot) Decision {
	if s.Loading {
		return Wait
	}
	if s.Identity == nil || s.Role != models.RoleAdmin {
		return Redirect
	}
	return Admit
}

// Source is satisfied by *session.Store.
type Source interface {
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

type Gate struct {
	store Source
}

func New(store Source) *Gate {
	return &Gate{store: store}
}

// Watch reports the current decision and then a fresh one on every session
// change, until the returned func is called.
func (g *Gate) Watch(onDecision func(Decision)) (unsubscribe func()) {
	unsub := g.store.Subscribe(func(s session.Snapshot) {
		onDecision(Evaluate(s))
	})
	onDecision(Evaluate(g.store.Snapshot()))
	return unsub
}

// Guard runs fn only when the current session is admitted.
func (g *Gate) Guard(fn func() error) error {
	switch Evaluate(g.store.Snapshot()) {
	case Wait:
		return ErrSessionLoading
	case Redirect:
		return ErrNotAuthorized
	}
	return fn()
}
