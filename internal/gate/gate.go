package gate

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Kind is the class of entity a confirmation guards.
type Kind string

const (
	KindImage    Kind = "image"
	KindProduct  Kind = "product"
	KindCategory Kind = "category"
)

// State of a confirmation. Done and Failed are transient: the gate
// collapses back to Idle immediately after notifying its observer.
type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateInFlight State = "in_flight"
	StateDone     State = "done"
	StateFailed   State = "failed"
)

var (
	ErrNoPending = errors.New("no pending confirmation")
	ErrInFlight  = errors.New("confirmation already committing")
)

// Key identifies a confirmation target. At most one live confirmation
// exists per key at any time.
type Key struct {
	Kind     Kind
	TargetID string
}

// CommitFunc performs the destructive operation once confirmed.
type CommitFunc func(ctx context.Context) error

// Request is a live confirmation awaiting the operator's decision.
type Request struct {
	Token    uuid.UUID
	Key      Key
	Label    string
	commit   CommitFunc
	inFlight bool
}

// Observer is notified with the terminal state of each confirmed commit.
type Observer func(key Key, state State, err error)

// Gate guards delete operations behind a confirm-then-commit protocol,
// tolerating duplicate clicks and stale confirmation UI.
type Gate struct {
	mu       sync.Mutex
	pending  map[Key]*Request
	observer Observer
}

func New(observer Observer) *Gate {
	return &Gate{pending: make(map[Key]*Request), observer: observer}
}

// Request arms a confirmation for the target. An existing pending request
// for the same key is dismissed first so the confirmation re-arms instead
// of stacking; requests for other keys are untouched. A request whose
// commit is still in flight cannot be replaced: re-arming it would let a
// second Confirm commit concurrently with the first, so the live request
// is returned instead.
func (g *Gate) Request(kind Kind, targetID, label string, commit CommitFunc) *Request {
	key := Key{Kind: kind, TargetID: targetID}

	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.pending[key]; ok && prev.inFlight {
		return prev
	}
	req := &Request{Token: uuid.New(), Key: key, Label: label, commit: commit}
	g.pending[key] = req
	return req
}

// Confirm commits the pending request for the target. The commit action
// runs exactly once: a second Confirm while the first is still in flight
// is a no-op, so a double click cannot issue a duplicate delete call.
func (g *Gate) Confirm(ctx context.Context, kind Kind, targetID string) error {
	key := Key{Kind: kind, TargetID: targetID}

	g.mu.Lock()
	req, ok := g.pending[key]
	if !ok {
		g.mu.Unlock()
		return ErrNoPending
	}
	if req.inFlight {
		g.mu.Unlock()
		return nil
	}
	req.inFlight = true
	g.mu.Unlock()

	err := req.commit(ctx)

	g.mu.Lock()
	if g.pending[key] == req {
		delete(g.pending, key)
	}
	g.mu.Unlock()

	if g.observer != nil {
		if err != nil {
			g.observer(key, StateFailed, err)
		} else {
			g.observer(key, StateDone, nil)
		}
	}
	return err
}

// Dismiss drops a pending request without committing. Only legal while
// Pending; a request already in flight cannot be dismissed.
func (g *Gate) Dismiss(kind Kind, targetID string) error {
	key := Key{Kind: kind, TargetID: targetID}

	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.pending[key]
	if !ok {
		return ErrNoPending
	}
	if req.inFlight {
		return ErrInFlight
	}
	delete(g.pending, key)
	return nil
}

// StateOf reports the observable state for a target.
func (g *Gate) StateOf(kind Kind, targetID string) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.pending[Key{Kind: kind, TargetID: targetID}]
	if !ok {
		return StateIdle
	}
	if req.inFlight {
		return StateInFlight
	}
	return StatePending
}
