// Package toggle persists user-toggled boolean fields with optimistic UI
// semantics, and writes multi-row changesets in store-sized batches.
package toggle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrPending is returned when a toggle arrives while the same field already
// has a write in flight. The toggle is ignored and nothing is persisted.
var ErrPending = errors.New("field update already in flight")

type State int

const (
	Idle State = iota
	Pending
	Error
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Error:
		return "error"
	}
	return "idle"
}

type Key struct {
	RecordID string
	Field    string
}

func (k Key) String() string {
	return k.RecordID + "/" + k.Field
}

type NotificationKind string

const (
	Success NotificationKind = "success"
	Failure NotificationKind = "failure"
)

// Notification is the transient, auto-dismissing message shown to staff.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	RecordID string           `json:"record_id"`
	Field    string           `json:"field"`
	Value    bool             `json:"value"`
	Message  string           `json:"message"`
	At       time.Time        `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Persist writes next to the store.
type Persist func(ctx context.Context, next bool) error

type Snapshot struct {
	Value bool   `json:"value"`
	State string `json:"state"`
	Err   string `json:"error,omitempty"`
}

// Field is the state machine of one toggleable field:
//
//	Idle|Error --toggle--> Pending --ok--> Idle (value flipped)
//	                               --err-> Error (value unchanged)
//
// The displayed value only changes once the store confirms the write.
type Field struct {
	key      Key
	notifier Notifier

	mu      sync.Mutex
	value   bool
	state   State
	lastErr error
}

func NewField(key Key, value bool, n Notifier) *Field {
	return &Field{key: key, value: value, notifier: n}
}

func (f *Field) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Field) snapshotLocked() Snapshot {
	s := Snapshot{Value: f.value, State: f.state.String()}
	if f.state == Error && f.lastErr != nil {
		s.Err = f.lastErr.Error()
	}
	return s
}

func (f *Field) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Field) Value() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Toggle flips the field through persist. A toggle while Pending returns
// ErrPending without calling persist. On success refetch runs after the
// success notification; on failure there is no retry.
func (f *Field) Toggle(ctx context.Context, persist Persist, refetch func(context.Context)) (Snapshot, error) {
	next, err := f.begin()
	if err != nil {
		return f.Snapshot(), err
	}
	return f.settle(ctx, next, persist(ctx, next), refetch)
}

func (f *Field) begin() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Pending {
		return f.value, ErrPending
	}
	f.state = Pending
	f.lastErr = nil
	return !f.value, nil
}

func (f *Field) settle(ctx context.Context, next bool, perr error, refetch func(context.Context)) (Snapshot, error) {
	f.mu.Lock()
	if perr != nil {
		f.state = Error
		f.lastErr = perr
	} else {
		f.state = Idle
		f.value = next
	}
	snap := f.snapshotLocked()
	f.mu.Unlock()

	if perr != nil {
		f.notify(ctx, Failure, snap.Value, fmt.Sprintf("Could not update %s", f.key.Field))
		return snap, fmt.Errorf("update %s: %w", f.key, perr)
	}

	f.notify(ctx, Success, snap.Value, fmt.Sprintf("%s updated", f.key.Field))
	if refetch != nil {
		refetch(ctx)
	}
	return snap, nil
}

func (f *Field) notify(ctx context.Context, kind NotificationKind, value bool, msg string) {
	if f.notifier == nil {
		return
	}
	f.notifier.Notify(ctx, Notification{
		Kind:     kind,
		RecordID: f.key.RecordID,
		Field:    f.key.Field,
		Value:    value,
		Message:  msg,
		At:       time.Now(),
	})
}

// Registry holds the fields that currently have a write in flight so that a
// second toggle on the same field is rejected while toggles on other fields
// proceed independently.
type Registry struct {
	notifier Notifier

	mu     sync.Mutex
	fields map[Key]*Field
}

func NewRegistry(n Notifier) *Registry {
	return &Registry{notifier: n, fields: make(map[Key]*Field)}
}

// Toggle flips the field identified by key, starting from current (the value
// the user saw).
func (r *Registry) Toggle(ctx context.Context, key Key, current bool, persist Persist, refetch func(context.Context)) (Snapshot, error) {
	r.mu.Lock()
	f, ok := r.fields[key]
	if !ok {
		f = NewField(key, current, r.notifier)
		r.fields[key] = f
	}
	next, err := f.begin()
	r.mu.Unlock()
	if err != nil {
		return f.Snapshot(), err
	}

	snap, err := f.settle(ctx, next, persist(ctx, next), refetch)

	r.mu.Lock()
	if r.fields[key] == f && f.State() != Pending {
		delete(r.fields, key)
	}
	r.mu.Unlock()
	return snap, err
}

func (r *Registry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fields)
}
