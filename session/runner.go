package session

import (
	"context"
	"errors"

	"github.com/RyanBlaney/sonido-coach/coach"
	"github.com/RyanBlaney/sonido-coach/prosody"
	"github.com/RyanBlaney/sonido-coach/tracker"
)

// ErrStopped is returned by Runner commands after Run has returned.
var ErrStopped = errors.New("session runner stopped")

// EventKind tells which field of an Event is set.
type EventKind int

const (
	EventSnapshot EventKind = iota
	EventHint
	EventPhrase
)

func (k EventKind) String() string {
	switch k {
	case EventSnapshot:
		return "snapshot"
	case EventHint:
		return "hint"
	case EventPhrase:
		return "phrase"
	default:
		return "unknown"
	}
}

// Event is published by a Runner.
type Event struct {
	Kind     EventKind
	Snapshot tracker.Snapshot
	Hint     coach.Hint
	Phrase   PhraseResult
}

type opKind int

const (
	opSamples opKind = iota
	opStartStep
	opEndPhrase
	opTarget
)

type command struct {
	op        opKind
	samples   []float64
	reference []prosody.Frame
	target    Target
	reply     chan reply
}

type reply struct {
	phrase PhraseResult
	err    error
}

// Runner owns a Session on a single goroutine so producers and consumers on
// other goroutines never touch it directly.
type Runner struct {
	s      *Session
	cmds   chan command
	events chan Event
	done   chan struct{}
}

// NewRunner wraps s. buffer sizes the command and event queues.
func NewRunner(s *Session, buffer int) *Runner {
	if buffer < 0 {
		buffer = 0
	}
	return &Runner{
		s:      s,
		cmds:   make(chan command, buffer),
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Events returns the event stream. It is closed when Run returns.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Run processes commands until ctx is done and returns ctx.Err(). It must be
// called exactly once. Event delivery blocks, so the consumer has to keep
// draining Events.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.events)
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-r.cmds:
			if err := r.handle(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) handle(ctx context.Context, cmd command) error {
	switch cmd.op {
	case opSamples:
		up, ok := r.s.PushSamples(cmd.samples)
		if !ok {
			return nil
		}
		if err := r.publish(ctx, Event{Kind: EventSnapshot, Snapshot: up.Snapshot}); err != nil {
			return err
		}
		if up.Hint != nil {
			return r.publish(ctx, Event{Kind: EventHint, Hint: *up.Hint})
		}
	case opStartStep:
		r.s.StartStep()
	case opTarget:
		cmd.reply <- reply{err: r.s.SetTarget(cmd.target)}
	case opEndPhrase:
		res := r.s.EndPhrase(cmd.reference)
		cmd.reply <- reply{phrase: res}
		return r.publish(ctx, Event{Kind: EventPhrase, Phrase: res})
	}
	return nil
}

func (r *Runner) publish(ctx context.Context, ev Event) error {
	select {
	case r.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) send(ctx context.Context, cmd command) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.cmds <- cmd:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) await(ctx context.Context, ch chan reply) (reply, error) {
	select {
	case rep := <-ch:
		return rep, nil
	case <-r.done:
		return reply{}, ErrStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

// PushSamples queues a copy of chunk for analysis.
func (r *Runner) PushSamples(ctx context.Context, chunk []float64) error {
	samples := make([]float64, len(chunk))
	copy(samples, chunk)
	return r.send(ctx, command{op: opSamples, samples: samples})
}

// StartStep queues the start of a new practice step.
func (r *Runner) StartStep(ctx context.Context) error {
	return r.send(ctx, command{op: opStartStep})
}

// SetTarget changes the pitch target once all queued samples are processed.
func (r *Runner) SetTarget(ctx context.Context, t Target) error {
	ch := make(chan reply, 1)
	if err := r.send(ctx, command{op: opTarget, target: t, reply: ch}); err != nil {
		return err
	}
	rep, err := r.await(ctx, ch)
	if err != nil {
		return err
	}
	return rep.err
}

// EndPhrase ends the current phrase once all queued samples are processed.
// The result is also published as an EventPhrase.
func (r *Runner) EndPhrase(ctx context.Context, reference []prosody.Frame) (PhraseResult, error) {
	ch := make(chan reply, 1)
	if err := r.send(ctx, command{op: opEndPhrase, reference: reference, reply: ch}); err != nil {
		return PhraseResult{}, err
	}
	rep, err := r.await(ctx, ch)
	return rep.phrase, err
}
