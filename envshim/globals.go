package envshim

import (
	"io"
	"time"
)

// Globals is the global scope the synthetic environment exposes to the mapping library and the network layer.
// NewGlobals returns the bare host surface; ApplyPolyfills fills in what is missing.
type Globals struct {
	Loop *Loop

	ReadableStream func(r io.Reader) *ReadableStream

	SetTimeout   func(fn func(), delay time.Duration) TimerRef
	ClearTimeout func(ref TimerRef)

	SetImmediate   func(fn func()) *Immediate
	ClearImmediate func(immediate *Immediate)

	Performance *Performance

	TextDecoder func(label string) (*TextDecoder, error)

	BlobArrayBuffer func(blob *Blob) ([]byte, error)

	timerHandlesPatched bool
}

// NewGlobals returns the host surface: numeric timers and a performance object without resource timing
func NewGlobals(loop *Loop) *Globals {
	return &Globals{
		Loop: loop,
		SetTimeout: func(fn func(), delay time.Duration) TimerRef {
			return loop.SetTimeout(fn, delay)
		},
		ClearTimeout: loop.ClearTimeout,
		Performance: &Performance{
			TimeOrigin: time.Now(),
		},
	}
}

func (g *Globals) RequestAnimationFrame(fn func(time.Time)) FrameID {
	return g.Loop.RequestAnimationFrame(fn)
}

func (g *Globals) CancelAnimationFrame(id FrameID) {
	g.Loop.CancelAnimationFrame(id)
}

// Defer queues fn for the next pass of the loop through setImmediate, or straight on the loop before the polyfill is applied
func (g *Globals) Defer(fn func()) *Immediate {
	if g.SetImmediate != nil {
		return g.SetImmediate(fn)
	}

	return g.Loop.SetImmediate(fn)
}

func (g *Globals) CancelDeferred(immediate *Immediate) {
	if g.ClearImmediate != nil {
		g.ClearImmediate(immediate)
		return
	}

	g.Loop.ClearImmediate(immediate)
}

// ResourceTiming describes one completed resource fetch
type ResourceTiming struct {
	Name          string
	InitiatorType string
	StartTime     time.Duration
	Duration      time.Duration
	TransferSize  int
	Status        int
}

type Performance struct {
	TimeOrigin         time.Time
	MarkResourceTiming func(entry ResourceTiming)
}

// Now is the time since TimeOrigin
func (p *Performance) Now() time.Duration {
	return time.Since(p.TimeOrigin)
}

// TimerHandle wraps a numeric timer so that it can be ref'd, unref'd and refreshed.
// TimerID coerces it back to the number, so ClearTimeout accepts either.
type TimerHandle struct {
	id    TimerID
	loop  *Loop
	fn    func()
	delay time.Duration
}

func (h *TimerHandle) TimerID() TimerID {
	return h.id
}

func (h *TimerHandle) Ref() *TimerHandle {
	h.loop.setTimerRef(h.id, true)
	return h
}

func (h *TimerHandle) Unref() *TimerHandle {
	h.loop.setTimerRef(h.id, false)
	return h
}

func (h *TimerHandle) Refresh() *TimerHandle {
	h.loop.refreshTimer(h.id, h.fn, h.delay)
	return h
}

func (h *TimerHandle) HasRef() bool {
	return h.loop.timerHasRef(h.id)
}
