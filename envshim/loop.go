package envshim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
)

// TimerID is the numeric handle the host scheduler hands out for delayed callbacks
type TimerID int

// TimerRef is anything that can be coerced to a TimerID: a bare TimerID or a *TimerHandle
type TimerRef interface {
	TimerID() TimerID
}

func (id TimerID) TimerID() TimerID {
	return id
}

type FrameID int

type timer struct {
	id    TimerID
	fn    func()
	delay time.Duration
	due   time.Time
	refed bool
}

type frame struct {
	id FrameID
	fn func(time.Time)
}

// Immediate is a callback queued to run on the next pass of the loop
type Immediate struct {
	fn      func()
	cleared bool
}

// Loop is a single-threaded cooperative event loop.
// Callbacks only run on the goroutine that pumps the loop (RunOnce, RunUntil, RunUntilIdle);
// Post and the release func of Track are the only methods that may be called from other goroutines.
type Loop struct {
	nowFunc func() time.Time

	mu         sync.Mutex
	nextID     int
	timers     map[TimerID]*timer
	immediates []*Immediate
	frames     []*frame
	posted     []func()
	inflight   int

	wake  chan struct{}
	runMu sync.Mutex
}

func NewLoop() *Loop {
	return &Loop{
		nowFunc: time.Now,
		timers:  make(map[TimerID]*timer),
		wake:    make(chan struct{}, 1),
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) nextIDLocked() int {
	l.nextID++
	return l.nextID
}

func (l *Loop) SetTimeout(fn func(), delay time.Duration) TimerID {
	l.mu.Lock()
	defer l.mu.Unlock()

	if delay < 0 {
		delay = 0
	}

	id := TimerID(l.nextIDLocked())
	l.timers[id] = &timer{
		id:    id,
		fn:    fn,
		delay: delay,
		due:   l.nowFunc().Add(delay),
		refed: true,
	}
	l.signal()

	return id
}

func (l *Loop) ClearTimeout(ref TimerRef) {
	if ref == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.timers, ref.TimerID())
}

func (l *Loop) setTimerRef(id TimerID, refed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.timers[id]
	if !ok {
		return
	}
	t.refed = refed
}

func (l *Loop) timerHasRef(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.timers[id]
	return ok && t.refed
}

// refreshTimer restarts the timer's delay from now. Fired timers are re-armed, like node's timeout.refresh()
func (l *Loop) refreshTimer(id TimerID, fn func(), delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.timers[id]
	if !ok {
		if fn == nil {
			return
		}
		t = &timer{id: id, fn: fn, delay: delay, refed: true}
		l.timers[id] = t
	}
	t.due = l.nowFunc().Add(t.delay)
	l.signal()
}

func (l *Loop) SetImmediate(fn func()) *Immediate {
	l.mu.Lock()
	defer l.mu.Unlock()

	immediate := &Immediate{fn: fn}
	l.immediates = append(l.immediates, immediate)
	l.signal()

	return immediate
}

func (l *Loop) ClearImmediate(immediate *Immediate) {
	if immediate == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	immediate.cleared = true
}

func (l *Loop) RequestAnimationFrame(fn func(time.Time)) FrameID {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := FrameID(l.nextIDLocked())
	l.frames = append(l.frames, &frame{id, fn})
	l.signal()

	return id
}

func (l *Loop) CancelAnimationFrame(id FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, f := range l.frames {
		if f.id == id {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return
		}
	}
}

func (l *Loop) PendingAnimationFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.frames)
}

// Post queues fn to run on the loop. Safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()

	l.signal()
}

// Track marks a unit of background work as in flight. The loop counts as busy until release is called.
func (l *Loop) Track() (release func()) {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.inflight--
			l.mu.Unlock()
			l.signal()
		})
	}
}

// RunOnce runs everything currently runnable: posted completions, immediates, due timers
// and animation frames, in that order. It returns the number of callbacks run.
func (l *Loop) RunOnce() int {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	return l.runOnce()
}

func (l *Loop) runOnce() int {
	count := 0

	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	for _, fn := range posted {
		fn()
		count++
	}

	l.mu.Lock()
	immediates := l.immediates
	l.immediates = nil
	l.mu.Unlock()

	for _, immediate := range immediates {
		if immediate.cleared {
			continue
		}
		immediate.cleared = true
		immediate.fn()
		count++
	}

	now := l.nowFunc()
	l.mu.Lock()
	var due []*timer
	for _, t := range l.timers {
		if !t.due.After(now) {
			due = append(due, t)
		}
	}
	l.mu.Unlock()

	sort.Slice(due, func(a, b int) bool {
		if due[a].due.Equal(due[b].due) {
			return due[a].id < due[b].id
		}
		return due[a].due.Before(due[b].due)
	})

	for _, t := range due {
		l.mu.Lock()
		current, ok := l.timers[t.id]
		stillDue := ok && current == t && !t.due.After(now)
		if stillDue {
			delete(l.timers, t.id)
		}
		l.mu.Unlock()

		if !stillDue {
			continue
		}
		t.fn()
		count++
	}

	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.mu.Unlock()

	for _, f := range frames {
		f.fn(now)
		count++
	}

	return count
}

func (l *Loop) runnableLocked(now time.Time) bool {
	if len(l.posted) > 0 || len(l.immediates) > 0 || len(l.frames) > 0 {
		return true
	}
	for _, t := range l.timers {
		if !t.due.After(now) {
			return true
		}
	}
	return false
}

// busyLocked reports whether there is work that keeps the loop alive. Unref'd timers do not.
func (l *Loop) busyLocked() bool {
	if len(l.posted) > 0 || len(l.immediates) > 0 || len(l.frames) > 0 || l.inflight > 0 {
		return true
	}
	for _, t := range l.timers {
		if t.refed {
			return true
		}
	}
	return false
}

func (l *Loop) nextTimerDueLocked() (time.Time, bool) {
	var next time.Time
	found := false
	for _, t := range l.timers {
		if !found || t.due.Before(next) {
			next = t.due
			found = true
		}
	}
	return next, found
}

func (l *Loop) wait(ctx context.Context) errorsx.Error {
	l.mu.Lock()
	runnable := l.runnableLocked(l.nowFunc())
	nextDue, hasTimer := l.nextTimerDueLocked()
	l.mu.Unlock()

	if runnable {
		return nil
	}

	var timerChan <-chan time.Time
	if hasTimer {
		t := time.NewTimer(time.Until(nextDue))
		defer t.Stop()
		timerChan = t.C
	}

	select {
	case <-ctx.Done():
		return errorsx.Wrap(ctx.Err())
	case <-l.wake:
	case <-timerChan:
	}

	return nil
}

// RunUntil pumps the loop until cond returns true, or the context is done
func (l *Loop) RunUntil(ctx context.Context, cond func() bool) errorsx.Error {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	for {
		if cond() {
			return nil
		}

		if l.runOnce() > 0 {
			continue
		}

		if cond() {
			return nil
		}

		err := l.wait(ctx)
		if err != nil {
			return err
		}
	}
}

// RunUntilIdle pumps the loop until nothing keeps it busy
func (l *Loop) RunUntilIdle(ctx context.Context) errorsx.Error {
	return l.RunUntil(ctx, l.Idle)
}

// Idle reports whether no posted work, immediates, frames, referenced timers or tracked background work remain
func (l *Loop) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.busyLocked()
}
