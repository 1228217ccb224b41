package timer

import (
	"sync"
	"time"
)

// Locking fronts an embedder Adapter that is shared with a UI thread. It
// holds its lock only for the duration of one call, per spec.md §5 and §9
// ("keep lock scopes to a single method call; never hold a lock across a
// guest step").
type Locking struct {
	mu    sync.RWMutex
	inner Adapter
}

// NewLocking wraps inner with a read-write lock.
func NewLocking(inner Adapter) *Locking {
	return &Locking{inner: inner}
}

var _ Adapter = (*Locking)(nil)

func (l *Locking) TimerState() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inner.TimerState()
}

func (l *Locking) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Start()
}

func (l *Locking) Split() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Split()
}

func (l *Locking) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.Reset()
}

func (l *Locking) SetGameTime(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.SetGameTime(d)
}

func (l *Locking) PauseGameTime() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.PauseGameTime()
}

func (l *Locking) ResumeGameTime() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inner.ResumeGameTime()
}

func (l *Locking) IsGameTimePaused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inner.IsGameTimePaused()
}
