package hap

import (
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
)

// limiter slows down brute force of the setup code and of pair-verify
// signatures. Every key (setup or controller ID) has its own exponential
// delay, the setup key also has a hard limit of MaxAuthAttempts.
type limiter struct {
	entries map[string]*attempts
	now     func() time.Time
	mu      sync.Mutex
}

type attempts struct {
	failures int
	next     time.Time
	backoff  *backoff.ExponentialBackOff
}

const setupKey = ""

func newLimiter() *limiter {
	return &limiter{
		entries: map[string]*attempts{},
		now:     time.Now,
	}
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0 // never stop
	b.Reset()
	return b
}

// check returns zero when the attempt is allowed, otherwise
// ErrorBackoff with the delay in seconds or ErrorMaxTries
func (l *limiter) check(key string) (PairingError, uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.entries[key]
	if a == nil {
		return 0, 0
	}

	if key == setupKey && a.failures >= MaxAuthAttempts {
		return ErrorMaxTries, 0
	}

	if wait := a.next.Sub(l.now()); wait > 0 {
		seconds := math.Ceil(wait.Seconds())
		return ErrorBackoff, uint16(seconds)
	}

	return 0, 0
}

func (l *limiter) fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.entries[key]
	if a == nil {
		a = &attempts{backoff: newBackOff()}
		l.entries[key] = a
	}

	a.failures++
	a.next = l.now().Add(a.backoff.NextBackOff())
}

func (l *limiter) reset(key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

func (l *limiter) failures(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a := l.entries[key]; a != nil {
		return a.failures
	}
	return 0
}
