package hap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter(t *testing.T) {
	now := time.Now()

	l := newLimiter()
	l.now = func() time.Time { return now }

	code, _ := l.check(setupKey)
	require.Equal(t, PairingError(0), code)

	l.fail(setupKey)
	code, delay := l.check(setupKey)
	require.Equal(t, ErrorBackoff, code)
	require.Equal(t, uint16(1), delay)

	now = now.Add(time.Second)
	code, _ = l.check(setupKey)
	require.Equal(t, PairingError(0), code)

	// delay grows exponentially
	l.fail(setupKey)
	_, delay = l.check(setupKey)
	require.Equal(t, uint16(2), delay)

	l.fail(setupKey)
	_, delay = l.check(setupKey)
	require.Equal(t, uint16(4), delay)

	// other keys are independent
	code, _ = l.check("controller")
	require.Equal(t, PairingError(0), code)

	l.reset(setupKey)
	code, _ = l.check(setupKey)
	require.Equal(t, PairingError(0), code)
	require.Equal(t, 0, l.failures(setupKey))
}

func TestLimiterMaxTries(t *testing.T) {
	l := newLimiter()

	for i := 0; i < MaxAuthAttempts; i++ {
		l.fail(setupKey)
		l.fail("controller")
	}

	l.now = func() time.Time { return time.Now().Add(time.Hour) }

	code, _ := l.check(setupKey)
	require.Equal(t, ErrorMaxTries, code)

	// pair-verify has only the delay
	code, _ = l.check("controller")
	require.Equal(t, PairingError(0), code)
}
