package app

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer(t *testing.T) {
	buf := newBuffer(2)

	_, err := buf.Write([]byte("hello"))
	require.Nil(t, err)
	_, err = buf.Write([]byte("world"))
	require.Nil(t, err)
	require.Equal(t, "helloworld", string(buf.Bytes()))

	// third chunk overwrites the first one
	big := bytes.Repeat([]byte{'a'}, chunkSize)
	_, _ = buf.Write(big)
	_, _ = buf.Write([]byte("b"))
	require.Equal(t, append(big, 'b'), buf.Bytes())

	buf.Reset()
	require.Len(t, buf.Bytes(), 0)
}

func TestCircularBufferConcurrent(t *testing.T) {
	buf := newBuffer(4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = buf.Write([]byte("0123456789"))
			}
		}()
	}
	wg.Wait()

	require.Len(t, buf.Bytes(), 8000)
}

func TestNewLogger(t *testing.T) {
	logger := newLogger(map[string]string{"format": "json", "level": "debug"})
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	// wrong level
	logger = newLogger(map[string]string{"level": "verbose"})
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestGetLogger(t *testing.T) {
	prevModules, prevLogger := modules, Logger
	t.Cleanup(func() {
		modules, Logger = prevModules, prevLogger
	})

	Logger = zerolog.New(nil).Level(zerolog.InfoLevel)
	modules = map[string]string{
		"homekit": "trace",
		"mdns":    "warn",
	}

	require.Equal(t, zerolog.TraceLevel, GetLogger("homekit").GetLevel())
	require.Equal(t, zerolog.WarnLevel, GetLogger("mdns").GetLevel())
	require.Equal(t, zerolog.InfoLevel, GetLogger("app").GetLevel())
}
