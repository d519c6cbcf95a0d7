package shell

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is canceled on SIGINT or SIGTERM
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
