package sysignals

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNotifyErrorOnQuit(t *testing.T) {
	errs := make(chan error, 1)
	go NotifyErrorOnQuit(errs, syscall.SIGWINCH)

	// signal.Notify is called inside the goroutine, SIGWINCH is ignored until it registers
	var received error
	require.Eventually(t, func() bool {
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGWINCH)
		select {
		case received = <-errs:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
	require.ErrorIs(t, received, ErrSigQuit)
}
