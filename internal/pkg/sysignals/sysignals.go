// Package sysignals turns OS termination signals into errors on the application's fatal error channel
package sysignals

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/naughtygopher/errors"
)

var ErrSigQuit = errors.New("received terminal signal")

// NotifyErrorOnQuit blocks until one of SIGINT, SIGTERM, SIGQUIT (or any of otherSignals)
// is received, then pushes ErrSigQuit to errs.
func NotifyErrorOnQuit(errs chan<- error, otherSignals ...os.Signal) {
	signals := append(
		[]os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT},
		otherSignals...,
	)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)
	defer signal.Stop(interrupt)

	<-interrupt
	errs <- ErrSigQuit
}
