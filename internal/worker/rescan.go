package worker

import "github.com/lpapadakos/epiquery/internal/wire"

// WatchControl reads rescan notifications off the worker's still-open
// control connection and forwards one signal per notification to
// rescanCh, closing it when the connection is gone. It runs in its own
// goroutine so a blocking read here never blocks Serve's query loop;
// Serve is the only goroutine that acts on what it delivers (§9).
//
// This replaces the original's SIGUSR1 handler: rather than a signal
// setting a flag Serve polled between requests, the master sends an
// explicit VerbRescan message down the same control channel it used for
// bootstrap, which the original closed after use and this keeps open.
func WatchControl(ctrl *wire.Reader, rescanCh chan<- struct{}) {
	defer close(rescanCh)
	for {
		msg, err := ctrl.ReadMessage()
		if err != nil {
			return
		}
		if msg == wire.VerbRescan {
			rescanCh <- struct{}{}
		}
	}
}
