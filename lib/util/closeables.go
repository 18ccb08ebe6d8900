package util

import (
	"io"
	"sync"
)

var (
	closeOnExit []io.Closer
	closeMutex  sync.Mutex
)

// RegisterCloser adds an io.Closer to the shutdown list. Thread-safe.
func RegisterCloser(c io.Closer) {
	closeMutex.Lock()
	defer closeMutex.Unlock()
	closeOnExit = append(closeOnExit, c)
	log.WithField("count", len(closeOnExit)).Debug("registered_closer")
}

// CloseAll closes every registered closer in reverse registration order, so
// consumers shut down before the listeners they hang off of, then clears the
// list. Thread-safe.
func CloseAll() {
	closeMutex.Lock()
	defer closeMutex.Unlock()

	log.WithField("count", len(closeOnExit)).Debug("closing_registered_closers")

	for idx := len(closeOnExit) - 1; idx >= 0; idx-- {
		if err := closeOnExit[idx].Close(); err != nil {
			log.WithError(err).Warn("error closing resource")
		}
	}
	closeOnExit = nil
}
