//go:build !linux && !darwin

package engine

import "fmt"

// The readiness-based reactor needs a direct epoll or
// kqueue binding; there is no portable readiness primitive in the
// standard library that preserves the single-thread, no-goroutine-
// per-connection contract. Other platforms are out of scope.
func newPlatformPoller() (Poller, error) {
	return nil, fmt.Errorf("engine: no reactor poller implementation for this platform")
}
