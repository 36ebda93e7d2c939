//go:build !linux && !darwin

package engine

import (
	"errors"
	"net"
)

var errUnsupportedPlatform = errors.New("engine: raw fd reactor not supported on this platform")

func listenerFd(*net.TCPListener) (int, error) { return 0, errUnsupportedPlatform }
func connFd(*net.TCPConn) (int, error)         { return 0, errUnsupportedPlatform }
func readInto(int, *[]byte) (int, error)       { return 0, errUnsupportedPlatform }
func writeFrom(int, []byte) (int, error)       { return 0, errUnsupportedPlatform }
func closeFd(int) error                        { return errUnsupportedPlatform }
func isWouldBlock(error) bool                  { return false }
func isTemporary(error) bool                   { return false }
