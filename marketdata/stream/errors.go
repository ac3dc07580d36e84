package stream

import "errors"

var (
	// ErrConnectCalledMultipleTimes is returned when Connect has been called multiple times on a single client
	ErrConnectCalledMultipleTimes = errors.New("tried to call Connect multiple times")
	// ErrNoSymbols is returned when a client is constructed without any symbols
	// to track: the server would accept the socket but never push anything.
	ErrNoSymbols = errors.New("no symbols to track")
	// ErrBadMessage is returned when a pushed frame can not be decoded as a
	// ticker update object.
	ErrBadMessage = errors.New("malformed ticker message")
)
