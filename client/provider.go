// Package client is the consumer-side surface of the arena chain: a small
// capability interface over match state plus two implementations, an
// in-process simulator for tests and local development and an RPC-backed
// provider for a live node. Consumers hold the interface and never know
// which one they got.
package client

import (
	"context"

	"onchainarena/internal/snapshot"
)

// Input is one frame's worth of player intent, already clamped to the wire
// range by construction.
type Input struct {
	DX int8
	DY int8
}

// Provider exposes exactly the two capabilities a game client needs: read
// the current match state and submit a move. Everything else (keys, nonces,
// transports) stays behind the implementation.
type Provider interface {
	// State returns the current snapshot of the tracked game.
	State(ctx context.Context) (snapshot.GameSnapshot, error)

	// SendInput signs and submits one move for the tracked game.
	SendInput(ctx context.Context, in Input) error

	// Connected reports whether the provider can currently reach its
	// backing chain. The simulator is always connected.
	Connected() bool
}
