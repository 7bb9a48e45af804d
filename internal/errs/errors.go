// Package errs defines the transaction rejection taxonomy for the arena
// chain. Every handler failure is one of these sentinels (possibly wrapped
// with detail), so callers can match on codespace/code rather than log text.
package errs

import errorsmod "cosmossdk.io/errors"

const Codespace = "arena"

var (
	ErrInvalidRequest    = errorsmod.Register(Codespace, 1, "invalid request")
	ErrAlreadyExists     = errorsmod.Register(Codespace, 2, "record already exists")
	ErrInvalidState      = errorsmod.Register(Codespace, 3, "operation not valid for current status")
	ErrUnauthorized      = errorsmod.Register(Codespace, 4, "unauthorized")
	ErrSelfJoin          = errorsmod.Register(Codespace, 5, "cannot join own game")
	ErrMatchFull         = errorsmod.Register(Codespace, 6, "match already has two participants")
	ErrWrongAmount       = errorsmod.Register(Codespace, 7, "deposit does not equal the match wager")
	ErrInvalidAmount     = errorsmod.Register(Codespace, 8, "invalid wager amount")
	ErrAlreadySettled    = errorsmod.Register(Codespace, 9, "match already settled")
	ErrInvalidWinner     = errorsmod.Register(Codespace, 10, "winner does not match the finished game")
	ErrInsufficientFunds = errorsmod.Register(Codespace, 11, "insufficient funds")
	ErrBindingLocked     = errorsmod.Register(Codespace, 12, "session binding locked")
)
