package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainarena/internal/codec"
	"onchainarena/internal/errs"
	"onchainarena/internal/fixpoint"
	"onchainarena/internal/state"
)

// engineCreateGame opens a match in Waiting status with preset symmetric
// starting positions. The game key is caller-chosen; reusing a key fails.
func engineCreateGame(st *state.State, env codec.TxEnvelope, msg codec.EngineCreateGameTx) (*abci.ExecTxResult, error) {
	if msg.GameID == 0 {
		return nil, errs.ErrInvalidRequest.Wrap("missing gameId")
	}
	if msg.Creator == "" {
		return nil, errs.ErrInvalidRequest.Wrap("missing creator")
	}
	if err := requireAccountAuth(st, env, msg.Creator); err != nil {
		return nil, err
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}
	if st.Games[msg.GameID] != nil {
		return nil, errs.ErrAlreadyExists.Wrapf("game %d", msg.GameID)
	}

	radius := msg.Radius
	if radius == 0 {
		radius = st.Params.DefaultRadius
	}

	p1 := fixpoint.Vec2{X: -st.Params.StartOffset, Y: 0}
	p2 := fixpoint.Vec2{X: st.Params.StartOffset, Y: 0}
	if msg.P1Start != nil {
		p1 = fixpoint.Vec2{X: msg.P1Start[0], Y: msg.P1Start[1]}
	}
	if msg.P2Start != nil {
		p2 = fixpoint.Vec2{X: msg.P2Start[0], Y: msg.P2Start[1]}
	}
	if p1.DistSqExceeds(radius) || p2.DistSqExceeds(radius) {
		return nil, errs.ErrInvalidRequest.Wrap("starting position outside the boundary")
	}

	g := &state.Game{
		ID:         msg.GameID,
		PlayerOne:  msg.Creator,
		SessionOne: msg.SessionKey,
		P1Coords:   p1,
		P2Coords:   p2,
		MapRadius:  radius,
		Status:     state.GameWaiting,
		FrameCount: 0,
	}
	st.Games[msg.GameID] = g

	return okEvent("GameCreated", map[string]string{
		"gameId":    fmt.Sprintf("%d", msg.GameID),
		"playerOne": msg.Creator,
		"radius":    fmt.Sprintf("%d", radius),
	}), nil
}

// engineJoinGame fills slot two and activates the match.
func engineJoinGame(st *state.State, env codec.TxEnvelope, msg codec.EngineJoinGameTx) (*abci.ExecTxResult, error) {
	if msg.Player == "" {
		return nil, errs.ErrInvalidRequest.Wrap("missing player")
	}
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return nil, err
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errs.ErrInvalidRequest.Wrapf("game %d not found", msg.GameID)
	}
	if g.Status != state.GameWaiting || g.PlayerTwo != "" {
		return nil, errs.ErrInvalidState.Wrapf("game %d is not open for joining", msg.GameID)
	}
	if msg.Player == g.PlayerOne {
		return nil, errs.ErrSelfJoin.Wrapf("player %q created game %d", msg.Player, msg.GameID)
	}

	g.PlayerTwo = msg.Player
	g.SessionTwo = msg.SessionKey
	g.Status = state.GameActive

	return okEvent("PlayerJoined", map[string]string{
		"gameId":    fmt.Sprintf("%d", msg.GameID),
		"playerTwo": msg.Player,
	}), nil
}

// moverSlot resolves which slot an acting identity controls: the bound
// session delegate or the slot's principal, nothing else. Returns 0 when the
// identity controls neither slot.
func moverSlot(g *state.Game, signer string) int {
	if signer == "" {
		return 0
	}
	if (g.SessionOne != "" && signer == g.SessionOne) || signer == g.PlayerOne {
		return 1
	}
	if (g.SessionTwo != "" && signer == g.SessionTwo) || (g.PlayerTwo != "" && signer == g.PlayerTwo) {
		return 2
	}
	return 0
}

// engineMove applies one bounded displacement to the acting player's slot,
// then runs the boundary test on the moved position only. The first move
// that pushes a player past the radius freezes the game with the other
// player as winner.
func engineMove(st *state.State, env codec.TxEnvelope, msg codec.EngineMoveTx) (*abci.ExecTxResult, error) {
	if msg.Player == "" {
		return nil, errs.ErrInvalidRequest.Wrap("missing player")
	}
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return nil, err
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errs.ErrInvalidRequest.Wrapf("game %d not found", msg.GameID)
	}
	if g.Status != state.GameActive {
		return nil, errs.ErrInvalidState.Wrapf("game %d is not active", msg.GameID)
	}

	maxIn := st.Params.MaxMoveInput
	if int64(msg.DX) > maxIn || int64(msg.DX) < -maxIn || int64(msg.DY) > maxIn || int64(msg.DY) < -maxIn {
		return nil, errs.ErrInvalidRequest.Wrapf("move input out of range: dx=%d dy=%d max=%d", msg.DX, msg.DY, maxIn)
	}

	slot := moverSlot(g, msg.Player)
	if slot == 0 {
		return nil, errs.ErrUnauthorized.Wrapf("identity %q controls neither slot of game %d", msg.Player, msg.GameID)
	}

	dx := int64(msg.DX) * st.Params.SpeedFactor
	dy := int64(msg.DY) * st.Params.SpeedFactor

	var moved fixpoint.Vec2
	if slot == 1 {
		g.P1Coords = g.P1Coords.Translate(dx, dy)
		moved = g.P1Coords
	} else {
		g.P2Coords = g.P2Coords.Translate(dx, dy)
		moved = g.P2Coords
	}
	g.FrameCount++

	res := okEvent("PlayerMoved", map[string]string{
		"gameId": fmt.Sprintf("%d", msg.GameID),
		"slot":   fmt.Sprintf("%d", slot),
		"player": msg.Player,
		"x":      fmt.Sprintf("%d", moved.X),
		"y":      fmt.Sprintf("%d", moved.Y),
		"frame":  fmt.Sprintf("%d", g.FrameCount),
	})

	// Ring out. Only the mover can exit on this call, so the winner is
	// always the slot that did not move; a tie is impossible.
	if moved.DistSqExceeds(g.MapRadius) {
		g.Status = state.GameFinished
		if slot == 1 {
			g.Winner = g.PlayerTwo
		} else {
			g.Winner = g.PlayerOne
		}
		finished := okEvent("GameFinished", map[string]string{
			"gameId":    fmt.Sprintf("%d", msg.GameID),
			"winner":    g.Winner,
			"loserSlot": fmt.Sprintf("%d", slot),
		})
		res.Events = append(res.Events, finished.Events...)
	}

	return res, nil
}

// engineBindSession attaches a delegate signer to the caller's slot. The
// binding window closes when the slot is bound or the match activates;
// after that every rebind attempt fails.
func engineBindSession(st *state.State, env codec.TxEnvelope, msg codec.EngineBindSessionTx) (*abci.ExecTxResult, error) {
	if msg.Player == "" || msg.SessionKey == "" {
		return nil, errs.ErrInvalidRequest.Wrap("missing player or sessionKey")
	}
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return nil, err
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}
	g := st.Games[msg.GameID]
	if g == nil {
		return nil, errs.ErrInvalidRequest.Wrapf("game %d not found", msg.GameID)
	}

	var slot int
	switch msg.Player {
	case g.PlayerOne:
		slot = 1
	case g.PlayerTwo:
		slot = 2
	default:
		return nil, errs.ErrUnauthorized.Wrapf("identity %q is not a participant of game %d", msg.Player, msg.GameID)
	}
	if g.Status != state.GameWaiting {
		return nil, errs.ErrBindingLocked.Wrapf("game %d is no longer waiting", msg.GameID)
	}
	if (slot == 1 && g.SessionOne != "") || (slot == 2 && g.SessionTwo != "") {
		return nil, errs.ErrBindingLocked.Wrapf("slot %d already has a session bound", slot)
	}

	if slot == 1 {
		g.SessionOne = msg.SessionKey
	} else {
		g.SessionTwo = msg.SessionKey
	}

	return okEvent("SessionBound", map[string]string{
		"gameId":  fmt.Sprintf("%d", msg.GameID),
		"slot":    fmt.Sprintf("%d", slot),
		"session": msg.SessionKey,
	}), nil
}
