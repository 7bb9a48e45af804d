package client

import (
	"context"
	"fmt"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainarena/internal/app"
	"onchainarena/internal/codec"
	"onchainarena/internal/snapshot"
)

// Simulator drives an in-process ArenaApp with one block per submitted
// transaction: same transition logic as a live node, no consensus, no
// network. Used by tests and local development.
type Simulator struct {
	signer *Signer
	gameID uint64

	mu     sync.Mutex
	app    *app.ArenaApp
	height int64
}

var _ Provider = (*Simulator)(nil)

func NewSimulator(a *app.ArenaApp, signer *Signer, gameID uint64) *Simulator {
	return &Simulator{signer: signer, gameID: gameID, app: a}
}

func (s *Simulator) Connected() bool { return true }

func (s *Simulator) State(ctx context.Context) (snapshot.GameSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.app.Query(ctx, &abci.QueryRequest{
		Path: fmt.Sprintf("/game/%d/snapshot", s.gameID),
	})
	if err != nil {
		return snapshot.GameSnapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	if res.Code != 0 {
		return snapshot.GameSnapshot{}, fmt.Errorf("query snapshot: %s", res.Log)
	}
	return snapshot.Decode(res.Value)
}

func (s *Simulator) SendInput(ctx context.Context, in Input) error {
	tx, err := s.signer.SignTx("engine/move", codec.EngineMoveTx{
		GameID: s.gameID,
		Player: s.signer.Account(),
		DX:     in.DX,
		DY:     in.DY,
	})
	if err != nil {
		return err
	}
	return s.Deliver(ctx, tx)
}

// Deliver runs one raw transaction through a single-tx block, for setup
// steps (mint, register, create/join) that SendInput does not cover.
func (s *Simulator) Deliver(ctx context.Context, tx []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.height++
	res, err := s.app.FinalizeBlock(ctx, &abci.FinalizeBlockRequest{
		Height: s.height,
		Txs:    [][]byte{tx},
	})
	if err != nil {
		return fmt.Errorf("finalize block: %w", err)
	}
	if _, err := s.app.Commit(ctx, &abci.CommitRequest{}); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if txr := res.TxResults[0]; txr.Code != 0 {
		return fmt.Errorf("tx rejected: %s", txr.Log)
	}
	return nil
}
