package client

import (
	"context"
	"fmt"
	"time"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"

	"onchainarena/internal/codec"
	"onchainarena/internal/snapshot"
)

const rpcHealthTimeout = 3 * time.Second

// RPCProvider talks to a live CometBFT node over HTTP RPC. Moves go through
// the mempool (sync broadcast: accepted structurally, executed at the next
// block), reads hit ABCIQuery against committed state.
type RPCProvider struct {
	rpc    *rpchttp.HTTP
	signer *Signer
	gameID uint64
}

var _ Provider = (*RPCProvider)(nil)

func NewRPCProvider(remote string, signer *Signer, gameID uint64) (*RPCProvider, error) {
	c, err := rpchttp.New(remote)
	if err != nil {
		return nil, fmt.Errorf("rpc client: %w", err)
	}
	return &RPCProvider{rpc: c, signer: signer, gameID: gameID}, nil
}

func (p *RPCProvider) Connected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), rpcHealthTimeout)
	defer cancel()
	_, err := p.rpc.Health(ctx)
	return err == nil
}

func (p *RPCProvider) State(ctx context.Context) (snapshot.GameSnapshot, error) {
	res, err := p.rpc.ABCIQuery(ctx, fmt.Sprintf("/game/%d/snapshot", p.gameID), nil)
	if err != nil {
		return snapshot.GameSnapshot{}, fmt.Errorf("abci query: %w", err)
	}
	if res.Response.Code != 0 {
		return snapshot.GameSnapshot{}, fmt.Errorf("abci query: %s", res.Response.Log)
	}
	return snapshot.Decode(res.Response.Value)
}

func (p *RPCProvider) SendInput(ctx context.Context, in Input) error {
	tx, err := p.signer.SignTx("engine/move", codec.EngineMoveTx{
		GameID: p.gameID,
		Player: p.signer.Account(),
		DX:     in.DX,
		DY:     in.DY,
	})
	if err != nil {
		return err
	}
	res, err := p.rpc.BroadcastTxSync(ctx, tx)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	if res.Code != 0 {
		return fmt.Errorf("tx rejected by mempool: %s", res.Log)
	}
	return nil
}
