package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchainarena/internal/codec"
	"onchainarena/internal/errs"
	"onchainarena/internal/snapshot"
	"onchainarena/internal/state"
)

const (
	AppVersion uint64 = 1
)

// ArenaApp is the ABCI application: a deterministic transition engine over
// the match/escrow state. CometBFT serializes block execution, and the mutex
// serializes Query against FinalizeBlock, so at most one mutation is in
// flight at a time.
type ArenaApp struct {
	*abci.BaseApplication

	logger log.Logger
	home   string

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string, logger log.Logger) (*ArenaApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &ArenaApp{
		BaseApplication: abci.NewBaseApplication(),
		logger:          logger.With("module", "arena"),
		home:            home,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *ArenaApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "arena",
		Version:          "v1",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *ArenaApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	// Mempool admission is structural only; auth and state checks run at
	// delivery where they are deterministic against committed state.
	if _, err := codec.DecodeTxEnvelope(req.Tx); err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	return &abci.CheckTxResponse{Code: 0}, nil
}

// genesisAppState is the shape of the genesis app_state document.
type genesisAppState struct {
	Params *state.Params `json:"params,omitempty"`
}

func (a *ArenaApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(req.AppStateBytes) > 0 {
		var gs genesisAppState
		if err := json.Unmarshal(req.AppStateBytes, &gs); err != nil {
			return nil, errorsmod.Wrap(err, "decode genesis app state")
		}
		if gs.Params != nil {
			if err := gs.Params.Validate(); err != nil {
				return nil, errorsmod.Wrap(err, "validate genesis params")
			}
			a.st.Params = *gs.Params
		}
	}
	a.lastHash = a.st.AppHash()
	return &abci.InitChainResponse{AppHash: a.lastHash}, nil
}

func (a *ArenaApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *ArenaApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

// deliverTx applies one transaction with all-or-nothing semantics: the
// handler mutates a deep clone, and the clone replaces the live state only
// when the whole operation succeeded.
func (a *ArenaApp) deliverTx(txBytes []byte) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return errResult(errs.ErrInvalidRequest.Wrap(err.Error()))
	}

	staged, err := a.st.Clone()
	if err != nil {
		return errResult(err)
	}

	res, err := applyTx(staged, env)
	if err != nil {
		a.logger.Debug("tx rejected", "type", env.Type, "signer", env.Signer, "err", err)
		return errResult(err)
	}

	a.st = staged
	return res
}

func applyTx(st *state.State, env codec.TxEnvelope) (*abci.ExecTxResult, error) {
	switch env.Type {
	case "bank/mint":
		var msg codec.BankMintTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return bankMint(st, msg)

	case "bank/send":
		var msg codec.BankSendTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return bankSend(st, env, msg)

	case "bank/create_match":
		var msg codec.BankCreateMatchTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return bankCreateMatch(st, env, msg)

	case "bank/join_match":
		var msg codec.BankJoinMatchTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return bankJoinMatch(st, env, msg)

	case "bank/settle_match":
		var msg codec.BankSettleMatchTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return bankSettleMatch(st, env, msg)

	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return authRegisterAccount(st, env, msg)

	case "engine/create_game":
		var msg codec.EngineCreateGameTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return engineCreateGame(st, env, msg)

	case "engine/join_game":
		var msg codec.EngineJoinGameTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return engineJoinGame(st, env, msg)

	case "engine/move":
		var msg codec.EngineMoveTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return engineMove(st, env, msg)

	case "engine/bind_session":
		var msg codec.EngineBindSessionTx
		if err := unmarshalValue(env, &msg); err != nil {
			return nil, err
		}
		return engineBindSession(st, env, msg)

	default:
		return nil, errs.ErrInvalidRequest.Wrapf("unknown tx type %q", env.Type)
	}
}

func unmarshalValue(env codec.TxEnvelope, out any) error {
	if err := json.Unmarshal(env.Value, out); err != nil {
		return errs.ErrInvalidRequest.Wrapf("bad %s value: %v", env.Type, err)
	}
	return nil
}

func (a *ArenaApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /params
	// - /games
	// - /game/<id>            (JSON record)
	// - /game/<id>/snapshot   (binary layout for the presentation layer)
	// - /match/<owner>/<id>   (JSON escrow record + vault balance)
	// - /account/<addr>
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/params":
		b, _ := json.Marshal(a.st.Params)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case path == "/games":
		ids := make([]uint64, 0, len(a.st.Games))
		for id := range a.st.Games {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		bal := a.st.Balance(addr)
		b, _ := json.Marshal(map[string]any{"addr": addr, "balance": bal})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/game/"):
		rest := strings.TrimPrefix(path, "/game/")
		raw, wantSnapshot := strings.CutSuffix(rest, "/snapshot")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid game id", Height: a.st.Height}, nil
		}
		g, ok := a.st.Games[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "game not found", Height: a.st.Height}, nil
		}
		if wantSnapshot {
			snap, err := snapshot.FromGame(g)
			if err != nil {
				return &abci.QueryResponse{Code: 1, Log: err.Error(), Height: a.st.Height}, nil
			}
			b, err := snapshot.Encode(snap)
			if err != nil {
				return &abci.QueryResponse{Code: 1, Log: err.Error(), Height: a.st.Height}, nil
			}
			return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(g)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/match/"):
		rest := strings.TrimPrefix(path, "/match/")
		slash := strings.LastIndex(rest, "/")
		if slash <= 0 {
			return &abci.QueryResponse{Code: 1, Log: "expected /match/<owner>/<id>", Height: a.st.Height}, nil
		}
		owner := rest[:slash]
		id, err := strconv.ParseUint(rest[slash+1:], 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid match id", Height: a.st.Height}, nil
		}
		key := state.EscrowKey(owner, id)
		esc, ok := a.st.Escrows[key]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "match not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(map[string]any{
			"escrow":       esc,
			"vault":        state.VaultAddress(key),
			"vaultBalance": a.st.Balance(state.VaultAddress(key)),
		})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

func errResult(err error) *abci.ExecTxResult {
	codespace, code, logMsg := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Code: code, Codespace: codespace, Log: logMsg}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}
