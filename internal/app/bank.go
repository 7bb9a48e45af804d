package app

import (
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainarena/internal/codec"
	"onchainarena/internal/errs"
	"onchainarena/internal/state"
)

// bankMint is the unsigned dev/localnet faucet.
func bankMint(st *state.State, msg codec.BankMintTx) (*abci.ExecTxResult, error) {
	if msg.To == "" || msg.Amount == 0 {
		return nil, errs.ErrInvalidRequest.Wrap("missing to/amount")
	}
	if err := st.Credit(msg.To, msg.Amount); err != nil {
		return nil, errs.ErrInvalidRequest.Wrap(err.Error())
	}
	return okEvent("BankMinted", map[string]string{
		"to":     msg.To,
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}

func bankSend(st *state.State, env codec.TxEnvelope, msg codec.BankSendTx) (*abci.ExecTxResult, error) {
	if msg.From == "" || msg.To == "" || msg.Amount == 0 {
		return nil, errs.ErrInvalidRequest.Wrap("missing from/to/amount")
	}
	if err := requireAccountAuth(st, env, msg.From); err != nil {
		return nil, err
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}
	if err := st.Debit(msg.From, msg.Amount); err != nil {
		return nil, errs.ErrInsufficientFunds.Wrap(err.Error())
	}
	if err := st.Credit(msg.To, msg.Amount); err != nil {
		return nil, errs.ErrInvalidRequest.Wrap(err.Error())
	}
	return okEvent("BankSent", map[string]string{
		"from":   msg.From,
		"to":     msg.To,
		"amount": fmt.Sprintf("%d", msg.Amount),
	}), nil
}

// bankCreateMatch opens the escrow record and moves the creator's stake into
// the derived custody vault. Record update and deposit commit together or
// not at all (staged clone).
func bankCreateMatch(st *state.State, env codec.TxEnvelope, msg codec.BankCreateMatchTx) (*abci.ExecTxResult, error) {
	if msg.Creator == "" || msg.MatchID == 0 {
		return nil, errs.ErrInvalidRequest.Wrap("missing creator/matchId")
	}
	if err := requireAccountAuth(st, env, msg.Creator); err != nil {
		return nil, err
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}
	if msg.Wager < st.Params.MinWager {
		return nil, errs.ErrInvalidAmount.Wrapf("wager %d below minimum %d", msg.Wager, st.Params.MinWager)
	}
	if st.Games[msg.GameID] == nil {
		return nil, errs.ErrInvalidRequest.Wrapf("game %d not found", msg.GameID)
	}

	key := state.EscrowKey(msg.Creator, msg.MatchID)
	if st.Escrows[key] != nil {
		return nil, errs.ErrAlreadyExists.Wrapf("match %s", key)
	}

	vault := state.VaultAddress(key)
	if err := st.Debit(msg.Creator, msg.Wager); err != nil {
		return nil, errs.ErrInsufficientFunds.Wrap(err.Error())
	}
	if err := st.Credit(vault, msg.Wager); err != nil {
		return nil, errs.ErrInvalidRequest.Wrap(err.Error())
	}

	st.Escrows[key] = &state.Escrow{
		Owner:        msg.Creator,
		MatchID:      msg.MatchID,
		GameID:       msg.GameID,
		Participants: []string{msg.Creator},
		Wager:        msg.Wager,
		Settled:      false,
	}

	return okEvent("EscrowCreated", map[string]string{
		"owner":   msg.Creator,
		"matchId": fmt.Sprintf("%d", msg.MatchID),
		"gameId":  fmt.Sprintf("%d", msg.GameID),
		"wager":   fmt.Sprintf("%d", msg.Wager),
		"vault":   vault,
	}), nil
}

// bankJoinMatch records the second participant and their stake. The quoted
// amount is compared against the recorded wager before any funds move, so a
// stale quote rejects cleanly with nothing deposited.
func bankJoinMatch(st *state.State, env codec.TxEnvelope, msg codec.BankJoinMatchTx) (*abci.ExecTxResult, error) {
	if msg.Player == "" {
		return nil, errs.ErrInvalidRequest.Wrap("missing player")
	}
	if err := requireAccountAuth(st, env, msg.Player); err != nil {
		return nil, err
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}

	key := state.EscrowKey(msg.Owner, msg.MatchID)
	esc := st.Escrows[key]
	if esc == nil {
		return nil, errs.ErrInvalidRequest.Wrapf("match %s not found", key)
	}
	if len(esc.Participants) >= 2 {
		return nil, errs.ErrMatchFull.Wrapf("match %s", key)
	}
	if esc.Settled {
		return nil, errs.ErrAlreadySettled.Wrapf("match %s", key)
	}
	if msg.Amount != esc.Wager {
		return nil, errs.ErrWrongAmount.Wrapf("deposit %d does not equal wager %d", msg.Amount, esc.Wager)
	}

	vault := state.VaultAddress(key)
	if err := st.Debit(msg.Player, msg.Amount); err != nil {
		return nil, errs.ErrInsufficientFunds.Wrap(err.Error())
	}
	if err := st.Credit(vault, msg.Amount); err != nil {
		return nil, errs.ErrInvalidRequest.Wrap(err.Error())
	}
	esc.Participants = append(esc.Participants, msg.Player)

	return okEvent("EscrowJoined", map[string]string{
		"owner":        msg.Owner,
		"matchId":      fmt.Sprintf("%d", msg.MatchID),
		"player":       msg.Player,
		"vaultBalance": fmt.Sprintf("%d", st.Balance(vault)),
	}), nil
}

// bankSettleMatch drains the vault exactly once: house fee to the authority,
// remainder to the winner. Only the configured settlement authority may call
// it, and only after the correlated game finished with a matching winner.
func bankSettleMatch(st *state.State, env codec.TxEnvelope, msg codec.BankSettleMatchTx) (*abci.ExecTxResult, error) {
	authority := st.Params.Authority
	if authority == "" {
		return nil, errs.ErrUnauthorized.Wrap("no settlement authority configured")
	}
	if err := requireAccountAuth(st, env, authority); err != nil {
		return nil, err
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}

	key := state.EscrowKey(msg.Owner, msg.MatchID)
	esc := st.Escrows[key]
	if esc == nil {
		return nil, errs.ErrInvalidRequest.Wrapf("match %s not found", key)
	}
	if esc.Settled {
		return nil, errs.ErrAlreadySettled.Wrapf("match %s", key)
	}

	isParticipant := false
	for _, p := range esc.Participants {
		if p == msg.Winner {
			isParticipant = true
			break
		}
	}
	if !isParticipant {
		return nil, errs.ErrInvalidWinner.Wrapf("%q is not a participant of match %s", msg.Winner, key)
	}

	g := st.Games[esc.GameID]
	if g == nil || g.Status != state.GameFinished {
		return nil, errs.ErrInvalidState.Wrapf("game %d has not finished", esc.GameID)
	}
	if g.Winner != msg.Winner {
		return nil, errs.ErrInvalidWinner.Wrapf("game %d winner is %q, not %q", esc.GameID, g.Winner, msg.Winner)
	}

	vault := state.VaultAddress(key)
	balance := st.Balance(vault)
	expected, err := mulU64Checked(esc.Wager, 2, "expected deposits")
	if err != nil {
		return nil, errs.ErrInvalidRequest.Wrap(err.Error())
	}
	// Unreachable given the deposit invariants, but checked, not assumed.
	if balance < expected {
		return nil, errs.ErrInsufficientFunds.Wrapf("vault %d below expected deposits %d", balance, expected)
	}

	fee, payout := feeSplit(balance, int64(st.Params.FeeBps))

	if err := st.Debit(vault, payout); err != nil {
		return nil, errs.ErrInsufficientFunds.Wrap(err.Error())
	}
	if err := st.Credit(msg.Winner, payout); err != nil {
		return nil, errs.ErrInvalidRequest.Wrap(err.Error())
	}
	if err := st.Debit(vault, fee); err != nil {
		return nil, errs.ErrInsufficientFunds.Wrap(err.Error())
	}
	if err := st.Credit(authority, fee); err != nil {
		return nil, errs.ErrInvalidRequest.Wrap(err.Error())
	}
	esc.Settled = true

	return okEvent("EscrowSettled", map[string]string{
		"owner":   msg.Owner,
		"matchId": fmt.Sprintf("%d", msg.MatchID),
		"winner":  msg.Winner,
		"payout":  fmt.Sprintf("%d", payout),
		"fee":     fmt.Sprintf("%d", fee),
	}), nil
}
