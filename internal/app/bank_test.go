package app

import (
	"strings"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainarena/internal/state"
)

// unit is the subdivision used in wager tests: 10^9 base units per whole
// token, so 0.1 token = 100_000_000.
const unit = uint64(1_000_000_000)

func useAuthority(t *testing.T, a *ArenaApp, authority string) {
	t.Helper()
	p := state.DefaultParams()
	p.Authority = authority
	if _, err := a.InitChain(t.Context(), &abci.InitChainRequest{
		AppStateBytes: mustMarshal(t, map[string]any{"params": p}),
	}); err != nil {
		t.Fatalf("InitChain: %v", err)
	}
}

// setupFinishedMatch plays a full staked match to the point where alice has
// won game 1 and both stakes of wager sit in the vault of alice/1.
func setupFinishedMatch(t *testing.T, wager uint64) (a *ArenaApp, vault string) {
	t.Helper()

	a, gameID := setupActiveGame(t)
	useAuthority(t, a, "house")
	registerTestAccount(t, a, "house")
	mintTestTokens(t, a, "alice", wager)
	mintTestTokens(t, a, "bob", wager)

	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice",
		"matchId": uint64(1),
		"gameId":  gameID,
		"wager":   wager,
	}, "alice")))
	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/join_match", map[string]any{
		"owner":   "alice",
		"matchId": uint64(1),
		"player":  "bob",
		"amount":  wager,
	}, "bob")))

	// Bob rings himself out: four dx=10 moves from (200,0) end at (600,0),
	// past radius 500.
	for i := 0; i < 4; i++ {
		mustOk(t, a.deliverTx(txBytesSigned(t, "engine/move", map[string]any{
			"gameId": gameID,
			"player": "bob",
			"dx":     10,
			"dy":     0,
		}, "bob")))
	}
	if g := a.st.Games[gameID]; g.Status != state.GameFinished || g.Winner != "alice" {
		t.Fatalf("expected alice to win, got status=%q winner=%q", g.Status, g.Winner)
	}

	return a, state.VaultAddress(state.EscrowKey("alice", 1))
}

func TestBankSend_MovesFundsAndRejectsOverdraft(t *testing.T) {
	a := newTestApp(t)
	registerTestAccount(t, a, "alice")
	mintTestTokens(t, a, "alice", 100)

	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": 60,
	}, "alice")))
	if a.st.Balance("alice") != 40 || a.st.Balance("bob") != 60 {
		t.Fatalf("unexpected balances: alice=%d bob=%d", a.st.Balance("alice"), a.st.Balance("bob"))
	}

	res := a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": 60,
	}, "alice"))
	if res.Code == 0 || !strings.Contains(res.Log, "insufficient") {
		t.Fatalf("expected overdraft rejection, got code=%d log=%q", res.Code, res.Log)
	}
	if a.st.Balance("alice") != 40 || a.st.Balance("bob") != 60 {
		t.Fatalf("failed send must not move funds")
	}
}

func TestCreateMatch_EscrowsTheStake(t *testing.T) {
	a, gameID := setupActiveGame(t)
	mintTestTokens(t, a, "alice", 1000)

	res := mustOk(t, a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice",
		"matchId": uint64(1),
		"gameId":  gameID,
		"wager":   uint64(400),
	}, "alice")))
	ev := findEvent(res.Events, "EscrowCreated")
	if ev == nil {
		t.Fatalf("expected EscrowCreated event")
	}

	key := state.EscrowKey("alice", 1)
	esc := a.st.Escrows[key]
	if esc == nil {
		t.Fatalf("expected escrow record")
	}
	if esc.Wager != 400 || len(esc.Participants) != 1 || esc.Participants[0] != "alice" {
		t.Fatalf("unexpected escrow: %+v", esc)
	}
	vault := state.VaultAddress(key)
	if attr(ev, "vault") != vault {
		t.Fatalf("event vault %q != derived %q", attr(ev, "vault"), vault)
	}
	if a.st.Balance("alice") != 600 || a.st.Balance(vault) != 400 {
		t.Fatalf("unexpected balances: alice=%d vault=%d", a.st.Balance("alice"), a.st.Balance(vault))
	}

	// Same (owner, matchId) key cannot be reused.
	dup := a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice",
		"matchId": uint64(1),
		"gameId":  gameID,
		"wager":   uint64(400),
	}, "alice"))
	if dup.Code == 0 || !strings.Contains(dup.Log, "already exists") {
		t.Fatalf("expected duplicate match rejection, got code=%d log=%q", dup.Code, dup.Log)
	}
}

func TestCreateMatch_RejectsZeroWagerAndUnknownGame(t *testing.T) {
	a, gameID := setupActiveGame(t)
	mintTestTokens(t, a, "alice", 1000)

	res := a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice",
		"matchId": uint64(2),
		"gameId":  gameID,
		"wager":   uint64(0),
	}, "alice"))
	if res.Code == 0 || !strings.Contains(res.Log, "below minimum") {
		t.Fatalf("expected zero wager rejection, got code=%d log=%q", res.Code, res.Log)
	}

	res = a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice",
		"matchId": uint64(2),
		"gameId":  uint64(999),
		"wager":   uint64(100),
	}, "alice"))
	if res.Code == 0 || !strings.Contains(res.Log, "not found") {
		t.Fatalf("expected unknown game rejection, got code=%d log=%q", res.Code, res.Log)
	}
}

func TestCreateMatch_InsufficientFundsLeavesNoRecord(t *testing.T) {
	a, gameID := setupActiveGame(t)
	mintTestTokens(t, a, "alice", 10)

	res := a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice",
		"matchId": uint64(1),
		"gameId":  gameID,
		"wager":   uint64(100),
	}, "alice"))
	if res.Code == 0 {
		t.Fatalf("expected underfunded create to fail")
	}
	if a.st.Escrows[state.EscrowKey("alice", 1)] != nil {
		t.Fatalf("failed create must not leave an escrow record")
	}
	if a.st.Balance("alice") != 10 {
		t.Fatalf("failed create must not move funds, alice=%d", a.st.Balance("alice"))
	}
}

func TestJoinMatch_WrongAmountMovesNothing(t *testing.T) {
	a, gameID := setupActiveGame(t)
	mintTestTokens(t, a, "alice", 500)
	mintTestTokens(t, a, "bob", 500)

	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice",
		"matchId": uint64(1),
		"gameId":  gameID,
		"wager":   uint64(300),
	}, "alice")))

	res := a.deliverTx(txBytesSigned(t, "bank/join_match", map[string]any{
		"owner":   "alice",
		"matchId": uint64(1),
		"player":  "bob",
		"amount":  uint64(299),
	}, "bob"))
	if res.Code == 0 || !strings.Contains(res.Log, "does not equal wager") {
		t.Fatalf("expected wrong amount rejection, got code=%d log=%q", res.Code, res.Log)
	}

	vault := state.VaultAddress(state.EscrowKey("alice", 1))
	if a.st.Balance("bob") != 500 || a.st.Balance(vault) != 300 {
		t.Fatalf("stale quote must not move funds: bob=%d vault=%d", a.st.Balance("bob"), a.st.Balance(vault))
	}
	if len(a.st.Escrows[state.EscrowKey("alice", 1)].Participants) != 1 {
		t.Fatalf("stale quote must not register the joiner")
	}
}

func TestJoinMatch_FullMatchRejectsThirdDeposit(t *testing.T) {
	a, gameID := setupActiveGame(t)
	registerTestAccount(t, a, "carol")
	mintTestTokens(t, a, "alice", 500)
	mintTestTokens(t, a, "bob", 500)
	mintTestTokens(t, a, "carol", 500)

	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice", "matchId": uint64(1), "gameId": gameID, "wager": uint64(100),
	}, "alice")))
	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/join_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "player": "bob", "amount": uint64(100),
	}, "bob")))

	res := a.deliverTx(txBytesSigned(t, "bank/join_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "player": "carol", "amount": uint64(100),
	}, "carol"))
	if res.Code == 0 || !strings.Contains(res.Log, "two participants") {
		t.Fatalf("expected full match rejection, got code=%d log=%q", res.Code, res.Log)
	}
	if a.st.Balance("carol") != 500 {
		t.Fatalf("rejected join must not move funds, carol=%d", a.st.Balance("carol"))
	}
}

func TestSettleMatch_SplitsPotOnce(t *testing.T) {
	// 0.1 token wagered by each side: pot 0.2, house fee at 200 bps is
	// 0.004, winner payout 0.196.
	wager := unit / 10
	a, vault := setupFinishedMatch(t, wager)

	res := mustOk(t, a.deliverTx(txBytesSigned(t, "bank/settle_match", map[string]any{
		"owner":   "alice",
		"matchId": uint64(1),
		"winner":  "alice",
	}, "house")))
	ev := findEvent(res.Events, "EscrowSettled")
	if ev == nil {
		t.Fatalf("expected EscrowSettled event")
	}
	if got := parseU64(t, attr(ev, "payout")); got != 196_000_000 {
		t.Fatalf("expected payout 196000000, got %d", got)
	}
	if got := parseU64(t, attr(ev, "fee")); got != 4_000_000 {
		t.Fatalf("expected fee 4000000, got %d", got)
	}

	if a.st.Balance(vault) != 0 {
		t.Fatalf("expected drained vault, got %d", a.st.Balance(vault))
	}
	if a.st.Balance("alice") != 196_000_000 {
		t.Fatalf("expected alice=196000000, got %d", a.st.Balance("alice"))
	}
	if a.st.Balance("house") != 4_000_000 {
		t.Fatalf("expected house=4000000, got %d", a.st.Balance("house"))
	}
	if !a.st.Escrows[state.EscrowKey("alice", 1)].Settled {
		t.Fatalf("expected settled flag")
	}

	// Settlement is single-shot.
	again := a.deliverTx(txBytesSigned(t, "bank/settle_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "winner": "alice",
	}, "house"))
	if again.Code == 0 || !strings.Contains(again.Log, "already settled") {
		t.Fatalf("expected double settle rejection, got code=%d log=%q", again.Code, again.Log)
	}
	if a.st.Balance("alice") != 196_000_000 || a.st.Balance("house") != 4_000_000 {
		t.Fatalf("double settle must not pay twice")
	}
}

func TestSettleMatch_OnlyAuthority(t *testing.T) {
	a, _ := setupFinishedMatch(t, 1000)

	res := a.deliverTx(txBytesSigned(t, "bank/settle_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "winner": "alice",
	}, "alice"))
	if res.Code == 0 || !strings.Contains(res.Log, "signer mismatch") {
		t.Fatalf("expected non-authority rejection, got code=%d log=%q", res.Code, res.Log)
	}
}

func TestSettleMatch_WinnerMustMatchGameOutcome(t *testing.T) {
	a, _ := setupFinishedMatch(t, 1000)
	registerTestAccount(t, a, "carol")

	res := a.deliverTx(txBytesSigned(t, "bank/settle_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "winner": "carol",
	}, "house"))
	if res.Code == 0 || !strings.Contains(res.Log, "not a participant") {
		t.Fatalf("expected non-participant winner rejection, got code=%d log=%q", res.Code, res.Log)
	}

	res = a.deliverTx(txBytesSigned(t, "bank/settle_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "winner": "bob",
	}, "house"))
	if res.Code == 0 || !strings.Contains(res.Log, "winner") {
		t.Fatalf("expected losing-side payout rejection, got code=%d log=%q", res.Code, res.Log)
	}
}

func TestSettleMatch_RequiresFinishedGame(t *testing.T) {
	a, gameID := setupActiveGame(t)
	useAuthority(t, a, "house")
	registerTestAccount(t, a, "house")
	mintTestTokens(t, a, "alice", 1000)
	mintTestTokens(t, a, "bob", 1000)

	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice", "matchId": uint64(1), "gameId": gameID, "wager": uint64(500),
	}, "alice")))
	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/join_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "player": "bob", "amount": uint64(500),
	}, "bob")))

	res := a.deliverTx(txBytesSigned(t, "bank/settle_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "winner": "alice",
	}, "house"))
	if res.Code == 0 || !strings.Contains(res.Log, "not finished") {
		t.Fatalf("expected unfinished game rejection, got code=%d log=%q", res.Code, res.Log)
	}
}
