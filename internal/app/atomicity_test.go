package app

import (
	"bytes"
	"testing"
)

// Failed transactions must leave no partial writes behind: the handler runs
// against a staged clone that is discarded on error.

func TestAtomicity_FailedJoinLeavesStateIdentical(t *testing.T) {
	a, gameID := setupActiveGame(t)
	mintTestTokens(t, a, "alice", 500)
	mintTestTokens(t, a, "bob", 100)

	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/create_match", map[string]any{
		"creator": "alice", "matchId": uint64(1), "gameId": gameID, "wager": uint64(300),
	}, "alice")))

	before := a.st.AppHash()

	// Bob quotes the right wager but cannot cover it. The deposit fails
	// after the record checks passed.
	res := a.deliverTx(txBytesSigned(t, "bank/join_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "player": "bob", "amount": uint64(300),
	}, "bob"))
	if res.Code == 0 {
		t.Fatalf("expected underfunded join to fail")
	}

	if !bytes.Equal(before, a.st.AppHash()) {
		t.Fatalf("failed join must leave state byte-identical")
	}
}

func TestAtomicity_FailedSettleLeavesStateIdentical(t *testing.T) {
	a, _ := setupFinishedMatch(t, 1000)
	registerTestAccount(t, a, "carol")

	before := a.st.AppHash()

	res := a.deliverTx(txBytesSigned(t, "bank/settle_match", map[string]any{
		"owner": "alice", "matchId": uint64(1), "winner": "carol",
	}, "house"))
	if res.Code == 0 {
		t.Fatalf("expected invalid winner to fail")
	}

	if !bytes.Equal(before, a.st.AppHash()) {
		t.Fatalf("failed settle must leave state byte-identical")
	}
}
