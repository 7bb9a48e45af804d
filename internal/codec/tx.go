package codec

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// TxEnvelope is the transaction container.
//
// CometBFT transactions are opaque bytes; the arena chain uses JSON-encoded
// envelopes routed by Type.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// Tx auth:
	// - Nonce: included in the signed message for replay protection (must
	//   strictly increase per signer).
	// - Signer: the acting account id.
	// - Sig: Ed25519 signature over SignBytes(type, value, nonce, signer).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

const signDomain = "arena/tx/v1"

// SignBytes builds the canonical byte string covered by the envelope
// signature. Shared by the chain (verification) and clients (signing).
//
// signBytes = DOMAIN || 0x00 || type || 0x00 || nonce || 0x00 || signer || 0x00 || sha256(value)
func SignBytes(typ string, value []byte, nonce string, signer string) []byte {
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(signDomain)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(signDomain)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// BankCreateMatchTx opens an escrow for gameId and deposits the creator's
// wager into the derived custody vault.
type BankCreateMatchTx struct {
	Creator string `json:"creator"`
	MatchID uint64 `json:"matchId"`
	GameID  uint64 `json:"gameId"`
	Wager   uint64 `json:"wager"`
}

// BankJoinMatchTx deposits the second stake. Amount is the joiner's quoted
// deposit; it must equal the recorded wager exactly or nothing moves.
type BankJoinMatchTx struct {
	Owner   string `json:"owner"`
	MatchID uint64 `json:"matchId"`
	Player  string `json:"player"`
	Amount  uint64 `json:"amount"`
}

type BankSettleMatchTx struct {
	Owner   string `json:"owner"`
	MatchID uint64 `json:"matchId"`
	Winner  string `json:"winner"`
}

// ---- Auth ----

// Account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Engine ----

type EngineCreateGameTx struct {
	GameID  uint64 `json:"gameId"`
	Creator string `json:"creator"`

	// SessionKey optionally binds a delegate signer for slot one.
	SessionKey string `json:"sessionKey,omitempty"`

	// Radius and starting positions default from chain params when omitted.
	Radius  uint64    `json:"radius,omitempty"`
	P1Start *[2]int64 `json:"p1Start,omitempty"`
	P2Start *[2]int64 `json:"p2Start,omitempty"`
}

type EngineJoinGameTx struct {
	GameID     uint64 `json:"gameId"`
	Player     string `json:"player"`
	SessionKey string `json:"sessionKey,omitempty"`
}

// EngineMoveTx carries one bounded move. Inputs are int8 by construction;
// chain params may narrow the accepted magnitude further.
type EngineMoveTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
	DX     int8   `json:"dx"`
	DY     int8   `json:"dy"`
}

type EngineBindSessionTx struct {
	GameID     uint64 `json:"gameId"`
	Player     string `json:"player"`
	SessionKey string `json:"sessionKey"`
}
