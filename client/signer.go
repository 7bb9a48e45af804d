package client

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"

	"onchainarena/internal/codec"
)

// Signer builds signed transaction envelopes for one account. The nonce
// counter is local and strictly increasing, matching the chain's per-signer
// replay rule; a Signer must not be shared across processes for the same
// account.
type Signer struct {
	account string
	priv    ed25519.PrivateKey
	nonce   atomic.Uint64
}

func NewSigner(account string, priv ed25519.PrivateKey) (*Signer, error) {
	if account == "" {
		return nil, fmt.Errorf("missing account")
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length: %d", len(priv))
	}
	return &Signer{account: account, priv: priv}, nil
}

// NewRandomSigner generates a fresh keypair, for dev and test setups.
func NewRandomSigner(account string) (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return NewSigner(account, priv)
}

func (s *Signer) Account() string { return s.account }

func (s *Signer) PubKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// SetNonce fast-forwards the local counter, for resuming an account whose
// last accepted nonce is known (e.g. from a node query).
func (s *Signer) SetNonce(n uint64) { s.nonce.Store(n) }

// SignTx marshals value and wraps it in a signed envelope with the next
// nonce. The returned bytes are ready for broadcast.
func (s *Signer) SignTx(typ string, value any) ([]byte, error) {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode tx value: %w", err)
	}
	nonce := strconv.FormatUint(s.nonce.Add(1), 10)
	sig := ed25519.Sign(s.priv, codec.SignBytes(typ, valueBytes, nonce, s.account))
	return json.Marshal(codec.TxEnvelope{
		Type:   typ,
		Value:  valueBytes,
		Nonce:  nonce,
		Signer: s.account,
		Sig:    sig,
	})
}

// RegisterTx builds the self-signed account registration for this signer's
// key. It must be the account's first accepted transaction.
func (s *Signer) RegisterTx() ([]byte, error) {
	return s.SignTx("auth/register_account", codec.AuthRegisterAccountTx{
		Account: s.account,
		PubKey:  s.PubKey(),
	})
}
