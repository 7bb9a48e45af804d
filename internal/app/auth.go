package app

import (
	"crypto/ed25519"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainarena/internal/codec"
	"onchainarena/internal/errs"
	"onchainarena/internal/state"
)

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return errs.ErrInvalidRequest.Wrap("missing tx.nonce")
	}
	if env.Signer == "" {
		return errs.ErrInvalidRequest.Wrap("missing tx.signer")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return errs.ErrInvalidRequest.Wrapf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

// requireAccountAuth verifies that env was signed by the registered key of
// account, and that env.Signer is that account. The per-signer nonce is NOT
// consumed here; bumpNonce runs separately so a failing handler leaves the
// nonce untouched (the staged clone is discarded anyway).
func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if account == "" {
		return errs.ErrInvalidRequest.Wrap("missing account")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return errs.ErrUnauthorized.Wrapf("tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return errs.ErrUnauthorized.Wrapf("account %q missing pubKey (auth/register_account required)", account)
	}
	msg := codec.SignBytes(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return errs.ErrUnauthorized.Wrap("invalid signature")
	}
	return nil
}

// bumpNonce enforces strictly-increasing nonces per signer, so a duplicated
// submission (client retry after timeout) is rejected instead of re-applied.
func bumpNonce(st *state.State, env codec.TxEnvelope) error {
	n, err := strconv.ParseUint(env.Nonce, 10, 64)
	if err != nil {
		return errs.ErrInvalidRequest.Wrapf("invalid tx.nonce %q", env.Nonce)
	}
	if last, ok := st.NonceMax[env.Signer]; ok && n <= last {
		return errs.ErrInvalidRequest.Wrapf("stale nonce %d (last accepted %d)", n, last)
	}
	st.NonceMax[env.Signer] = n
	return nil
}

// authRegisterAccount records an account's ed25519 pubkey. The registration
// is self-signed with the key being registered.
func authRegisterAccount(st *state.State, env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) (*abci.ExecTxResult, error) {
	if msg.Account == "" {
		return nil, errs.ErrInvalidRequest.Wrap("missing account")
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return nil, errs.ErrInvalidRequest.Wrapf("pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return nil, err
	}
	if env.Signer != msg.Account {
		return nil, errs.ErrUnauthorized.Wrapf("tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	signBytes := codec.SignBytes(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(msg.PubKey), signBytes, env.Sig) {
		return nil, errs.ErrUnauthorized.Wrap("invalid signature")
	}

	if existing, ok := st.AccountKeys[msg.Account]; ok {
		// Re-registration is idempotent for the same key only.
		if string(existing) != string(msg.PubKey) {
			return nil, errs.ErrAlreadyExists.Wrapf("account %q already registered with a different key", msg.Account)
		}
	}
	if err := bumpNonce(st, env); err != nil {
		return nil, err
	}
	st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)

	return okEvent("AccountRegistered", map[string]string{
		"account": msg.Account,
	}), nil
}
