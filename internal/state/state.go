package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"onchainarena/internal/fixpoint"
)

// Params are the deployment-time knobs of the transition logic. They are
// supplied via genesis (InitChain) and persisted in state so every replica
// applies identical rules; nothing here is hardcoded into handlers.
type Params struct {
	// Authority is the only account allowed to settle escrowed matches.
	Authority string `json:"authority,omitempty"`

	// FeeBps is the house fee on settlement, in basis points of the vault.
	FeeBps uint32 `json:"feeBps"`

	// SpeedFactor scales a move input into fixed-point displacement per axis.
	SpeedFactor int64 `json:"speedFactor"`

	// MinWager is the smallest stake accepted by bank/create_match.
	MinWager uint64 `json:"minWager"`

	// DefaultRadius and StartOffset seed new games that do not override them.
	DefaultRadius uint64 `json:"defaultRadius"`
	StartOffset   int64  `json:"startOffset"`

	// MaxMoveInput bounds |dx| and |dy| of a single move. Inputs are int8 on
	// the wire, so 127 is the widest possible setting.
	MaxMoveInput int64 `json:"maxMoveInput"`
}

func DefaultParams() Params {
	return Params{
		FeeBps:        200,
		SpeedFactor:   10,
		MinWager:      1,
		DefaultRadius: 500,
		StartOffset:   200,
		MaxMoveInput:  100,
	}
}

func (p Params) Validate() error {
	if p.FeeBps > 10000 {
		return fmt.Errorf("feeBps must be <= 10000, got %d", p.FeeBps)
	}
	if p.SpeedFactor <= 0 {
		return fmt.Errorf("speedFactor must be > 0, got %d", p.SpeedFactor)
	}
	if p.MinWager == 0 {
		return fmt.Errorf("minWager must be > 0")
	}
	if p.DefaultRadius == 0 {
		return fmt.Errorf("defaultRadius must be > 0")
	}
	if p.MaxMoveInput <= 0 || p.MaxMoveInput > 127 {
		return fmt.Errorf("maxMoveInput must be in [1,127], got %d", p.MaxMoveInput)
	}
	return nil
}

type GameStatus string

const (
	GameWaiting  GameStatus = "waiting"
	GameActive   GameStatus = "active"
	GameFinished GameStatus = "finished"
)

// Game is one two-participant match. The player fields hold the long-lived
// principal identities (payout targets); the session fields hold the optional
// delegate identities bound at create/join time for high-frequency signing.
// An empty string means "unset".
type Game struct {
	ID uint64 `json:"id"`

	PlayerOne  string `json:"playerOne"`
	PlayerTwo  string `json:"playerTwo,omitempty"`
	SessionOne string `json:"sessionOne,omitempty"`
	SessionTwo string `json:"sessionTwo,omitempty"`

	P1Coords fixpoint.Vec2 `json:"p1Coords"`
	P2Coords fixpoint.Vec2 `json:"p2Coords"`

	MapRadius uint64 `json:"mapRadius"`

	Status     GameStatus `json:"status"`
	Winner     string     `json:"winner,omitempty"`
	FrameCount uint64     `json:"frameCount"`
}

// Escrow is the wager bookkeeping record for one staked match, keyed by
// (owner, matchId). The staked balance itself lives in a separate custody
// account (see VaultAddress), never in the record.
type Escrow struct {
	Owner   string `json:"owner"`
	MatchID uint64 `json:"matchId"`

	// GameID correlates this escrow with the engine game whose outcome
	// authorizes settlement.
	GameID uint64 `json:"gameId"`

	Participants []string `json:"participants"`
	Wager        uint64   `json:"wager"`
	Settled      bool     `json:"settled"`
}

// EscrowKey builds the canonical record key for an escrow.
func EscrowKey(owner string, matchID uint64) string {
	return fmt.Sprintf("%s/%d", owner, matchID)
}

const vaultDomain = "arena/vault/v1"

// VaultAddress derives the custody account address for a match escrow from
// its record key alone, so any observer can recompute it without a lookup.
func VaultAddress(escrowKey string) string {
	sum := sha256.Sum256([]byte(vaultDomain + "|" + escrowKey))
	return "vault/" + hex.EncodeToString(sum[:20])
}

type State struct {
	Height int64 `json:"height"`

	Params Params `json:"params"`

	Accounts    map[string]uint64  `json:"accounts"`
	AccountKeys map[string][]byte  `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey (32 bytes)
	NonceMax    map[string]uint64  `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce, for replay protection
	Games       map[uint64]*Game   `json:"games"`
	Escrows     map[string]*Escrow `json:"escrows"`
}

func NewState() *State {
	return &State{
		Height:      0,
		Params:      DefaultParams(),
		Accounts:    map[string]uint64{},
		AccountKeys: map[string][]byte{},
		NonceMax:    map[string]uint64{},
		Games:       map[uint64]*Game{},
		Escrows:     map[string]*Escrow{},
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	return &st, nil
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state suitable for staged tx execution: a
// handler mutates the clone, and only a fully successful application is
// swapped in as the live state.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	out.normalize()
	return &out, nil
}

func (s *State) normalize() {
	if s.Accounts == nil {
		s.Accounts = map[string]uint64{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
	if s.Games == nil {
		s.Games = map[uint64]*Game{}
	}
	if s.Escrows == nil {
		s.Escrows = map[string]*Escrow{}
	}
	if (s.Params == Params{}) {
		s.Params = DefaultParams()
	}
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: encoding/json does NOT guarantee map key
	// order, so maps are normalized into sorted slices before hashing.
	type accountKV struct {
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type gameKV struct {
		ID   uint64 `json:"id"`
		Game *Game  `json:"game"`
	}
	type escrowKV struct {
		Key    string  `json:"key"`
		Escrow *Escrow `json:"escrow"`
	}

	accounts := make([]accountKV, 0, len(s.Accounts))
	for k, v := range s.Accounts {
		accounts = append(accounts, accountKV{Addr: k, Balance: v})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Addr < accounts[j].Addr })

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	games := make([]gameKV, 0, len(s.Games))
	for id, g := range s.Games {
		games = append(games, gameKV{ID: id, Game: g})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })

	escrows := make([]escrowKV, 0, len(s.Escrows))
	for k, e := range s.Escrows {
		escrows = append(escrows, escrowKV{Key: k, Escrow: e})
	}
	sort.Slice(escrows, func(i, j int) bool { return escrows[i].Key < escrows[j].Key })

	normalized := struct {
		Height      int64          `json:"height"`
		Params      Params         `json:"params"`
		Accounts    []accountKV    `json:"accounts"`
		AccountKeys []accountKeyKV `json:"accountKeys,omitempty"`
		NonceMax    []nonceKV      `json:"nonceMax,omitempty"`
		Games       []gameKV       `json:"games"`
		Escrows     []escrowKV     `json:"escrows"`
	}{
		Height:      s.Height,
		Params:      s.Params,
		Accounts:    accounts,
		AccountKeys: accountKeys,
		NonceMax:    nonces,
		Games:       games,
		Escrows:     escrows,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}
