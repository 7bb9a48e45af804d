// Package snapshot encodes the read-only match view consumed by the
// presentation layer. The layout is little-endian with a fixed field order
// and no padding: participant-one identity, optional participant-two
// identity, p1 coords (2 x s64), p2 coords (2 x s64), radius (u64), status
// (1 byte), optional winner identity, frame counter (u64). Optional
// identities are a presence byte immediately followed by the identity bytes.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"onchainarena/internal/state"
)

// Status byte values.
const (
	StatusWaiting  uint8 = 0
	StatusActive   uint8 = 1
	StatusFinished uint8 = 2
)

// OptionalID is a tagged optional identity. It mirrors the wire encoding
// directly (presence flag + payload) instead of using a nil-able string
// pointer, so the in-memory model and the layout stay aligned.
type OptionalID struct {
	Set bool
	ID  string
}

func Some(id string) OptionalID { return OptionalID{Set: true, ID: id} }
func None() OptionalID          { return OptionalID{} }

// GameSnapshot is one committed match state, frozen for observers.
type GameSnapshot struct {
	PlayerOne  string
	PlayerTwo  OptionalID
	P1Coords   [2]int64
	P2Coords   [2]int64
	MapRadius  uint64
	Status     uint8
	Winner     OptionalID
	FrameCount uint64
}

// FromGame projects a state record into its observer view.
func FromGame(g *state.Game) (GameSnapshot, error) {
	if g == nil {
		return GameSnapshot{}, fmt.Errorf("game is nil")
	}
	var status uint8
	switch g.Status {
	case state.GameWaiting:
		status = StatusWaiting
	case state.GameActive:
		status = StatusActive
	case state.GameFinished:
		status = StatusFinished
	default:
		return GameSnapshot{}, fmt.Errorf("unknown game status %q", g.Status)
	}

	snap := GameSnapshot{
		PlayerOne:  g.PlayerOne,
		P1Coords:   [2]int64{g.P1Coords.X, g.P1Coords.Y},
		P2Coords:   [2]int64{g.P2Coords.X, g.P2Coords.Y},
		MapRadius:  g.MapRadius,
		Status:     status,
		FrameCount: g.FrameCount,
	}
	if g.PlayerTwo != "" {
		snap.PlayerTwo = Some(g.PlayerTwo)
	}
	if g.Winner != "" {
		snap.Winner = Some(g.Winner)
	}
	return snap, nil
}

func Encode(s GameSnapshot) ([]byte, error) {
	var buf bytes.Buffer

	if err := writeID(&buf, s.PlayerOne); err != nil {
		return nil, fmt.Errorf("playerOne: %w", err)
	}
	if err := writeOptionalID(&buf, s.PlayerTwo); err != nil {
		return nil, fmt.Errorf("playerTwo: %w", err)
	}

	for _, v := range [...]int64{s.P1Coords[0], s.P1Coords[1], s.P2Coords[0], s.P2Coords[1]} {
		writeU64(&buf, uint64(v))
	}
	writeU64(&buf, s.MapRadius)
	buf.WriteByte(s.Status)

	if err := writeOptionalID(&buf, s.Winner); err != nil {
		return nil, fmt.Errorf("winner: %w", err)
	}
	writeU64(&buf, s.FrameCount)

	return buf.Bytes(), nil
}

func Decode(b []byte) (GameSnapshot, error) {
	r := bytes.NewReader(b)
	var s GameSnapshot

	id, err := readID(r)
	if err != nil {
		return GameSnapshot{}, fmt.Errorf("playerOne: %w", err)
	}
	s.PlayerOne = id

	if s.PlayerTwo, err = readOptionalID(r); err != nil {
		return GameSnapshot{}, fmt.Errorf("playerTwo: %w", err)
	}

	coords := make([]int64, 4)
	for i := range coords {
		u, err := readU64(r)
		if err != nil {
			return GameSnapshot{}, fmt.Errorf("coords: %w", err)
		}
		coords[i] = int64(u)
	}
	s.P1Coords = [2]int64{coords[0], coords[1]}
	s.P2Coords = [2]int64{coords[2], coords[3]}

	if s.MapRadius, err = readU64(r); err != nil {
		return GameSnapshot{}, fmt.Errorf("radius: %w", err)
	}

	status, err := r.ReadByte()
	if err != nil {
		return GameSnapshot{}, fmt.Errorf("status: %w", err)
	}
	if status > StatusFinished {
		return GameSnapshot{}, fmt.Errorf("invalid status byte %d", status)
	}
	s.Status = status

	if s.Winner, err = readOptionalID(r); err != nil {
		return GameSnapshot{}, fmt.Errorf("winner: %w", err)
	}
	if s.FrameCount, err = readU64(r); err != nil {
		return GameSnapshot{}, fmt.Errorf("frameCount: %w", err)
	}

	if r.Len() != 0 {
		return GameSnapshot{}, fmt.Errorf("trailing bytes: %d", r.Len())
	}
	return s, nil
}

// Identities are length-prefixed (u16 LE) UTF-8 bytes; optional identities
// carry a presence byte first, with no payload bytes when absent.

func writeID(buf *bytes.Buffer, id string) error {
	if id == "" {
		return fmt.Errorf("empty identity")
	}
	if len(id) > math.MaxUint16 {
		return fmt.Errorf("identity too long: %d bytes", len(id))
	}
	var lb [2]byte
	binary.LittleEndian.PutUint16(lb[:], uint16(len(id)))
	buf.Write(lb[:])
	buf.WriteString(id)
	return nil
}

func writeOptionalID(buf *bytes.Buffer, id OptionalID) error {
	if !id.Set {
		buf.WriteByte(0)
		return nil
	}
	buf.WriteByte(1)
	return writeID(buf, id.ID)
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readID(r *bytes.Reader) (string, error) {
	var lb [2]byte
	if _, err := io.ReadFull(r, lb[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint16(lb[:])
	if n == 0 {
		return "", fmt.Errorf("empty identity")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readOptionalID(r *bytes.Reader) (OptionalID, error) {
	p, err := r.ReadByte()
	if err != nil {
		return OptionalID{}, err
	}
	switch p {
	case 0:
		return None(), nil
	case 1:
		id, err := readID(r)
		if err != nil {
			return OptionalID{}, err
		}
		return Some(id), nil
	default:
		return OptionalID{}, fmt.Errorf("invalid presence byte %d", p)
	}
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
