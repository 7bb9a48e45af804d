package snapshot

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"onchainarena/internal/fixpoint"
	"onchainarena/internal/state"
)

func TestEncodeDecode_WaitingGame(t *testing.T) {
	g := &state.Game{
		ID:        1,
		PlayerOne: "alice",
		P1Coords:  fixpoint.Vec2{X: -200, Y: 0},
		P2Coords:  fixpoint.Vec2{X: 200, Y: 0},
		MapRadius: 500,
		Status:    state.GameWaiting,
	}
	snap, err := FromGame(g)
	require.NoError(t, err)
	require.False(t, snap.PlayerTwo.Set)
	require.False(t, snap.Winner.Set)

	b, err := Encode(snap)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, snap, got)
}

func TestEncodeDecode_FinishedGame(t *testing.T) {
	g := &state.Game{
		ID:         9,
		PlayerOne:  "alice",
		PlayerTwo:  "bob",
		P1Coords:   fixpoint.Vec2{X: 510, Y: 0},
		P2Coords:   fixpoint.Vec2{X: -200, Y: -40},
		MapRadius:  500,
		Status:     state.GameFinished,
		Winner:     "bob",
		FrameCount: 17,
	}
	snap, err := FromGame(g)
	require.NoError(t, err)

	b, err := Encode(snap)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, "bob", got.Winner.ID)
	require.Equal(t, uint64(17), got.FrameCount)
	require.Equal(t, StatusFinished, got.Status)
	require.Equal(t, snap, got)
}

func TestEncode_FieldOrderAndEndianness(t *testing.T) {
	snap := GameSnapshot{
		PlayerOne:  "ab",
		PlayerTwo:  None(),
		P1Coords:   [2]int64{-1, 2},
		P2Coords:   [2]int64{3, 4},
		MapRadius:  500,
		Status:     StatusWaiting,
		Winner:     None(),
		FrameCount: 7,
	}
	b, err := Encode(snap)
	require.NoError(t, err)

	// playerOne: u16 len + bytes.
	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[0:2]))
	require.Equal(t, "ab", string(b[2:4]))
	// playerTwo absent: single zero presence byte.
	require.Equal(t, byte(0), b[4])
	// p1.x = -1 as little-endian two's complement.
	require.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), binary.LittleEndian.Uint64(b[5:13]))
	// radius sits after the four coords.
	require.Equal(t, uint64(500), binary.LittleEndian.Uint64(b[37:45]))
	// status byte, absent winner, frame counter.
	require.Equal(t, byte(StatusWaiting), b[45])
	require.Equal(t, byte(0), b[46])
	require.Equal(t, uint64(7), binary.LittleEndian.Uint64(b[47:55]))
	require.Len(t, b, 55)
}

func TestDecode_RejectsTruncatedAndTrailing(t *testing.T) {
	snap := GameSnapshot{
		PlayerOne: "p1",
		P1Coords:  [2]int64{0, 0},
		P2Coords:  [2]int64{0, 0},
		MapRadius: 1,
		Status:    StatusActive,
	}
	b, err := Encode(snap)
	require.NoError(t, err)

	_, err = Decode(b[:len(b)-1])
	require.Error(t, err)

	_, err = Decode(append(b, 0x00))
	require.Error(t, err)
}

func TestFromGame_RejectsUnknownStatus(t *testing.T) {
	_, err := FromGame(&state.Game{PlayerOne: "a", Status: "paused"})
	require.Error(t, err)
}
