package snapshot

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/condense/internal/ir"
	tu "github.com/roach88/condense/internal/testutil"
)

func sampleLog() ir.Log {
	a := tu.ReasoningAction("a1", "c1", "r1", "check files")
	a.Arguments = json.RawMessage(`{"cmd":"ls"}`)
	a.Timestamp = tu.Epoch.Add(1500 * time.Millisecond)

	return tu.Log(
		tu.Message("m1", "hello"),
		a,
		tu.Observation("o1", "c1", "a1"),
		tu.SummaryCompaction("k1", "gist", 1, "a1", "o1"),
		tu.Request("q1"),
	)
}

func TestRoundTrip(t *testing.T) {
	log := sampleLog()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FromLog("s1", log)))

	snap, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, ir.WireVersion, snap.WireVersion)

	back, err := snap.Log()
	require.NoError(t, err)
	assert.Equal(t, log.Events(), back.Events())
}

func TestEncodeDeterministic(t *testing.T) {
	first, err := Encode(FromLog("s1", sampleLog()))
	require.NoError(t, err)
	second, err := Encode(FromLog("s1", sampleLog()))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	d1, err := Digest(first)
	require.NoError(t, err)
	assert.Len(t, d1, 64)
}

func TestDigestChangesWithContent(t *testing.T) {
	a, err := Encode(FromLog("s1", tu.Log(tu.Message("m1", "a"))))
	require.NoError(t, err)
	b, err := Encode(FromLog("s1", tu.Log(tu.Message("m1", "b"))))
	require.NoError(t, err)

	da, _ := Digest(a)
	db, _ := Digest(b)
	assert.NotEqual(t, da, db)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("definitely not a snapshot, long enough to pass the size check"))
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = Decode([]byte("CN"))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, err := Encode(FromLog("s1", sampleLog()))
	require.NoError(t, err)

	data[4] = 99
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecodeDetectsTampering(t *testing.T) {
	data, err := Encode(FromLog("s1", sampleLog()))
	require.NoError(t, err)

	// Flip a digest bit: the payload no longer matches.
	data[5] ^= 0x01
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestDecodeRejectsTruncatedBody(t *testing.T) {
	data, err := Encode(FromLog("s1", sampleLog()))
	require.NoError(t, err)

	_, err = Decode(data[:headerSize+(len(data)-headerSize)/2])
	require.Error(t, err)
}

func TestEmptyLog(t *testing.T) {
	data, err := Encode(FromLog("empty", tu.Log()))
	require.NoError(t, err)

	snap, err := Decode(data)
	require.NoError(t, err)
	log, err := snap.Log()
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())
}
