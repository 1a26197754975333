package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/condense/internal/ir"
	tu "github.com/roach88/condense/internal/testutil"
)

func TestAppend_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	summary := "gist"
	offset := 0
	events := []ir.Event{
		tu.Message("m1", "hello <world> & you"),
		tu.ReasoningAction("a1", "c1", "r1", "look"),
		tu.Observation("o1", "c1", "a1"),
		ir.Compaction{Meta: ir.Meta{ID: "k1", Timestamp: tu.Epoch}, Forgotten: []string{"a1", "o1"}, Summary: &summary, SummaryOffset: &offset},
		tu.Request("q1"),
		ir.Other{Meta: ir.Meta{ID: "x1", Timestamp: tu.Epoch}, OtherKind: "agent_state"},
	}

	n, err := s.Append(ctx, "s1", events...)
	require.NoError(t, err)
	assert.Equal(t, len(events), n)

	log, err := s.ReadLog(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, events, log.Events())
}

func TestAppend_CanonicalizesArguments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := tu.Action("a1", "c1", "r1")
	a.Arguments = json.RawMessage(`{ "b": 2, "a": "<x>" }`)

	_, err := s.Append(ctx, "s1", a)
	require.NoError(t, err)

	log, err := s.ReadLog(ctx, "s1")
	require.NoError(t, err)
	got := log.At(0).(ir.Action)
	assert.JSONEq(t, `{"a":"<x>","b":2}`, string(got.Arguments))
	assert.Equal(t, `{"a":"<x>","b":2}`, string(got.Arguments))
}

func TestAppend_RejectsInvalidArguments(t *testing.T) {
	s := createTestStore(t)

	a := tu.Action("a1", "c1", "r1")
	a.Arguments = json.RawMessage(`{"a":`)

	_, err := s.Append(context.Background(), "s1", tu.Message("m1", "first"), a)
	require.Error(t, err)

	// The whole batch rolls back.
	count, err := s.CountEvents(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAppend_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "s1", tu.Message("m1", "a"), tu.Message("m2", "b"))
	require.NoError(t, err)

	n, err := s.Append(ctx, "s1", tu.Message("m2", "b"), tu.Message("m3", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	log, err := s.ReadLog(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ir.IDs(log.Events()))

	var maxSeq int
	require.NoError(t, s.db.QueryRow("SELECT MAX(seq) FROM events WHERE session_id = 's1'").Scan(&maxSeq))
	assert.Equal(t, 3, maxSeq, "skipped duplicates must not consume a seq")
}

func TestAppend_SessionsAreIndependent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "s1", tu.Message("m1", "a"))
	require.NoError(t, err)
	_, err = s.Append(ctx, "s2", tu.Message("m1", "same id, other session"))
	require.NoError(t, err)

	log1, err := s.ReadLog(ctx, "s1")
	require.NoError(t, err)
	log2, err := s.ReadLog(ctx, "s2")
	require.NoError(t, err)

	assert.Equal(t, "a", log1.At(0).(ir.Message).Content)
	assert.Equal(t, "same id, other session", log2.At(0).(ir.Message).Content)
}

func TestAppend_RequiresSession(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Append(context.Background(), "", tu.Message("m1", "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session id is required")
}

func TestAppend_OrderPreservedAcrossCalls(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// IDs deliberately sort opposite to append order.
	for _, id := range []string{"z", "y", "x"} {
		_, err := s.Append(ctx, "s1", tu.Message(id, id))
		require.NoError(t, err)
	}

	log, err := s.ReadLog(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, ir.IDs(log.Events()))
}

// =============================================================================
// Reads
// =============================================================================

func TestReadLog_UnknownSessionIsEmpty(t *testing.T) {
	s := createTestStore(t)

	wires, err := s.ReadWire(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, wires)
	assert.Empty(t, wires)

	log, err := s.ReadLog(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())
}

func TestListSessions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)

	_, err = s.Append(ctx, "beta", tu.Message("m1", "a"), tu.Message("m2", "b"))
	require.NoError(t, err)
	_, err = s.Append(ctx, "alpha", tu.Message("m1", "a"))
	require.NoError(t, err)

	sessions, err = s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "alpha", sessions[0].ID)
	assert.Equal(t, 1, sessions[0].EventCount)
	assert.Equal(t, int64(1), sessions[0].LastSeq)

	assert.Equal(t, "beta", sessions[1].ID)
	assert.Equal(t, 2, sessions[1].EventCount)
	assert.Equal(t, int64(2), sessions[1].LastSeq)
	assert.Equal(t, tu.Epoch, sessions[1].CreatedAt)
}

func TestCountEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n, err := s.CountEvents(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.Append(ctx, "s1", tu.Message("m1", "a"), tu.Action("a1", "c1", "r1"))
	require.NoError(t, err)

	n, err = s.CountEvents(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMarshalPayload_NoHTMLEscape(t *testing.T) {
	payload, err := marshalPayload(tu.Message("m1", "<b>&</b>"))
	require.NoError(t, err)
	assert.Contains(t, payload, `"content":"<b>&</b>"`)
}
