package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns what it wrote to
// stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func dbPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "condense.db")
}

// seed ingests wire events, one JSON object per line, into session.
func seed(t *testing.T, db, session string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644))
	out, err := execute(t, "--db", db, "ingest", session, path)
	require.NoError(t, err)
	return out
}

const (
	evAction      = `{"kind":"action","id":"a1","call_id":"c1","response_id":"r1","tool_name":"shell"}`
	evObservation = `{"kind":"observation","id":"o1","call_id":"c1","action_id":"a1","content":"ok"}`
	evDuplicate   = `{"kind":"observation","id":"o2","call_id":"c1","action_id":"a1","content":"again"}`
	evMessage     = `{"kind":"message","id":"m1","role":"user","content":"hello"}`
)

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// =============================================================================
// ingest / sessions
// =============================================================================

func TestIngest(t *testing.T) {
	db := dbPath(t)

	out := seed(t, db, "s1", evAction, evObservation)
	assert.Contains(t, out, "Appended 2 of 2 event(s) to s1")

	// Second ingest of the same events is a no-op.
	out = seed(t, db, "s1", evAction, evObservation)
	assert.Contains(t, out, "Appended 0 of 2 event(s) to s1")
}

func TestIngest_ReportsLiveViolations(t *testing.T) {
	out := seed(t, dbPath(t), "s1", evAction, evMessage)
	assert.Contains(t, out, "interleaved_message")
}

func TestIngest_JSON(t *testing.T) {
	db := dbPath(t)
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(evAction+"\n"+evObservation), 0644))

	out, err := execute(t, "--db", db, "--format", "json", "ingest", "s1", path)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	var result IngestResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.Equal(t, 2, result.Read)
	assert.Equal(t, 2, result.Appended)
	assert.Empty(t, result.Violations)
}

func TestIngest_BadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"kind":"action","id":"a1"}`), 0644))

	_, err := execute(t, "--db", dbPath(t), "ingest", "s1", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "call_id is required")
}

func TestIngest_MissingFile(t *testing.T) {
	_, err := execute(t, "--db", dbPath(t), "ingest", "s1", "/nonexistent/events.jsonl")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSessions(t *testing.T) {
	db := dbPath(t)

	out, err := execute(t, "--db", db, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found.")

	seed(t, db, "s1", evMessage)
	out, err = execute(t, "--db", db, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "1 event(s)")
}

// =============================================================================
// validate / repair / monitor
// =============================================================================

func TestValidate_Clean(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evAction, evObservation)

	out, err := execute(t, "--db", db, "validate", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ s1: 2 event(s), no violations")
}

func TestValidate_OrphanAction(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evAction)

	out, err := execute(t, "--db", db, "validate", "s1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_VIOLATIONS]: 1 violation(s) in s1")
}

func TestValidate_JSON(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evAction)

	out, err := execute(t, "--db", db, "--format", "json", "validate", "s1")
	require.Error(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeViolations, resp.Error.Code)
}

func TestRepair_DryRunThenRepair(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evAction)

	out, err := execute(t, "--db", db, "repair", "--dry-run", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Would repair 1 call(s) in s1")

	// Dry run wrote nothing.
	_, err = execute(t, "--db", db, "validate", "s1")
	require.Error(t, err)

	out, err = execute(t, "--db", db, "repair", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Repaired 1 call(s) in s1")
	assert.Contains(t, out, "+ c1 -> repair-")

	_, err = execute(t, "--db", db, "validate", "s1")
	require.NoError(t, err)

	out, err = execute(t, "--db", db, "repair", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to repair")
}

func TestRepair_Unrepairable(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evAction, evObservation, evDuplicate)

	out, err := execute(t, "--db", db, "repair", "s1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_UNREPAIRED")
}

func TestRepair_UsesConfiguredMessage(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evAction)
	cfg := filepath.Join(t.TempDir(), "condense.cue")
	require.NoError(t, os.WriteFile(cfg, []byte(`repair: message: "tool went away"`), 0644))

	out, err := execute(t, "--db", db, "--config", cfg, "--format", "json", "repair", "--dry-run", "s1")
	require.NoError(t, err)

	var result RepairResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &result))
	require.Len(t, result.Repairs, 1)
	assert.Equal(t, "tool went away", result.Repairs[0].Content)
	assert.True(t, result.DryRun)
}

func TestMonitor(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "clean", evAction, evObservation)
	seed(t, db, "noisy", evAction, evMessage)

	out, err := execute(t, "--db", db, "monitor", "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ clean: 2 event(s), 1 call(s) completed, 0 pending")

	out, err = execute(t, "--db", db, "--format", "json", "monitor", "noisy")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "1 compliance violation(s)")
}

func TestBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "condense.cue")
	require.NoError(t, os.WriteFile(cfg, []byte(`view: max_iterations: 0`), 0644))

	_, err := execute(t, "--db", dbPath(t), "--config", cfg, "sessions")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

// =============================================================================
// view / compact
// =============================================================================

func TestView(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evMessage, evAction, evObservation)

	out, err := execute(t, "--db", db, "view", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "View of s1: 3 event(s), boundaries {0,1,3}")
	assert.Contains(t, out, "a1")
}

func TestView_JSON(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evAction, evObservation)

	out, err := execute(t, "--db", db, "--format", "json", "view", "s1")
	require.NoError(t, err)

	var result ViewResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &result))
	assert.Equal(t, []int{0, 2}, result.Boundaries)
	assert.True(t, result.Converged)
	require.Len(t, result.Events, 2)
	assert.Equal(t, "a1", result.Events[0].ID)
}

func TestView_OpenAI(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evMessage, evAction, evObservation)

	out, err := execute(t, "--db", db, "view", "--openai", "s1")
	require.NoError(t, err)

	var messages []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &messages))
	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[0]["role"])
	assert.Equal(t, "assistant", messages[1]["role"])
	assert.Equal(t, "tool", messages[2]["role"])
	assert.Equal(t, "c1", messages[2]["tool_call_id"])
}

func TestView_CorruptLog(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1", evAction)

	out, err := execute(t, "--db", db, "view", "s1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_CORRUPT_LOG")
}

func TestCompact(t *testing.T) {
	db := dbPath(t)
	seed(t, db, "s1",
		`{"kind":"message","id":"m1","content":"one"}`,
		`{"kind":"message","id":"m2","content":"two"}`,
		`{"kind":"message","id":"m3","content":"three"}`,
		`{"kind":"message","id":"m4","content":"four"}`,
	)

	out, err := execute(t, "--db", db, "compact", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "s1: nothing to compact")

	out, err = execute(t, "--db", db, "compact", "--force", "--summary", "said two", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "forgot 1 event(s)")
	assert.Contains(t, out, "summary at position 1")

	out, err = execute(t, "--db", db, "--format", "json", "view", "s1")
	require.NoError(t, err)
	var result ViewResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &result))
	require.Len(t, result.Events, 4)
	assert.Equal(t, "m1", result.Events[0].ID)
	assert.Equal(t, "summary", string(result.Events[1].Kind))
	assert.Equal(t, "said two", result.Events[1].Content)
	assert.Equal(t, "m3", result.Events[2].ID)
	assert.False(t, result.UnresolvedRequest)
}

// =============================================================================
// export / import
// =============================================================================

func TestExportImport(t *testing.T) {
	src := dbPath(t)
	seed(t, src, "s1", evAction, evObservation)
	file := filepath.Join(t.TempDir(), "s1.cnds")

	out, err := execute(t, "--db", src, "--format", "json", "export", "s1", "-o", file)
	require.NoError(t, err)
	var exported SnapshotResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &exported))
	assert.Equal(t, 2, exported.Events)
	assert.Len(t, exported.Digest, 64)

	dst := dbPath(t)
	out, err = execute(t, "--db", dst, "import", "--session", "copy", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 2 event(s) into copy")

	out, err = execute(t, "--db", dst, "import", "--session", "copy", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 of 2 event(s) into copy")

	// The same log always exports to the same bytes.
	again := filepath.Join(t.TempDir(), "again.cnds")
	out, err = execute(t, "--db", src, "--format", "json", "export", "s1", "-o", again)
	require.NoError(t, err)
	var second SnapshotResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &second))
	assert.Equal(t, exported.Digest, second.Digest)
}

func TestExport_EmptySession(t *testing.T) {
	_, err := execute(t, "--db", dbPath(t), "export", "nope", "-o", filepath.Join(t.TempDir(), "x.cnds"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestImport_NotASnapshot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bogus.cnds")
	require.NoError(t, os.WriteFile(file, []byte("definitely not a snapshot"), 0644))

	_, err := execute(t, "--db", dbPath(t), "import", file)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid snapshot")
}
