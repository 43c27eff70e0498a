package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/bulk-mapper/pkg/sink"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("X_User_Key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var inputs []string
		_ = json.NewDecoder(r.Body).Decode(&inputs)
		out := make([]map[string]any, len(inputs))
		for i, in := range inputs {
			out[i] = map[string]any{"Original Input": in, "Company Name": strings.ToUpper(in)}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("ADG_API_KEY", "")
	t.Setenv("ADG_API_URL", "")
	t.Setenv("ADG_JOURNAL", "")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunCommand_WritesOutputAndResumes(t *testing.T) {
	srv := fakeAPI(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "domains.txt")
	output := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(input, []byte("abc.com\nyahoo.com\n"), 0o600))

	stdout, _, err := execute(t, "run", input, "-e", "domain", "-k", "good", "--base-url", srv.URL, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 rows succeeded, 0 rows failed, 0 skipped")

	existing, err := sink.LoadExisting(output)
	require.NoError(t, err)
	assert.Equal(t, 2, existing.Rows)

	stdout, _, err = execute(t, "run", input, "-e", "domain", "-k", "good", "--base-url", srv.URL, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 rows succeeded, 0 rows failed, 2 skipped")
}

func TestRunCommand_Unauthorized(t *testing.T) {
	srv := fakeAPI(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "domains.txt")
	require.NoError(t, os.WriteFile(input, []byte("abc.com\n"), 0o600))

	_, _, err := execute(t, "run", input, "-e", "domain", "-k", "bad", "--base-url", srv.URL, "-o", filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestRunCommand_RejectsOutdatedEndpoint(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(input, []byte("x\n"), 0o600))

	_, _, err := execute(t, "run", input, "-e", "domains", "-k", "good")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outdated")
}

func TestRunCommand_MissingInput(t *testing.T) {
	_, _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.txt"), "-k", "good")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestRunCommand_JournalAndHistory(t *testing.T) {
	srv := fakeAPI(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "domains.txt")
	journal := filepath.Join(dir, "runs.db")
	require.NoError(t, os.WriteFile(input, []byte("abc.com\n"), 0o600))

	_, _, err := execute(t, "run", input, "-k", "good", "--base-url", srv.URL, "-o", filepath.Join(dir, "out.csv"), "--journal", journal)
	require.NoError(t, err)

	stdout, _, err := execute(t, "history", "--journal", journal)
	require.NoError(t, err)
	assert.Contains(t, stdout, "STATUS")
	assert.Contains(t, stdout, "completed")
	assert.Contains(t, stdout, "domain")

	stdout, _, err = execute(t, "history", "--journal", journal, "--stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ENDPOINT")
}

func TestHistoryCommand_RequiresJournal(t *testing.T) {
	_, _, err := execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no journal configured")
}

func TestQueryCommand_PrintsRecord(t *testing.T) {
	srv := fakeAPI(t)

	stdout, _, err := execute(t, "query", "acme.com", "-k", "good", "--base-url", srv.URL)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	assert.Equal(t, "ACME.COM", rec["Company Name"])
}

func TestConfigFileIsApplied(t *testing.T) {
	srv := fakeAPI(t)
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bulkmapper.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("key: good\nbase_url: "+srv.URL+"\nendpoint: merchant\n"), 0o600))

	stdout, _, err := execute(t, "query", "AMZN Mktp", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stdout, "AMZN MKTP")
}

func TestPickSchedule(t *testing.T) {
	s, err := pickSchedule("", 0)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = pickSchedule("@hourly", 0)
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = pickSchedule("", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = pickSchedule("@hourly", time.Minute)
	assert.Error(t, err)

	_, err = pickSchedule("bogus", 0)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = parseLevel("loud")
	assert.Error(t, err)
}
