package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flatfile/internal/flatfile"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	dflags = decodeFlags{}
	opts = Options{}

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--env-file", t.TempDir() + "/none.env", "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDecode_Stdin(t *testing.T) {
	input := "name,email,age,joinDate\n" +
		"Ada,ada@example.com,36,2021-03-04\n" +
		"Bob,bob@example.com,41,not-a-date\n"

	stdout, stderr, err := execute(t, input, "decode", "people")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"name":"Ada"`)
	assert.Contains(t, stderr, "line 3:")
	assert.Contains(t, stderr, "not-a-date")
}

func TestDecode_FailOnUnresolvable(t *testing.T) {
	_, _, err := execute(t, "name,email,age,joinDate\nBob,b,1,nope\n", "decode", "people", "--fail-on-unresolvable")
	assert.ErrorContains(t, err, "1 unresolvable lines")
}

func TestDecode_UnknownFormat(t *testing.T) {
	_, _, err := execute(t, "", "decode", "nope")
	assert.ErrorContains(t, err, `unknown format "nope"`)
}

func TestFormats_JSON(t *testing.T) {
	stdout, _, err := execute(t, "", "formats", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"key": "cards_fixed"`)
	assert.Contains(t, stdout, `"key": "people"`)
}

func TestLineWriter_StopsOnWriteError(t *testing.T) {
	w := newLineWriter(failingWriter{}, &bytes.Buffer{})
	assert.False(t, w.HandleRecord(map[string]int{"a": 1}))
	assert.False(t, w.HandleUnresolved(&flatfile.RowError{Line: 1, Err: flatfile.ErrMissingToken}))
	assert.Error(t, w.err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }
