package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsRequiresArguments(t *testing.T) {
	_, err := parseFlags([]string{"-cmd", "create"}, io.Discard)
	assert.ErrorContains(t, err, "-name")

	_, err = parseFlags([]string{"-cmd", "version"}, io.Discard)
	assert.ErrorContains(t, err, "-version")

	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "up", o.cmd)
}

func TestRunCreateThenValidate(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"-cmd", "create", "-dir", dir, "-name", "Add Top-up Limit"}, &out, io.Discard))
	assert.True(t, strings.HasPrefix(out.String(), "created "))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_add_top_up_limit.sql"))

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-cmd", "validate", "-dir", dir}, &out, io.Discard))
	assert.Equal(t, "1 migrations valid\n", out.String())
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"-cmd", "redo", "-dir", filepath.Join(t.TempDir(), "x")}, io.Discard, io.Discard)
	assert.ErrorContains(t, err, "redo")
}
