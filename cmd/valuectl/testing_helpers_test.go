package main

import (
	"bytes"
	"testing"
)

// runCmd executes a fresh command tree with args and returns what it wrote to
// stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCmdStreams(t, args...)
	return out, err
}

// runCmdStreams is runCmd that also returns stderr.
func runCmdStreams(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
