package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunWithNoArgsPrintsUsage(t *testing.T) {
	var stderr bytes.Buffer
	code := run(nil, &stderr)
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "usage: plc") {
		t.Errorf("stderr missing usage text, got %q", stderr.String())
	}
}

func TestRunWithUnknownCommandFails(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{"frobnicate"}, &stderr)
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), `unknown command "frobnicate"`) {
		t.Errorf("stderr missing unknown-command message, got %q", stderr.String())
	}
}

func TestRunWithFailingCommandPrintsErrorPrefix(t *testing.T) {
	var stderr bytes.Buffer
	// compile with no -program flag has nothing to read; Run must return
	// a non-nil error, which run() reports as "Error: ...".
	code := run([]string{"compile"}, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr missing Error: prefix, got %q", stderr.String())
	}
}
