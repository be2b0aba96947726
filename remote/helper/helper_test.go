package helper

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/nostrsync/ngit/remote/refstate"
	"github.com/nostrsync/ngit/remote/resolver"
)

func newTestLoop(input string) (*Loop, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errout := &bytes.Buffer{}
	l := &Loop{
		In:       bufio.NewReader(strings.NewReader(input)),
		Out:      out,
		Errout:   errout,
		Resolved: &resolver.ResolvedRepo{Identifier: "my-repo"},
	}
	return l, out, errout
}

func TestCapabilities(t *testing.T) {
	l, out, _ := newTestLoop("capabilities\n")
	l.Run(context.Background())
	if got := out.String(); got != "option\npush\nfetch\n\n" {
		t.Fatalf("capabilities output = %q", got)
	}
}

func TestOptionVerbosity(t *testing.T) {
	l, out, _ := newTestLoop("option verbosity 1\n")
	l.Run(context.Background())
	if got := out.String(); got != "ok\n" {
		t.Fatalf("option output = %q", got)
	}
}

func TestOptionUnsupported(t *testing.T) {
	l, out, _ := newTestLoop("option some-unknown-flag\n")
	l.Run(context.Background())
	if got := out.String(); got != "unsupported\n" {
		t.Fatalf("option output = %q", got)
	}
}

func TestListWithNoStateAndNoMirrorsIsEmpty(t *testing.T) {
	l, out, _ := newTestLoop("list\n")
	l.Run(context.Background())
	if got := out.String(); got != "\n" {
		t.Fatalf("list output = %q, want a lone blank line", got)
	}
}

func withState(t *testing.T, l *Loop) {
	t.Helper()
	state, err := refstate.New(map[string]string{
		"HEAD":            "ref: refs/heads/main",
		"refs/heads/main": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	})
	if err != nil {
		t.Fatalf("refstate.New: %v", err)
	}
	l.Resolved.AuthoritativeState = state
}

func TestListEmitsSymrefLine(t *testing.T) {
	l, out, _ := newTestLoop("list\n")
	withState(t, l)
	l.Run(context.Background())
	got := out.String()
	if !strings.Contains(got, "@refs/heads/main HEAD\n") {
		t.Fatalf("list output %q is missing the HEAD symref line", got)
	}
	if !strings.Contains(got, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa refs/heads/main\n") {
		t.Fatalf("list output %q is missing refs/heads/main", got)
	}
}

func TestListForPushSuppressesSymrefs(t *testing.T) {
	l, out, _ := newTestLoop("list for-push\n")
	withState(t, l)
	l.Run(context.Background())
	got := out.String()
	if strings.Contains(got, "@") {
		t.Fatalf("list for-push output %q must not advertise symrefs", got)
	}
	if !strings.Contains(got, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa refs/heads/main\n") {
		t.Fatalf("list for-push output %q is missing refs/heads/main", got)
	}
}

func TestUnknownCommandIsFatal(t *testing.T) {
	l, _, errout := newTestLoop("bogus command\n")
	code := l.Run(context.Background())
	if code == 0 {
		t.Fatal("expected non-zero exit for unknown command")
	}
	if !strings.HasPrefix(errout.String(), "Error:") {
		t.Fatalf("expected Error: prefix, got %q", errout.String())
	}
}
