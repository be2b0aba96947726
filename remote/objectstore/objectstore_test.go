package objectstore_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/nostrsync/ngit/remote/objectstore"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "--quiet", "-b", "master")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "a.txt")
	run("commit", "--quiet", "-m", "initial")
	return dir
}

func TestGetTipAndCommitExists(t *testing.T) {
	dir := initRepo(t)
	s, err := objectstore.Open("git", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tip, err := s.GetTip("refs/heads/master")
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if !s.CommitExists(tip) {
		t.Fatalf("CommitExists(%q) = false, want true", tip)
	}
	if s.CommitExists("0000000000000000000000000000000000000000") {
		t.Fatal("CommitExists should be false for a missing oid")
	}
}

func TestListRemoteKeepsHeadSymref(t *testing.T) {
	dir := initRepo(t)
	s, err := objectstore.Open("git", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	refs, err := s.ListRemote(dir)
	if err != nil {
		t.Fatalf("ListRemote: %v", err)
	}
	if got := refs["HEAD"]; got != "ref: refs/heads/master" {
		t.Fatalf("HEAD = %q, want the symref target, not a resolved oid", got)
	}
	tip, ok := refs["refs/heads/master"]
	if !ok || len(tip) != 40 {
		t.Fatalf("refs/heads/master = %q, want a 40-hex oid", tip)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	dir := initRepo(t)
	s, err := objectstore.Open("git", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveConfig("nostr.transport-pref", "ssh"); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if got := s.LoadConfig("nostr.transport-pref"); got != "ssh" {
		t.Fatalf("LoadConfig = %q, want ssh", got)
	}
	if got := s.LoadConfig("nostr.unset-key"); got != "" {
		t.Fatalf("LoadConfig for unset key = %q, want empty", got)
	}
}
