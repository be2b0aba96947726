// Package objectstore is the local git-object boundary used by the
// resolver, proposal materializer, and publisher. Tip and commit
// lookups go through go-git; everything else shells out to the git
// binary.
package objectstore

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"
)

// ErrRefNotFound is returned by GetTip when the ref does not exist.
var ErrRefNotFound = errors.New("reference not found")

// Store wraps a local git repository, exposing the narrow set of
// plumbing operations the remote helper needs: tip lookup, ancestry
// checks, config persistence, and patch application. GetTip and
// CommitExists read through *gogit.Repository; ancestry, listing,
// push/fetch (and so pack negotiation), config and patch application
// are shelled out to the git binary.
type Store struct {
	gitBinPath string
	repoPath   string
	repo       *gogit.Repository
}

// Open opens the repository at repoPath (must already exist, e.g.
// because git already initialized it before invoking the remote
// helper).
func Open(gitBinPath, repoPath string) (*Store, error) {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open repository")
	}
	return &Store{gitBinPath: gitBinPath, repoPath: repoPath, repo: repo}, nil
}

func (s *Store) execGit(args ...string) ([]byte, error) {
	cmd := exec.Command(s.gitBinPath, args...)
	cmd.Dir = s.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, errors.Wrap(err, fmt.Sprintf("exec error: cmd=%s, output=%s", cmd.String(), string(out)))
	}
	return out, nil
}

// GetTip returns the oid a local ref currently points to.
func (s *Store) GetTip(refname string) (string, error) {
	ref, err := s.repo.Reference(plumbing.ReferenceName(refname), true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return "", ErrRefNotFound
		}
		return "", errors.Wrap(err, "failed to resolve ref")
	}
	return ref.Hash().String(), nil
}

// CommitExists reports whether oid names an object present in the
// local object database.
func (s *Store) CommitExists(oid string) bool {
	_, err := s.repo.CommitObject(plumbing.NewHash(oid))
	return err == nil
}

// CommitsAheadBehind returns how many commits `local` has that
// `remote` lacks (ahead) and vice versa (behind), using merge-base
// distance. Grounded on LiteGit.NumCommits / IsAncestor.
func (s *Store) CommitsAheadBehind(local, remote string) (ahead, behind int, err error) {
	ahead, err = s.revListCount(remote + ".." + local)
	if err != nil {
		return 0, 0, err
	}
	behind, err = s.revListCount(local + ".." + remote)
	if err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

func (s *Store) revListCount(rangeExpr string) (int, error) {
	out, err := s.execGit("rev-list", "--count", rangeExpr)
	if err != nil {
		if strings.Contains(string(out), "unknown revision") {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(out)))
}

// IsAncestor reports whether commitA is an ancestor of commitB.
func (s *Store) IsAncestor(commitA, commitB string) (bool, error) {
	cmd := exec.Command(s.gitBinPath, "merge-base", "--is-ancestor", commitA, commitB)
	cmd.Dir = s.repoPath
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		return false, nil
	}
	return false, err
}

// RefUpdate sets refname to point at oid, creating it if necessary.
func (s *Store) RefUpdate(refname, oid string) error {
	_, err := s.execGit("update-ref", refname, oid)
	return errors.Wrap(err, "reference update failed")
}

// RefDelete removes a local ref.
func (s *Store) RefDelete(refname string) error {
	_, err := s.execGit("update-ref", "-d", refname)
	return errors.Wrap(err, "reference delete failed")
}

// PatchAuthor carries the author identity recorded on a single mbox
// patch. `git am` always stamps the committer as whoever ran it, which
// changes the commit's oid from the one recorded when the patch was
// created; ApplyPatchChain resets the committer back to the author
// after each apply so the replayed chain reproduces the original oids.
type PatchAuthor struct {
	Name          string
	Email         string
	TimestampUnix int64
	OffsetMinutes int
}

// ApplyPatchChain applies a sequence of mbox-formatted patches in
// order against the current HEAD of the working tree, returning the
// resulting tip oid. authors must be parallel to patches; a missing
// entry (empty Name/Email) leaves that commit's committer as `git am`
// set it. Used by the Proposal Materializer to replay a patch-based
// proposal into a real commit chain.
func (s *Store) ApplyPatchChain(branch string, patches [][]byte, authors []PatchAuthor) (string, error) {
	if _, err := s.execGit("checkout", "-B", branch); err != nil {
		return "", errors.Wrap(err, "failed to checkout proposal branch")
	}
	for i, patch := range patches {
		cmd := exec.Command(s.gitBinPath, "am", "--quiet", "--3way")
		cmd.Dir = s.repoPath
		cmd.Stdin = bytes.NewReader(patch)
		out, err := cmd.CombinedOutput()
		if err != nil {
			exec.Command(s.gitBinPath, "am", "--abort").Run()
			return "", errors.Wrapf(err, "failed to apply patch %d/%d: %s", i+1, len(patches), string(out))
		}
		if i < len(authors) && authors[i].Name != "" && authors[i].Email != "" {
			if err := s.resetCommitterToAuthor(authors[i]); err != nil {
				return "", errors.Wrapf(err, "failed to restore committer identity for patch %d/%d", i+1, len(patches))
			}
		}
	}
	return s.GetTip("refs/heads/" + branch)
}

// resetCommitterToAuthor amends HEAD so its committer identity and
// timestamp match the given author, without touching tree, message, or
// parents. Mirrors what commit amending does when no committer tag is
// present on a patch: committer is assumed identical to author.
func (s *Store) resetCommitterToAuthor(a PatchAuthor) error {
	cmd := exec.Command(s.gitBinPath, "commit", "--amend", "--no-edit", "--no-verify")
	cmd.Dir = s.repoPath
	cmd.Env = append(os.Environ(),
		"GIT_COMMITTER_NAME="+a.Name,
		"GIT_COMMITTER_EMAIL="+a.Email,
		"GIT_COMMITTER_DATE="+fmt.Sprintf("@%d %s", a.TimestampUnix, formatTZOffset(a.OffsetMinutes)),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "git commit --amend: %s", string(out))
	}
	return nil
}

// formatTZOffset renders a minutes-east-of-UTC offset as git's
// "+HHMM"/"-HHMM" timezone suffix.
func formatTZOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d%02d", sign, minutes/60, minutes%60)
}

// RootCommit returns the earliest-unique-commit oid reachable from
// HEAD, via `git rev-list --max-parents=0`. Used by `ngit init` to tag
// a RepoAnnouncement with the repository's identity commit.
func (s *Store) RootCommit() (string, error) {
	out, err := s.execGit("rev-list", "--max-parents=0", "HEAD")
	if err != nil {
		return "", errors.Wrap(err, "rev-list --max-parents=0 failed")
	}
	lines := strings.Fields(strings.TrimSpace(string(out)))
	if len(lines) == 0 {
		return "", errors.New("repository has no commits")
	}
	return lines[len(lines)-1], nil
}

// ListLocalRefs lists the repository's own heads and tags, via `git
// for-each-ref`. Used by `ngit init` to seed an initial RepoState event
// from whatever the repository already contains.
func (s *Store) ListLocalRefs() (map[string]string, error) {
	out, err := s.execGit("for-each-ref", "--format=%(objectname) %(refname)", "refs/heads", "refs/tags")
	if err != nil {
		return nil, errors.Wrap(err, "for-each-ref failed")
	}
	refs := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		refs[fields[1]] = fields[0]
	}
	return refs, nil
}

// ListRemote lists refs advertised by a transport-level remote URL,
// via `git ls-remote --symref`. Used by the Transport Multiplexer's
// list phase for mirrors. A symbolic ref (typically HEAD) is returned
// as a "ref: refs/..." value rather than the oid it currently resolves
// to, so callers can advertise it as a symref and a clone against the
// listing sets up its default branch.
func (s *Store) ListRemote(url string) (map[string]string, error) {
	out, err := s.execGit("ls-remote", "--symref", url)
	if err != nil {
		return nil, errors.Wrap(err, "ls-remote failed")
	}
	refs := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 3 && fields[0] == "ref:" {
			refs[fields[2]] = "ref: " + fields[1]
			continue
		}
		if len(fields) != 2 {
			continue
		}
		if _, symref := refs[fields[1]]; symref {
			continue // keep the symref row over the resolved oid row
		}
		refs[fields[1]] = fields[0]
	}
	return refs, nil
}

// PushRemote pushes a refspec to a transport-level remote URL via
// `git push`. force controls whether "+" is prepended to the refspec.
func (s *Store) PushRemote(url, refspec string, force bool) error {
	if force && !strings.HasPrefix(refspec, "+") {
		refspec = "+" + refspec
	}
	out, err := s.execGit("push", url, refspec)
	if err != nil {
		return errors.Wrapf(err, "push failed: %s", string(out))
	}
	return nil
}

// Bundle writes a git bundle containing ref to destPath, via `git
// bundle create`. Used by the ftp transport, which has no native git
// protocol support and instead ships a bundle file.
func (s *Store) Bundle(destPath, ref string) error {
	_, err := s.execGit("bundle", "create", destPath, ref)
	return errors.Wrap(err, "bundle create failed")
}

// FetchRemote fetches refs from a transport-level remote URL.
func (s *Store) FetchRemote(url string, refspecs ...string) error {
	args := append([]string{"fetch", url}, refspecs...)
	out, err := s.execGit(args...)
	if err != nil {
		return errors.Wrapf(err, "fetch failed: %s", string(out))
	}
	return nil
}

// SaveConfig persists a value under the repository's local git config,
// at section.subsection.key, used to remember resolved state such as
// the transport preference learned by the Transport Multiplexer.
func (s *Store) SaveConfig(key, value string) error {
	_, err := s.execGit("config", "--local", key, value)
	return errors.Wrap(err, "failed to save config")
}

// LoadConfig returns a previously saved config value, or "" if unset.
func (s *Store) LoadConfig(key string) string {
	out, err := s.execGit("config", "--local", "--get", key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// GitDir returns the repository's .git directory, for callers (e.g.
// the ngit CLI's event cache) that need to locate ancillary state files.
func (s *Store) GitDir() string {
	out, err := s.execGit("rev-parse", "--absolute-git-dir")
	if err != nil {
		return s.repoPath + "/.git"
	}
	return strings.TrimSpace(string(out))
}

// WriteFile persists auxiliary state (e.g. the last known ref-state
// event id) alongside the repository, under .git/nostr/.
func WriteFile(repoPath, relPath string, data []byte) error {
	full := repoPath + "/.git/nostr/" + relPath
	if err := os.MkdirAll(dirOf(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func dirOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
