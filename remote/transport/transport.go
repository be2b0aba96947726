// Package transport multiplexes git traffic to a mirror across
// candidate transports: for each endpoint it tries transports in a
// per-direction order, falling back on authentication or transport
// failure and
// persisting the winning preference in git config. Git-native
// transports (ssh/https/http/unauth variants/filesystem) delegate to
// the object store, which shells out to the git binary; the binary
// understands those URL schemes uniformly. FTP has no native git
// support, so it ships a git bundle file over github.com/jlaffaye/ftp
// instead.
package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/nostrsync/ngit/remote/objectstore"
	"github.com/pkg/errors"
)

// Transport identifies one way of reaching a mirror. A tagged value
// plus a format function replaces a polymorphic transport hierarchy.
type Transport int

const (
	Ssh Transport = iota
	Https
	UnauthHttps
	Http
	UnauthHttp
	Ftp
	Filesystem
)

func (t Transport) String() string {
	switch t {
	case Ssh:
		return "ssh"
	case Https:
		return "https"
	case UnauthHttps:
		return "unauth-https"
	case Http:
		return "http"
	case UnauthHttp:
		return "unauth-http"
	case Ftp:
		return "ftp"
	case Filesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

func parseTransportName(name string) (Transport, bool) {
	switch name {
	case "ssh":
		return Ssh, true
	case "https":
		return Https, true
	case "unauth-https":
		return UnauthHttps, true
	case "http":
		return Http, true
	case "unauth-http":
		return UnauthHttp, true
	case "ftp":
		return Ftp, true
	case "filesystem":
		return Filesystem, true
	default:
		return 0, false
	}
}

// Direction distinguishes a read (list/fetch) attempt from a write
// (push) attempt, since the ordering table differs by direction.
type Direction int

const (
	Read Direction = iota
	Write
)

// MirrorScheme is the native scheme of a mirror URL, used to pick the
// ordering table row.
type MirrorScheme int

const (
	SchemeHTTPS MirrorScheme = iota
	SchemeHTTP
	SchemeFTP
	SchemeFilesystem
)

// On reads, anonymous HTTP goes first (cheapest, needs no
// credentials); on writes, SSH goes first (most consistent credential
// story) with HTTPS as fallback.
var readOrder = map[MirrorScheme][]Transport{
	SchemeHTTPS:      {UnauthHttps, Ssh, Https},
	SchemeHTTP:       {UnauthHttp, Ssh, Http},
	SchemeFTP:        {Ftp, Ssh},
	SchemeFilesystem: {Filesystem},
}

var writeOrder = map[MirrorScheme][]Transport{
	SchemeHTTPS:      {Ssh, Https},
	SchemeHTTP:       {Ssh, Http},
	SchemeFTP:        {Ssh, Ftp},
	SchemeFilesystem: {Filesystem},
}

// AttemptError classifies a failed transport attempt as an auth
// failure or a plain transport failure. Both trigger fallback; the
// distinction is kept for the error report.
type AttemptError struct {
	Transport Transport
	Auth      bool // true => AuthFailure, false => TransportFailure
	Err       error
}

func (e *AttemptError) Error() string {
	kind := "TransportFailure"
	if e.Auth {
		kind = "AuthFailure"
	}
	return fmt.Sprintf("%s over %s: %v", kind, e.Transport, e.Err)
}

var authFailurePatterns = []string{
	"no ssh keys",
	"invalid host-key", "unknown host-key",
	"authentication",
	"Permission", "permission",
	"not found",
}

func classify(t Transport, err error) *AttemptError {
	msg := err.Error()
	for _, p := range authFailurePatterns {
		if strings.Contains(msg, p) {
			return &AttemptError{Transport: t, Auth: true, Err: err}
		}
	}
	return &AttemptError{Transport: t, Auth: false, Err: err}
}

// ErrAllTransportsFailed is returned when every candidate transport in
// the ordered list failed.
var ErrAllTransportsFailed = errors.New("all mirror transports failed")

// Multiplexer drives the per-mirror transport attempt sequence and
// persists the learned preference via the object-store collaborator.
type Multiplexer struct {
	store *objectstore.Store
}

func New(store *objectstore.Store) *Multiplexer {
	return &Multiplexer{store: store}
}

// Result captures the outcome of a multiplex attempt: which transport
// won and every failure that preceded it.
type Result struct {
	Succeeded   Transport
	Attempted   []*AttemptError
	GraspServer bool
}

// configKey returns the git config key the preference is persisted
// under for a given direction.
func configKey(dir Direction) string {
	if dir == Write {
		return "nostr.protocol-push"
	}
	return "nostr.protocol-fetch"
}

// candidateList builds the ordered transport list for a mirror. An
// explicit protocol override collapses the list to that single
// transport with no fallback; a previously learned preference is
// promoted to the front with the rest kept as fallbacks.
func (m *Multiplexer) candidateList(scheme MirrorScheme, dir Direction, mirrorShortName, override string) []Transport {
	if override != "" {
		if t, ok := parseTransportName(override); ok {
			return []Transport{t}
		}
	}

	var base []Transport
	if dir == Write {
		base = append([]Transport{}, writeOrder[scheme]...)
	} else {
		base = append([]Transport{}, readOrder[scheme]...)
	}

	pref := m.learnedPreference(dir, mirrorShortName)
	if pref == nil {
		return base
	}
	ordered := []Transport{*pref}
	for _, t := range base {
		if t != *pref {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

func (m *Multiplexer) learnedPreference(dir Direction, mirrorShortName string) *Transport {
	raw := m.store.LoadConfig(configKey(dir))
	if raw == "" {
		return nil
	}
	for _, entry := range strings.Split(raw, ";") {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[1] != mirrorShortName {
			continue
		}
		if t, ok := parseTransportName(parts[0]); ok {
			return &t
		}
	}
	return nil
}

// recordPreference writes the winning transport to config, but only
// when an earlier candidate failed first; a win at position 0 would
// rewrite unchanged state.
func (m *Multiplexer) recordPreference(dir Direction, mirrorShortName string, won Transport, attemptedBeforeSuccess int) {
	if attemptedBeforeSuccess == 0 {
		return
	}
	key := configKey(dir)
	raw := m.store.LoadConfig(key)
	rebuilt := []string{won.String() + "," + mirrorShortName}
	if raw != "" {
		for _, entry := range strings.Split(raw, ";") {
			parts := strings.SplitN(entry, ",", 2)
			if len(parts) != 2 || parts[1] == mirrorShortName {
				continue
			}
			rebuilt = append(rebuilt, entry)
		}
	}
	_ = m.store.SaveConfig(key, strings.Join(rebuilt, ";"))
}

// MirrorTarget names the endpoint being negotiated with: its base URL,
// native scheme, short name (for preference bookkeeping), grasp
// status, and any per-URL overrides.
type MirrorTarget struct {
	URL         string
	Scheme      MirrorScheme
	ShortName   string
	GraspServer bool
	Override    string // protocol override from the repo URL, "" if unset
}

// List attempts to list remote refs from target, trying candidate
// transports in order.
func (m *Multiplexer) List(ctx context.Context, target MirrorTarget) (map[string]string, *Result, error) {
	candidates := m.candidateList(target.Scheme, Read, target.ShortName, target.Override)
	var attempted []*AttemptError
	for i, t := range candidates {
		url := formatURL(target.URL, t)
		refs, err := m.attemptList(ctx, t, url)
		if err == nil {
			m.recordPreference(Read, target.ShortName, t, i)
			return refs, &Result{Succeeded: t, Attempted: attempted, GraspServer: target.GraspServer}, nil
		}
		attempted = append(attempted, classify(t, err))
	}
	return nil, &Result{Attempted: attempted, GraspServer: target.GraspServer}, ErrAllTransportsFailed
}

// Push attempts to push refspec to target, trying candidate transports
// in order.
func (m *Multiplexer) Push(ctx context.Context, target MirrorTarget, refspec string, force bool) (*Result, error) {
	candidates := m.candidateList(target.Scheme, Write, target.ShortName, target.Override)
	var attempted []*AttemptError
	for i, t := range candidates {
		url := formatURL(target.URL, t)
		err := m.attemptPush(ctx, t, url, refspec, force)
		if err == nil {
			m.recordPreference(Write, target.ShortName, t, i)
			return &Result{Succeeded: t, Attempted: attempted, GraspServer: target.GraspServer}, nil
		}
		attempted = append(attempted, classify(t, err))
	}
	return &Result{Attempted: attempted, GraspServer: target.GraspServer}, ErrAllTransportsFailed
}

// Fetch attempts to fetch the given oids or refspecs from target,
// trying candidate transports in order.
func (m *Multiplexer) Fetch(ctx context.Context, target MirrorTarget, refspecs ...string) (*Result, error) {
	candidates := m.candidateList(target.Scheme, Read, target.ShortName, target.Override)
	var attempted []*AttemptError
	for i, t := range candidates {
		url := formatURL(target.URL, t)
		err := m.attemptFetch(ctx, t, url, refspecs)
		if err == nil {
			m.recordPreference(Read, target.ShortName, t, i)
			return &Result{Succeeded: t, Attempted: attempted, GraspServer: target.GraspServer}, nil
		}
		attempted = append(attempted, classify(t, err))
	}
	return &Result{Attempted: attempted, GraspServer: target.GraspServer}, ErrAllTransportsFailed
}

func (m *Multiplexer) attemptFetch(ctx context.Context, t Transport, url string, refspecs []string) error {
	if t == Ftp {
		return ftpFetchBundle(ctx, m.store, url)
	}
	return m.store.FetchRemote(url, refspecs...)
}

func (m *Multiplexer) attemptList(ctx context.Context, t Transport, url string) (map[string]string, error) {
	if t == Ftp {
		return ftpList(ctx, url)
	}
	return m.store.ListRemote(url)
}

func (m *Multiplexer) attemptPush(ctx context.Context, t Transport, url, refspec string, force bool) error {
	if t == Ftp {
		return ftpPushBundle(ctx, m.store, url, refspec)
	}
	return m.store.PushRemote(url, refspec, force)
}

// formatURL rewrites a mirror's base URL for the given transport. The
// unauth variants reuse the same URL as their authenticated
// counterpart; the distinction is in which credentials git resolves at
// attempt time, not in the URL shape.
func formatURL(base string, t Transport) string {
	return base
}

// ftpList lists the refs advertised in the "<bundle path>.refs"
// sidecar file stored alongside the bundle on the FTP server.
func ftpList(ctx context.Context, url string) (map[string]string, error) {
	host, remotePath, err := splitFTPURL(url)
	if err != nil {
		return nil, err
	}
	conn, err := ftpDial(host)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	resp, err := conn.Retr(remotePath + ".refs")
	if err != nil {
		return nil, errors.Wrap(err, "ftp: failed to retrieve refs sidecar")
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, errors.Wrap(err, "ftp: failed to read refs sidecar")
	}

	refs := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		refs[fields[1]] = fields[0]
	}
	return refs, nil
}

// ftpPushBundle bundles the pushed ref locally via the git binary and
// uploads it (plus a refs sidecar) to the FTP server.
func ftpPushBundle(ctx context.Context, store *objectstore.Store, url, refspec string) error {
	host, remotePath, err := splitFTPURL(url)
	if err != nil {
		return err
	}

	parts := strings.SplitN(strings.TrimPrefix(refspec, "+"), ":", 2)
	if len(parts) != 2 {
		return errors.Errorf("malformed refspec %q", refspec)
	}
	dst := parts[1]

	tmp, err := os.CreateTemp("", "nostr-bundle-*.bundle")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	tmp.Close()

	if err := store.Bundle(tmp.Name(), dst); err != nil {
		return errors.Wrap(err, "failed to create bundle for ftp push")
	}

	conn, err := ftpDial(host)
	if err != nil {
		return err
	}
	defer conn.Quit()

	f, err := os.Open(tmp.Name())
	if err != nil {
		return err
	}
	defer f.Close()

	if err := conn.Stor(remotePath, f); err != nil {
		return errors.Wrap(err, "ftp: failed to store bundle")
	}

	tip, err := store.GetTip(dst)
	if err != nil {
		return err
	}
	sidecar := strings.NewReader(tip + " " + dst + "\n")
	if err := conn.Stor(remotePath+".refs", sidecar); err != nil {
		return errors.Wrap(err, "ftp: failed to store refs sidecar")
	}
	return nil
}

// ftpFetchBundle downloads the bundle file the mirror stores and
// fetches from it as a local bundle path, which the git binary
// understands natively.
func ftpFetchBundle(ctx context.Context, store *objectstore.Store, url string) error {
	host, remotePath, err := splitFTPURL(url)
	if err != nil {
		return err
	}
	conn, err := ftpDial(host)
	if err != nil {
		return err
	}
	defer conn.Quit()

	resp, err := conn.Retr(remotePath)
	if err != nil {
		return errors.Wrap(err, "ftp: failed to retrieve bundle")
	}
	defer resp.Close()

	tmp, err := os.CreateTemp("", "nostr-bundle-*.bundle")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp); err != nil {
		tmp.Close()
		return errors.Wrap(err, "ftp: failed to download bundle")
	}
	tmp.Close()

	return store.FetchRemote(tmp.Name())
}

func ftpDial(host string) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(10*time.Second))
	if err != nil {
		return nil, errors.Wrap(err, "ftp: dial failed")
	}
	return conn, nil
}

func splitFTPURL(url string) (host, remotePath string, err error) {
	trimmed := strings.TrimPrefix(url, "ftp://")
	idx := strings.Index(trimmed, "/")
	if idx < 0 {
		return "", "", errors.Errorf("malformed ftp url %q", url)
	}
	host = trimmed[:idx]
	remotePath = path.Clean(trimmed[idx:])
	return host, remotePath, nil
}
