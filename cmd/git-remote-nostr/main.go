// Package main is the git remote-helper binary: git invokes it as
// `git-remote-nostr <remote-name> <url>` whenever a remote or clone URL
// uses the nostr:// (or npub1-hosted) scheme, and speaks the
// line-oriented helper protocol with it over stdin/stdout.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nostrsync/ngit/remote/eventbus"
	"github.com/nostrsync/ngit/remote/helper"
	"github.com/nostrsync/ngit/remote/nostrurl"
	"github.com/nostrsync/ngit/remote/objectstore"
	"github.com/nostrsync/ngit/remote/resolver"
	"github.com/nostrsync/ngit/remote/signer"
	"github.com/nostrsync/ngit/remote/transport"
)

// version is set by the release build; left blank in development
// builds.
var version = ""

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) >= 2 && args[1] == "--version" {
		fmt.Printf("v%s\n", version)
		return 0
	}

	// git invokes a remote helper as `git-remote-nostr <name> <url>`,
	// but also tolerates just `<url>` when called directly.
	rawURL := ""
	switch len(args) {
	case 2:
		rawURL = args[1]
	case 3:
		rawURL = args[2]
	default:
		printUsage()
		return 1
	}

	gitDir := os.Getenv("GIT_DIR")
	if gitDir == "" {
		fmt.Fprintln(os.Stderr, "Error: git should set GIT_DIR when invoking a remote helper")
		return 1
	}
	repoPath := filepath.Dir(gitDir)
	if filepath.Base(gitDir) != ".git" {
		repoPath = gitDir
	}

	repoURL, err := nostrurl.Parse(rawURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid nostr url: %v\n", err)
		return 1
	}

	store, err := objectstore.Open(gitBinPath(), repoPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening repository: %v\n", err)
		return 1
	}

	cacheDir := filepath.Join(gitDir, "nostr-cache")
	bus, err := eventbus.Open(cacheDir, 4096)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening event cache: %v\n", err)
		return 1
	}
	defer bus.Close()

	sgn, localUser := loadSigner(store)

	relays := relaysFromConfig(store)

	ctx := context.Background()
	resolved, err := resolver.Resolve(ctx, bus, relays, repoURL.MaintainerPubkey, repoURL.Identifier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: resolving %s: %v\n", rawURL, err)
		return 1
	}

	mux := transport.New(store)
	mirrors := deriveMirrorTargets(resolved, repoURL.ProtocolOverride)

	loop := &helper.Loop{
		In:        bufio.NewReader(os.Stdin),
		Out:       os.Stdout,
		Errout:    os.Stderr,
		Store:     store,
		Bus:       bus,
		Mux:       mux,
		Signer:    sgn,
		Resolved:  resolved,
		Mirrors:   mirrors,
		LocalUser: localUser,
	}

	return loop.Run(ctx)
}

func printUsage() {
	fmt.Println("nostr plugin for git")
	fmt.Println("Usage:")
	fmt.Println(" - clone a nostr repository, or add as a remote, by using the url format nostr://pub123/identifier")
	fmt.Println(" - remote branches beginning with `pr/` are open PRs from contributors; `ngit list` can be used to view all PRs")
	fmt.Println(" - the `pr/` branch prefix is reserved for those PRs; pushing a branch under it is refused")
	fmt.Println(" - publish a repository to nostr with `ngit init`")
}

func gitBinPath() string {
	if p := os.Getenv("NGIT_GIT_BIN"); p != "" {
		return p
	}
	return "git"
}

// loadSigner builds a Signer from the nostr.nsec value stored in the
// repository's local git config by `ngit login`, or from the sealed
// nostr.nsec-encrypted value plus the NGIT_PASSPHRASE environment
// variable. A repo with no stored key can still fetch; it just cannot
// push signed ref-state events, which publisher.Publish will report as
// a failure.
func loadSigner(store *objectstore.Store) (signer.Signer, string) {
	nsecHex := store.LoadConfig("nostr.nsec")
	if nsecHex == "" {
		blob := store.LoadConfig("nostr.nsec-encrypted")
		passphrase := os.Getenv("NGIT_PASSPHRASE")
		if blob == "" || passphrase == "" {
			return nil, ""
		}
		var err error
		nsecHex, err = signer.DecryptKey(blob, passphrase)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to unseal stored signing key: %v\n", err)
			return nil, ""
		}
	}
	sgn, err := signer.NewLocalKeySigner(nsecHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: nostr.nsec in git config is invalid: %v\n", err)
		return nil, ""
	}
	return sgn, sgn.PublicKey()
}

// relaysFromConfig reads a semicolon-separated nostr.relays override
// from git config, falling back to resolver.DefaultRelays.
func relaysFromConfig(store *objectstore.Store) []string {
	raw := store.LoadConfig("nostr.relays")
	if raw == "" {
		return nil
	}
	var relays []string
	for _, r := range strings.Split(raw, ";") {
		if r = strings.TrimSpace(r); r != "" {
			relays = append(relays, r)
		}
	}
	return relays
}

// deriveMirrorTargets builds a transport.MirrorTarget per announced
// mirror, inferring its native scheme from the URL and marking it as a
// grasp server when its host matches one of the resolved relays; a
// mirror co-located with a relay is trusted for destructive updates.
func deriveMirrorTargets(resolved *resolver.ResolvedRepo, protocolOverride string) []transport.MirrorTarget {
	relayHosts := map[string]bool{}
	for _, r := range resolved.Relays {
		if u, err := url.Parse(r); err == nil {
			relayHosts[u.Host] = true
		}
	}

	targets := make([]transport.MirrorTarget, 0, len(resolved.Mirrors))
	for _, m := range resolved.Mirrors {
		scheme, ok := mirrorScheme(m)
		if !ok {
			continue
		}
		host := ""
		if u, err := url.Parse(m); err == nil {
			host = u.Host
		}
		targets = append(targets, transport.MirrorTarget{
			URL:         m,
			Scheme:      scheme,
			ShortName:   shortMirrorName(m),
			GraspServer: relayHosts[host],
			Override:    protocolOverride,
		})
	}
	return targets
}

func mirrorScheme(raw string) (transport.MirrorScheme, bool) {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return transport.SchemeHTTPS, true
	case strings.HasPrefix(raw, "http://"):
		return transport.SchemeHTTP, true
	case strings.HasPrefix(raw, "ftp://"):
		return transport.SchemeFTP, true
	case strings.HasPrefix(raw, "file://") || strings.HasPrefix(raw, "/"):
		return transport.SchemeFilesystem, true
	default:
		return 0, false
	}
}

// shortMirrorName derives the host[:port] portion of a mirror URL for
// use as the preference-bookkeeping key in git config.
func shortMirrorName(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
