// Package nostrurl parses and formats the decentralized repository URL
// "<scheme>://<maintainer-pubkey>/<identifier>" together with its
// query-like overrides.
package nostrurl

import (
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/nostrsync/ngit/pkgs/bech32"
	"github.com/pkg/errors"
)

// MalformedUrl is returned when a repo URL cannot be parsed: the
// pubkey fails bech32/hex decoding, or the identifier is empty.
// Fatal at startup; there is nothing to retry.
type MalformedUrl struct {
	Input  string
	Reason string
}

func (e *MalformedUrl) Error() string {
	return "malformed nostr repo url " + e.Input + ": " + e.Reason
}

// RepoURL is the decoded form of the decentralized repo URL. It is the
// sole input to the resolver and therefore the identity of a repo.
type RepoURL struct {
	Scheme            string
	MaintainerPubkey  string // 64-char lowercase hex, x-only secp256k1
	Identifier        string
	ProtocolOverride  string // "" if unset; otherwise one of the Transport names
	KeyFileOverride   string // absolute path to an SSH key, "" if unset
	UserOverride      string // username override for ssh/ftp, "" if unset
}

const npubHRP = "npub"

// Parse decodes a raw URL string of the form
// "<scheme>://<pubkey>/<identifier>[?protocol=..&key=..&user=..]".
// The pubkey may be bech32 (npub1...) or raw 64-char hex.
func Parse(raw string) (*RepoURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &MalformedUrl{Input: raw, Reason: err.Error()}
	}
	if u.Scheme == "" {
		return nil, &MalformedUrl{Input: raw, Reason: "missing scheme"}
	}
	if u.Host == "" {
		return nil, &MalformedUrl{Input: raw, Reason: "missing maintainer pubkey"}
	}

	pubkey, err := decodePubkey(u.Host)
	if err != nil {
		return nil, &MalformedUrl{Input: raw, Reason: err.Error()}
	}

	identifier := strings.Trim(u.Path, "/")
	if identifier == "" {
		return nil, &MalformedUrl{Input: raw, Reason: "empty repo identifier"}
	}

	q := u.Query()
	return &RepoURL{
		Scheme:           u.Scheme,
		MaintainerPubkey: pubkey,
		Identifier:       identifier,
		ProtocolOverride: q.Get("protocol"),
		KeyFileOverride:  q.Get("key"),
		UserOverride:     q.Get("user"),
	}, nil
}

// Format re-emits the canonical string form of r, preserving whichever
// overrides are set. Overrides are emitted in sorted key order (key,
// protocol, user), whatever order the parsed URL carried them in.
func (r *RepoURL) Format() string {
	var b strings.Builder
	b.WriteString(r.Scheme)
	b.WriteString("://")
	b.WriteString(r.MaintainerPubkey)
	b.WriteString("/")
	b.WriteString(r.Identifier)

	q := url.Values{}
	if r.ProtocolOverride != "" {
		q.Set("protocol", r.ProtocolOverride)
	}
	if r.KeyFileOverride != "" {
		q.Set("key", r.KeyFileOverride)
	}
	if r.UserOverride != "" {
		q.Set("user", r.UserOverride)
	}
	if encoded := q.Encode(); encoded != "" {
		b.WriteString("?")
		b.WriteString(encoded)
	}
	return b.String()
}

// decodePubkey accepts either a bech32 npub1... string or a raw
// 64-character hex x-only pubkey and returns the normalized hex form.
func decodePubkey(raw string) (string, error) {
	if looksLikeHex(raw) {
		return strings.ToLower(raw), nil
	}
	hrp, data, err := bech32.DecodeAndConvert(raw)
	if err != nil {
		return "", errors.Wrap(err, "invalid pubkey encoding")
	}
	if hrp != npubHRP {
		return "", errors.Errorf("unexpected bech32 prefix %q, want %q", hrp, npubHRP)
	}
	if len(data) != 32 {
		return "", errors.Errorf("decoded pubkey has %d bytes, want 32", len(data))
	}
	return hex.EncodeToString(data), nil
}

func looksLikeHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// EncodeNpub is the inverse of decodePubkey's bech32 branch, exposed so
// callers (e.g. the `ngit` CLI) can print a pubkey back in npub form.
func EncodeNpub(hexPubkey string) (string, error) {
	raw, err := hex.DecodeString(hexPubkey)
	if err != nil {
		return "", errors.Wrap(err, "invalid hex pubkey")
	}
	return bech32.ConvertAndEncode(npubHRP, raw)
}
