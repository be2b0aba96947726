// Package signer is the boundary responsible for turning an unsigned
// nostr event into a signed one. It uses the same secp256k1/schnorr
// stack github.com/nbd-wtf/go-nostr uses internally for event signing
// (btcsuite/btcd/btcec/v2), so a LocalKeySigner produces signatures
// indistinguishable from the library's own Event.Sign.
package signer

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
	"github.com/pkg/errors"
)

// Signer signs unsigned events and exposes the public key they will be
// signed with. Two implementations exist: LocalKeySigner (an in-memory
// private key) and, as an extension point, a NIP-46 "bunker" signer
// that delegates signing to a remote nostr-connect application. Only
// the local signer is implemented; bunker support is deliberately left
// as an unimplemented interface satisfier since it requires its own
// relay-mediated handshake out of scope for a first cut.
type Signer interface {
	PublicKey() string
	Sign(ev *nostr.Event) error
}

// LocalKeySigner signs with a private key held in process memory.
type LocalKeySigner struct {
	privHex string
	pubHex  string
}

// NewLocalKeySigner derives the x-only public key from a hex-encoded
// secp256k1 private key.
func NewLocalKeySigner(privHex string) (*LocalKeySigner, error) {
	b, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key hex")
	}
	_, pub := btcec.PrivKeyFromBytes(b)
	pubHex := hex.EncodeToString(schnorr.SerializePubKey(pub))
	return &LocalKeySigner{privHex: privHex, pubHex: pubHex}, nil
}

// PublicKey returns the hex x-only public key this signer signs with.
func (s *LocalKeySigner) PublicKey() string { return s.pubHex }

// Sign computes the event id, signs it with BIP-340 schnorr, and sets
// ev.ID/ev.PubKey/ev.Sig in place.
func (s *LocalKeySigner) Sign(ev *nostr.Event) error {
	ev.PubKey = s.pubHex
	id := ev.GetID()
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return errors.Wrap(err, "failed to decode event id")
	}

	privBytes, err := hex.DecodeString(s.privHex)
	if err != nil {
		return errors.Wrap(err, "invalid private key hex")
	}
	priv, _ := btcec.PrivKeyFromBytes(privBytes)

	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		return errors.Wrap(err, "failed to sign event")
	}

	ev.ID = id
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// BunkerSigner is the NIP-46 remote-signer extension point: it is not
// implemented, but exists so the Publisher and Helper Loop depend only
// on Signer, not on LocalKeySigner's concrete representation.
type BunkerSigner struct {
	BunkerURI string
}

func (b *BunkerSigner) PublicKey() string {
	return ""
}

func (b *BunkerSigner) Sign(ev *nostr.Event) error {
	return errors.New("nip-46 bunker signing is not implemented")
}
