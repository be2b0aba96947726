// Package bech32 provides thin convenience wrappers around the bech32
// codec used throughout the nostr ecosystem for encoding public keys
// (npub1...), note ids (note1...) and other binary identifiers as
// human-typeable strings.
package bech32

import "github.com/btcsuite/btcutil/bech32"

// ConvertAndEncode converts a byte slice into a 5-bit group and
// bech32-encodes it under the given human readable part.
func ConvertAndEncode(hrp string, data []byte) (string, error) {
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, converted)
}

// DecodeAndConvert bech32-decodes a string and converts its data part
// back from 5-bit groups to 8-bit bytes, returning the human readable
// part and the raw bytes.
func DecodeAndConvert(bech string) (string, []byte, error) {
	hrp, data, err := bech32.Decode(bech)
	if err != nil {
		return "", nil, err
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, converted, nil
}
