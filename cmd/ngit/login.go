// Copyright © 2019 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/nostrsync/ngit/pkgs/bech32"
	"github.com/nostrsync/ngit/remote/signer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const nsecHRP = "nsec"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a signing key for pushes to nostr-backed remotes",
	Long: `Description:
This command decodes the key passed via --nsec (either a bech32 nsec1...
string or a raw 64-character hex private key), verifies it derives a
valid keypair, and stores it under this repository's local git config
as nostr.nsec. git-remote-nostr reads it from there when signing
RepoState events on push.

With --passphrase the key is sealed before storage (scrypt-hardened
AES-GCM) and saved as nostr.nsec-encrypted instead; git-remote-nostr
then needs NGIT_PASSPHRASE set in its environment to unseal it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("nsec")
		if raw == "" {
			return errors.New("--nsec is required")
		}

		privHex, err := decodeNsec(raw)
		if err != nil {
			return errors.Wrap(err, "invalid --nsec")
		}

		sgn, err := signer.NewLocalKeySigner(privHex)
		if err != nil {
			return errors.Wrap(err, "key does not derive a valid keypair")
		}

		store, err := openStore()
		if err != nil {
			return err
		}

		passphrase, _ := cmd.Flags().GetString("passphrase")
		if passphrase != "" {
			blob, err := signer.EncryptKey(privHex, passphrase)
			if err != nil {
				return errors.Wrap(err, "failed to seal key")
			}
			if err := store.SaveConfig("nostr.nsec-encrypted", blob); err != nil {
				return errors.Wrap(err, "failed to save sealed key")
			}
		} else if err := store.SaveConfig("nostr.nsec", privHex); err != nil {
			return errors.Wrap(err, "failed to save key")
		}

		fmt.Printf("logged in as %s\n", sgn.PublicKey())
		cfg.Log.Info("stored signing key", "pubkey", sgn.PublicKey())
		return nil
	},
}

// decodeNsec accepts either a bech32 nsec1... string or a raw 64-char
// hex private key and returns the normalized hex form.
func decodeNsec(raw string) (string, error) {
	if len(raw) == 64 {
		if _, err := hex.DecodeString(raw); err == nil {
			return raw, nil
		}
	}
	hrp, data, err := bech32.DecodeAndConvert(raw)
	if err != nil {
		return "", err
	}
	if hrp != nsecHRP {
		return "", errors.Errorf("unexpected bech32 prefix %q, want %q", hrp, nsecHRP)
	}
	if len(data) != 32 {
		return "", errors.Errorf("decoded key has %d bytes, want 32", len(data))
	}
	return hex.EncodeToString(data), nil
}

func init() {
	loginCmd.Flags().String("nsec", "", "bech32 nsec1... or hex private key")
	loginCmd.Flags().String("passphrase", "", "seal the stored key under this passphrase")
	rootCmd.AddCommand(loginCmd)
}
