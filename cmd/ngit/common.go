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
	"os"
	"os/exec"
	"strings"

	"github.com/nostrsync/ngit/remote/eventbus"
	"github.com/nostrsync/ngit/remote/objectstore"
	"github.com/nostrsync/ngit/remote/resolver"
	"github.com/nostrsync/ngit/remote/signer"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// repoRoot shells out to `git rev-parse --show-toplevel`; every ngit
// subcommand assumes it runs inside a working tree.
func repoRoot(gitBin string) (string, error) {
	out, err := exec.Command(gitBin, "rev-parse", "--show-toplevel").CombinedOutput()
	if err != nil {
		return "", errors.Wrap(err, "not inside a git repository")
	}
	return strings.TrimSpace(string(out)), nil
}

func openStore() (*objectstore.Store, error) {
	gitBin := viper.GetString("node.gitbin")
	if gitBin == "" {
		gitBin = "git"
	}
	root, err := repoRoot(gitBin)
	if err != nil {
		return nil, err
	}
	return objectstore.Open(gitBin, root)
}

func openBus(store *objectstore.Store) (*eventbus.Bus, error) {
	return eventbus.Open(store.GitDir()+"/nostr-cache", 4096)
}

func loadSigner(store *objectstore.Store) (signer.Signer, error) {
	nsecHex := store.LoadConfig("nostr.nsec")
	if nsecHex == "" {
		blob := store.LoadConfig("nostr.nsec-encrypted")
		if blob == "" {
			return nil, errors.New("no signing key configured; run `ngit login` first")
		}
		passphrase := os.Getenv("NGIT_PASSPHRASE")
		if passphrase == "" {
			return nil, errors.New("stored signing key is sealed; set NGIT_PASSPHRASE")
		}
		var err error
		nsecHex, err = signer.DecryptKey(blob, passphrase)
		if err != nil {
			return nil, errors.Wrap(err, "failed to unseal stored signing key")
		}
	}
	return signer.NewLocalKeySigner(nsecHex)
}

// localPubkey returns the logged-in user's pubkey, or "" when no key
// is configured or it cannot be unsealed.
func localPubkey(store *objectstore.Store) string {
	sgn, err := loadSigner(store)
	if err != nil {
		return ""
	}
	return sgn.PublicKey()
}

// relaysOrDefault returns the --relay flags, falling back to the
// locally configured relay list and finally to resolver.DefaultRelays.
func relaysOrDefault(store *objectstore.Store) []string {
	if rs := viper.GetStringSlice("relays"); len(rs) > 0 {
		return rs
	}
	if raw := store.LoadConfig("nostr.relays"); raw != "" {
		return strings.Split(raw, ";")
	}
	return resolver.DefaultRelays
}
