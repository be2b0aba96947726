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
	"context"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/nostrevent"
	"github.com/nostrsync/ngit/remote/refstate"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Publish this repository's announcement and ref state to nostr",
	Long: `Description:
This command builds a RepoAnnouncement event from the repository's
current HEAD and the --mirror/--relay/--name/--description flags, signs
it with the key stored by ngit login, publishes it to every relay, and
follows it with an initial RepoState event reflecting the repository's
current branches and tags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		sgn, err := loadSigner(store)
		if err != nil {
			return err
		}

		identifier, _ := cmd.Flags().GetString("identifier")
		if identifier == "" {
			return errors.New("--identifier is required")
		}
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		mirrors, _ := cmd.Flags().GetStringSlice("mirror")
		relays := relaysOrDefault(store)
		if extra, _ := cmd.Flags().GetStringSlice("relay"); len(extra) > 0 {
			relays = extra
		}

		root, err := store.RootCommit()
		if err != nil {
			return err
		}

		tags := nostr.Tags{
			{"d", identifier},
			{"r", root, "euc"},
		}
		if name != "" {
			tags = append(tags, nostr.Tag{"name", name})
		}
		if description != "" {
			tags = append(tags, nostr.Tag{"description", description})
		}
		for _, m := range mirrors {
			tags = append(tags, nostr.Tag{"clone", m})
		}
		if len(relays) > 0 {
			tags = append(tags, append(nostr.Tag{"relays"}, relays...))
		}

		ann := nostr.Event{
			Kind:      nostrevent.KindRepoAnnouncement,
			CreatedAt: nostr.Now(),
			Tags:      tags,
		}
		if err := sgn.Sign(&ann); err != nil {
			return errors.Wrap(err, "failed to sign announcement")
		}

		refs, err := store.ListLocalRefs()
		if err != nil {
			return err
		}
		state, err := refstate.New(refs)
		if err != nil {
			return err
		}
		stateEv := nostr.Event{
			Kind:      nostrevent.KindRepoState,
			CreatedAt: nostr.Now(),
			Tags:      append(nostr.Tags{{"d", identifier}}, state.Tags()...),
		}
		if err := sgn.Sign(&stateEv); err != nil {
			return errors.Wrap(err, "failed to sign ref state")
		}

		bus, err := openBus(store)
		if err != nil {
			return err
		}
		defer bus.Close()

		ctx := context.Background()
		if err := publishOrReport(ctx, bus, relays, ann, "announcement"); err != nil {
			return err
		}
		bus.Put(&ann)
		if err := publishOrReport(ctx, bus, relays, stateEv, "ref state"); err != nil {
			return err
		}
		bus.Put(&stateEv)

		fmt.Printf("published %s as %s to %d relay(s)\n", identifier, sgn.PublicKey(), len(relays))
		cfg.Log.Info("published repository", "identifier", identifier, "relays", len(relays))
		return nil
	},
}

func publishOrReport(ctx context.Context, bus interface {
	Publish(ctx context.Context, urls []string, ev nostr.Event) ([]string, map[string]error)
}, relays []string, ev nostr.Event, label string) error {
	accepted, failures := bus.Publish(ctx, relays, ev)
	if len(accepted) == 0 {
		var reasons []string
		for url, err := range failures {
			reasons = append(reasons, url+": "+err.Error())
		}
		return errors.Errorf("every relay rejected the %s event: %s", label, strings.Join(reasons, "; "))
	}
	return nil
}

func init() {
	initCmd.Flags().String("identifier", "", "repository identifier (the \"d\" tag)")
	initCmd.Flags().String("name", "", "human-readable repository name")
	initCmd.Flags().String("description", "", "short repository description")
	initCmd.Flags().StringSlice("mirror", nil, "mirror URL to advertise (repeatable)")
	initCmd.Flags().StringSlice("relay", nil, "relay to publish to (repeatable); defaults to the configured relay list")
	rootCmd.AddCommand(initCmd)
}
