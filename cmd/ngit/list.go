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
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/table"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nostrsync/ngit/remote/eventbus"
	"github.com/nostrsync/ngit/remote/nostrevent"
	"github.com/nostrsync/ngit/remote/nostrurl"
	"github.com/nostrsync/ngit/remote/proposal"
	"github.com/nostrsync/ngit/remote/resolver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List PRs for the current repository",
	Long: `Description:
This command resolves the repository's maintainer announcement, fetches
every patch/pull-request event addressed to it, and prints one row per
proposal: its branch name, author, patch count, and whether it is still
open. It is the
non-interactive counterpart to the synthetic refs/heads/pr/* branches
git-remote-nostr exposes during fetch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetString("remote")
		store, err := openStore()
		if err != nil {
			return err
		}

		rawURL := store.LoadConfig("remote." + remote + ".url")
		if rawURL == "" {
			return errors.Errorf("remote %q has no url configured", remote)
		}
		repoURL, err := nostrurl.Parse(rawURL)
		if err != nil {
			return errors.Wrap(err, "remote url is not a nostr url")
		}

		bus, err := openBus(store)
		if err != nil {
			return err
		}
		defer bus.Close()

		relays := relaysOrDefault(store)
		ctx := context.Background()
		resolved, err := resolver.Resolve(ctx, bus, relays, repoURL.MaintainerPubkey, repoURL.Identifier)
		if err != nil {
			return errors.Wrap(err, "failed to resolve repository")
		}

		kinds := append([]int{nostrevent.KindPullRequest, nostrevent.KindPullRequestUpdate, nostrevent.KindPatch}, nostrevent.StatusKinds()...)
		filter := nostr.Filter{Kinds: kinds, Tags: nostr.TagMap{"d": {resolved.Identifier}}}

		var events []*nostr.Event
		for _, relayURL := range resolved.Relays {
			fetchCtx, cancel := context.WithTimeout(ctx, eventbus.DefaultFetchTimeout)
			found, ferr := bus.Fetch(fetchCtx, relayURL, filter)
			cancel()
			if ferr != nil {
				continue
			}
			events = append(events, found...)
		}

		roots := proposal.GroupRoots(events)
		printProposals(roots, localPubkey(store))
		return nil
	},
}

func printProposals(roots map[string]*proposal.Root, localUser string) {
	ids := make([]string, 0, len(roots))
	for id := range roots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"branch", "author", "patches", "open"})
	for _, id := range ids {
		root := roots[id]
		if root.Tip() == nil {
			continue
		}
		branch := proposal.BranchName(root, shortID(id), localUser)
		rootCreatedAt := root.Patches[0].Event.CreatedAt
		for _, p := range root.Patches {
			if p.Event.CreatedAt < rootCreatedAt {
				rootCreatedAt = p.Event.CreatedAt
			}
		}
		t.AppendRow(table.Row{branch, root.Author, len(root.Patches), root.IsOpen(rootCreatedAt)})
	}
	fmt.Println()
	t.Render()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func init() {
	listCmd.Flags().String("remote", "origin", "name of the remote to resolve")
	rootCmd.AddCommand(listCmd)
}
