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
	"fmt"

	"github.com/nostrsync/ngit/config"
	"github.com/nostrsync/ngit/pkgs/cmdhelper"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BuildVersion is set by the release build.
var BuildVersion = ""

// cfg holds the resolved data-dir/git-bin/logger settings, built once
// in rootCmd's PersistentPreRun.
var cfg = &config.AppConfig{}

var rootCmd = &cobra.Command{
	Use:   "ngit",
	Short: "Manage repositories whose ref state lives on nostr",
	Long: `ngit is the companion CLI to git-remote-nostr. It publishes a
repository's announcement and ref state to nostr, logs in a signing key
for subsequent pushes, and lists the PRs a repository has received as
nostr patch events, marking which are still open.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		home, _ := cmd.Flags().GetString("home")
		return config.Configure(cfg, home)
	},
}

func init() {
	rootCmd.PersistentFlags().String("gitbin", "git", "path to the git executable")
	rootCmd.PersistentFlags().String("home", config.DefaultDataDir, "path to ngit's data directory (logs, user-wide defaults)")
	rootCmd.PersistentFlags().StringSlice("relay", nil, "relay url to use (repeatable); defaults to the resolver's built-in set")
	viper.BindPFlag("node.gitbin", rootCmd.PersistentFlags().Lookup("gitbin"))
	viper.BindPFlag("relays", rootCmd.PersistentFlags().Lookup("relay"))

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		help := cmdhelper.NewCmdHelper(cmd)
		help.Grp(cmdhelper.DefaultGroupName, "relay")
		fmt.Println(help.Render().String())
	})
}
