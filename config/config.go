// Package config holds the small set of process-wide defaults shared
// by the git-remote-nostr and ngit binaries: where the data directory
// lives, which git binary to shell out to, and how logging is wired
// up. Per-repo settings still live in git config; this package only
// carries what exists before any repository is open.
package config

import (
	"os"
	"path/filepath"

	"github.com/nostrsync/ngit/pkgs/logger"
	"github.com/spf13/viper"
)

// AppName names the data directory and the viper environment prefix.
const AppName = "ngit"

// DefaultDataDir is where per-repository caches and defaults are
// allowed to spill outside of a repository's own .git directory (e.g.
// a user-wide relay list). Individual repositories keep their own
// event cache under .git/nostr-cache regardless.
var DefaultDataDir = os.ExpandEnv("$HOME/." + AppName)

// DefaultGitBin is the git executable invoked when no override is
// configured.
const DefaultGitBin = "git"

// AppConfig is the small bag of resolved settings both binaries build
// at startup.
type AppConfig struct {
	GitBin   string
	DataDir  string
	LogLevel string
	Log      logger.Logger
}

// Configure reads viper-bound flags/environment into cfg and builds its
// logger. home is the resolved data directory (DefaultDataDir unless
// overridden); logs are written under home/log.
func Configure(cfg *AppConfig, home string) error {
	viper.SetEnvPrefix(AppName)
	viper.AutomaticEnv()

	cfg.GitBin = viper.GetString("node.gitbin")
	if cfg.GitBin == "" {
		cfg.GitBin = DefaultGitBin
	}
	cfg.DataDir = home
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	cfg.LogLevel = viper.GetString("loglevel")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	log, err := logger.NewLogrusLogger(filepath.Join(cfg.DataDir, "log"))
	if err != nil {
		return err
	}
	switch cfg.LogLevel {
	case "debug":
		log.SetToDebug()
	case "error":
		log.SetToError()
	default:
		log.SetToInfo()
	}
	cfg.Log = log
	return nil
}
