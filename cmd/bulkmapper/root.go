package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	mapper "github.com/jdziat/bulk-mapper"
	"github.com/jdziat/bulk-mapper/pkg/config"
	"github.com/jdziat/bulk-mapper/pkg/storage"
)

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
	endpoint   string
	key        string
	baseURL    string
	journal    string
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	flags  globalFlags
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:          "bulkmapper",
		Short:        "Map company names, domains, merchants and products to company records",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&a.flags.envFile, "env-file", ".env", "path to a .env file")
	pf.StringVarP(&a.flags.logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
	pf.StringVarP(&a.flags.endpoint, "endpoint", "e", "", "mapper type: domain, merchant or product")
	pf.StringVarP(&a.flags.key, "key", "k", "", "application key (or "+config.EnvKey+")")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "API base URL (or "+config.EnvBaseURL+")")
	pf.StringVar(&a.flags.journal, "journal", "", "run journal: SQLite path or postgres:// URL (or "+config.EnvJournal+")")

	root.AddCommand(newRunCmd(a), newQueryCmd(a), newHistoryCmd(a))
	return root
}

// settings merges defaults, config file, environment and global flags, and
// installs the logger.
func (a *app) settings(cmd *cobra.Command) (config.Settings, error) {
	if err := config.LoadDotEnv(a.flags.envFile); err != nil {
		return config.Settings{}, err
	}
	s, err := config.Load(a.flags.configPath)
	if err != nil {
		return s, err
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		ep, err := mapper.ParseEndpoint(a.flags.endpoint)
		if err != nil {
			return s, err
		}
		s.Mapper.Endpoint = ep
	}
	if flags.Changed("key") {
		s.Mapper.Key = a.flags.key
	}
	if flags.Changed("base-url") {
		s.Mapper.BaseURL = a.flags.baseURL
	}
	if flags.Changed("journal") {
		s.Journal = a.flags.journal
	}
	if flags.Changed("log-level") {
		s.LogLevel = a.flags.logLevel
	}

	level, err := parseLevel(s.LogLevel)
	if err != nil {
		return s, err
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return s, nil
}

func (a *app) openJournal(cmd *cobra.Command, dsn string) (*storage.GormJournal, error) {
	if dsn == "" {
		return nil, nil
	}
	j, err := storage.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(cmd.Context()); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
