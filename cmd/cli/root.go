package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sonozaki-sz/guild-mng-bot/internal/config"
	"github.com/sonozaki-sz/guild-mng-bot/internal/logging"
	"github.com/sonozaki-sz/guild-mng-bot/internal/storage"
	v "github.com/sonozaki-sz/guild-mng-bot/internal/version"
)

// backendOpener opens the registry for a command; tests swap it out.
type backendOpener func(backend, path string) (storage.Backend, error)

func openBackend(backend, path string) (storage.Backend, error) {
	cfg, err := config.ParseStorage()
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.StorageBackend = backend
	}
	if path != "" {
		cfg.StoragePath = path
	}
	return storage.Open(cfg, logging.Component("storage"))
}

type app struct {
	open      backendOpener
	verbosity int
	backend   string
	path      string
}

func newRootCommand(open backendOpener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "guild-mng",
		Short: "Manage voice auto creation settings",
		Long: `guild-mng edits the registry the bot reads: which voice channels act as
triggers for personal rooms, and which rooms the bot currently owns.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := logging.Setup(logging.Options{Level: verbosityLevel(a.verbosity)}); err != nil {
				return err
			}
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG)")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "Storage backend, json or sqlite (default $STORAGE_BACKEND)")
	root.PersistentFlags().StringVar(&a.path, "path", "", "Storage file (default $STORAGE_PATH)")

	root.AddCommand(
		a.triggerCommand(),
		a.roomsCommand(),
		a.guildsCommand(),
		versionCommand(),
	)
	return root
}

func verbosityLevel(n int) string {
	switch {
	case n >= 2:
		return zerolog.DebugLevel.String()
	case n == 1:
		return zerolog.InfoLevel.String()
	}
	return zerolog.WarnLevel.String()
}

// withBackend opens the registry, runs fn and closes it, keeping the first
// error.
func (a *app) withBackend(fn func(storage.Backend) error) (err error) {
	store, err := a.open(a.backend, a.path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close storage: %w", cerr)
		}
	}()
	return fn(store)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", v.AppName, v.Version)
		},
	}
}
