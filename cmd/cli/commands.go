package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sonozaki-sz/guild-mng-bot/internal/storage"
	"github.com/sonozaki-sz/guild-mng-bot/internal/vac"
)

func (a *app) triggerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Manage trigger channels",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add <guild-id> <channel-id>",
		Short:   "Register a voice channel as a trigger",
		Example: "  guild-mng trigger add 123456789012345678 234567890123456789",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(store storage.Backend) error {
				added, err := vac.AddTrigger(cmd.Context(), store, args[0], args[1])
				if errors.Is(err, vac.ErrRoleConflict) {
					return fmt.Errorf("channel %s: %w", args[1], err)
				}
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "Added trigger %s to guild %s\n", args[1], args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Channel %s is already a trigger in guild %s\n", args[1], args[0])
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <guild-id> <channel-id>",
		Short: "Deregister a trigger channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(store storage.Backend) error {
				removed, err := vac.RemoveTrigger(cmd.Context(), store, args[0], args[1])
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed trigger %s from guild %s\n", args[1], args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Channel %s is not a trigger in guild %s\n", args[1], args[0])
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <guild-id>",
		Short: "List trigger channels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(store storage.Backend) error {
				state, err := vac.LoadState(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				printIDs(cmd.OutOrStdout(), state.TriggerChannels, "No trigger channels")
				return nil
			})
		},
	})

	return cmd
}

func (a *app) roomsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Inspect auto-created rooms",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <guild-id>",
		Short: "List rooms the bot currently owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(store storage.Backend) error {
				state, err := vac.LoadState(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				printIDs(cmd.OutOrStdout(), state.AutoCreatedChannels, "No auto-created rooms")
				return nil
			})
		},
	})
	return cmd
}

func (a *app) guildsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "guilds",
		Short: "List guilds with voice auto creation settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(store storage.Backend) error {
				guilds, err := store.Guilds(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(guilds) == 0 {
					fmt.Fprintln(w, "No configured guilds")
					return nil
				}
				for _, id := range guilds {
					state, err := vac.LoadState(cmd.Context(), store, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\ttriggers=%d\trooms=%d\n", id, len(state.TriggerChannels), len(state.AutoCreatedChannels))
				}
				return nil
			})
		},
	}
}

func printIDs(w io.Writer, ids []string, empty string) {
	if len(ids) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	fmt.Fprintln(w, strings.Join(ids, "\n"))
}
