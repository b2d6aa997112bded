package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/j-veylop/cockpit-tui/internal/config"
	"github.com/j-veylop/cockpit-tui/internal/groups"
)

// groupStoreFunc opens the display group settings.
type groupStoreFunc func() (*groups.Store, error)

func openGroupStore() (*groups.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return groups.NewStore(cfg.GroupSettingsPath()), nil
}

// newGroupsCommand edits the groups that fold Antigravity model quotas into
// one figure. Changes show up on the next account reload.
func newGroupsCommand(open groupStoreFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage Antigravity model display groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withGroups(open, func(st *groups.Store) error {
				return listGroups(cmd.OutOrStdout(), st)
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <model> <group>",
			Short: "Assign a model to a group, creating the group if needed",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				model, group, err := requireIDs(args[0], args[1])
				if err != nil {
					return err
				}
				return updateGroups(cmd, open, func(s *groups.Settings) {
					s.SetModelGroup(model, group)
				}, "Assigned %s to %s", model, group)
			},
		},
		&cobra.Command{
			Use:   "unset <model>",
			Short: "Remove a model from its group",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				model, _, err := requireIDs(args[0])
				if err != nil {
					return err
				}
				return updateGroups(cmd, open, func(s *groups.Settings) {
					s.RemoveModelGroup(model)
				}, "Removed %s from its group", model)
			},
		},
		&cobra.Command{
			Use:   "rename <group> <name>",
			Short: "Set the display name of a group",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				group, name, err := requireIDs(args[0], args[1])
				if err != nil {
					return err
				}
				return updateGroups(cmd, open, func(s *groups.Settings) {
					s.SetGroupName(group, name)
				}, "Renamed %s to %q", group, name)
			},
		},
		&cobra.Command{
			Use:   "delete <group>",
			Short: "Delete a group and unassign its models",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				group, _, err := requireIDs(args[0])
				if err != nil {
					return err
				}
				return updateGroups(cmd, open, func(s *groups.Settings) {
					s.DeleteGroup(group)
				}, "Deleted group %s", group)
			},
		},
		&cobra.Command{
			Use:   "order <group>...",
			Short: "Set the display order; unlisted groups follow alphabetically",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				order := lo.Compact(lo.Map(args, func(a string, _ int) string { return strings.TrimSpace(a) }))
				if len(order) == 0 {
					return fmt.Errorf("group ids must not be empty")
				}
				return updateGroups(cmd, open, func(s *groups.Settings) {
					s.SetGroupOrder(order)
				}, "Group order: %s", strings.Join(order, ", "))
			},
		},
	)
	return cmd
}

// requireIDs trims the first one or two arguments and rejects empty values.
func requireIDs(first string, second ...string) (string, string, error) {
	a := strings.TrimSpace(first)
	b := ""
	if len(second) > 0 {
		b = strings.TrimSpace(second[0])
		if b == "" {
			return "", "", fmt.Errorf("arguments must not be empty")
		}
	}
	if a == "" {
		return "", "", fmt.Errorf("arguments must not be empty")
	}
	return a, b, nil
}

func withGroups(open groupStoreFunc, fn func(*groups.Store) error) error {
	st, err := open()
	if err != nil {
		return err
	}
	return fn(st)
}

func updateGroups(cmd *cobra.Command, open groupStoreFunc, fn func(*groups.Settings), format string, args ...any) error {
	return withGroups(open, func(st *groups.Store) error {
		if err := st.Update(fn); err != nil {
			return fmt.Errorf("save group settings: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
		return err
	})
}

func listGroups(w io.Writer, st *groups.Store) error {
	s, err := st.Load()
	if err != nil {
		return err
	}
	all := s.DisplayGroups(0)
	if len(all) == 0 {
		_, err := fmt.Fprintln(w, "No groups. Add one with: cockpit groups set <model> <group>")
		return err
	}

	rows := lo.Map(all, func(g groups.DisplayGroup, i int) []string {
		shown := ""
		if i < groups.MaxDisplayGroups {
			shown = "yes"
		}
		return []string{g.ID, g.Name, strings.Join(g.Models, ", "), shown}
	})
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("GROUP", "NAME", "MODELS", "SHOWN").
		Rows(rows...)
	_, err = fmt.Fprintln(w, t.Render())
	return err
}
