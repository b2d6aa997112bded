package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/j-veylop/cockpit-tui/internal/config"
	"github.com/j-veylop/cockpit-tui/internal/fsutil"
	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/pagestate"
	"github.com/j-veylop/cockpit-tui/internal/presentation"
	"github.com/j-veylop/cockpit-tui/internal/services"
	"github.com/j-veylop/cockpit-tui/internal/services/platform"
	"github.com/j-veylop/cockpit-tui/internal/version"
)

const cliTimeout = 30 * time.Second

func newListCommand() *cobra.Command {
	var private bool
	cmd := &cobra.Command{
		Use:   "list [platform]",
		Short: "Print stored accounts with their plan and quota",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platforms := models.AllPlatforms
			if len(args) == 1 {
				p, err := models.ParsePlatform(args[0])
				if err != nil {
					return err
				}
				platforms = []models.Platform{p}
			}
			return withManager(func(cfg *config.Config, mgr *services.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
				defer cancel()
				mask := private || cfg.PrivacyDefault
				return listAccounts(ctx, cmd.OutOrStdout(), cfg, mgr, platforms, mask)
			})
		},
	}
	cmd.Flags().BoolVarP(&private, "private", "p", false, "mask emails and ids")
	return cmd
}

func listAccounts(ctx context.Context, w io.Writer, cfg *config.Config, mgr *services.Manager, platforms []models.Platform, mask bool) error {
	opts := presentation.Options{Now: time.Now(), Translator: i18n.New(cfg.Locale)}
	if dg, err := mgr.Groups().DisplayGroups(); err == nil {
		opts.Groups = dg
	}

	var rows [][]string
	for _, p := range platforms {
		svc := mgr.Service(p)
		if svc == nil {
			continue
		}
		list, err := svc.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("list %s accounts: %w", p, err)
		}
		rows = append(rows, accountRows(svc, list, opts, mask)...)
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No accounts.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PLATFORM", "ACCOUNT", "PLAN", "QUOTA", "TAGS").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func accountRows(svc platform.Service, list []models.Account, opts presentation.Options, mask bool) [][]string {
	active := svc.ActiveAccount()
	return lo.Map(list, func(acc models.Account, _ int) []string {
		pres := presentation.Build(acc, opts)
		name := pres.DisplayName
		if mask {
			name = pagestate.MaskAccountText(name)
		}
		if acc.Meta().ID == active {
			name = "* " + name
		}
		quota := lo.Map(pres.QuotaItems, func(m presentation.QuotaMetric, _ int) string {
			if m.QuotaClass == presentation.QuotaUnknown {
				return m.Label + " --"
			}
			return fmt.Sprintf("%s %d%%", m.Label, m.Percentage)
		})
		return []string{
			svc.Platform().Title(),
			name,
			pres.PlanLabel,
			strings.Join(quota, ", "),
			strings.Join(acc.Meta().Tags, ", "),
		}
	})
}

func newExportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <platform> [ids...]",
		Short: "Write accounts as JSON, every account when no id is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParsePlatform(args[0])
			if err != nil {
				return err
			}
			return withManager(func(_ *config.Config, mgr *services.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
				defer cancel()
				return exportAccounts(ctx, cmd.OutOrStdout(), mgr, p, args[1:], out)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func exportAccounts(ctx context.Context, w io.Writer, mgr *services.Manager, p models.Platform, ids []string, out string) error {
	svc := mgr.Service(p)
	if svc == nil {
		return fmt.Errorf("platform %s is not available", p)
	}
	if len(ids) == 0 {
		list, err := svc.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("list %s accounts: %w", p, err)
		}
		ids = models.AccountIDs(list)
	}
	if len(ids) == 0 {
		return pagestate.ErrNoIDs
	}

	data, err := svc.ExportJSON(ctx, ids)
	if err != nil {
		return fmt.Errorf("export %s accounts: %w", p, err)
	}

	if out == "" {
		_, err = fmt.Fprintln(w, data)
		return err
	}
	if err := fsutil.WriteAtomic(out, []byte(data), 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	_, err = fmt.Fprintf(w, "Exported %d %s accounts to %s\n", len(ids), p.Title(), out)
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
