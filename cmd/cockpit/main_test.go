package main

import (
	"bytes"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/j-veylop/cockpit-tui/internal/groups"
	"github.com/j-veylop/cockpit-tui/internal/models"
	"github.com/j-veylop/cockpit-tui/internal/version"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"list", "export", "groups", "version"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing subcommand %q, have %v", want, names)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	version.Version = "9.9.9"
	t.Cleanup(version.Reset)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "9.9.9") {
		t.Errorf("output = %q, want the version", out.String())
	}
}

func TestExportCommand_RequiresPlatform(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"export"})
	if err := root.Execute(); err == nil {
		t.Error("export without a platform should fail")
	}
}

func TestSearchFields(t *testing.T) {
	tests := []struct {
		name string
		acc  models.Account
		want string
	}{
		{"codex", &models.CodexAccount{UserID: "user-1"}, "user-1"},
		{"copilot", &models.CopilotAccount{GitHubIdentity: models.GitHubIdentity{GitHubLogin: "octo"}}, "octo"},
		{"windsurf", &models.WindsurfAccount{GitHubIdentity: models.GitHubIdentity{GitHubName: "Mona"}}, "Mona"},
		{"kiro", &models.KiroAccount{UserID: "kiro-7"}, "kiro-7"},
		{"antigravity", &models.AntigravityAccount{Name: "Ada"}, "Ada"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := searchFields(tt.acc); !slices.Contains(got, tt.want) {
				t.Errorf("searchFields = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupsCommand(t *testing.T) {
	st := groups.NewStore(filepath.Join(t.TempDir(), "group_settings.json"))
	open := func() (*groups.Store, error) { return st, nil }

	run := func(args ...string) (string, error) {
		cmd := newGroupsCommand(open)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	steps := [][]string{
		{"set", "claude-sonnet-4-5", "claude"},
		{"set", "claude-opus-4-5", "claude"},
		{"set", "gemini-3-pro-high", "gemini"},
		{"set", "gpt-oss-120b", "other"},
		{"rename", "claude", "Claude"},
		{"order", "gemini", "claude"},
		{"unset", "claude-opus-4-5"},
	}
	for _, args := range steps {
		if _, err := run(args...); err != nil {
			t.Fatalf("groups %v: %v", args, err)
		}
	}

	dg, err := st.DisplayGroups()
	if err != nil {
		t.Fatal(err)
	}
	want := []groups.DisplayGroup{
		{ID: "gemini", Name: "gemini", Models: []string{"gemini-3-pro-high"}},
		{ID: "claude", Name: "Claude", Models: []string{"claude-sonnet-4-5"}},
		{ID: "other", Name: "other", Models: []string{"gpt-oss-120b"}},
	}
	if !reflect.DeepEqual(dg, want) {
		t.Errorf("DisplayGroups() = %+v, want %+v", dg, want)
	}

	out, err := run()
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	for _, s := range []string{"Claude", "gemini-3-pro-high", "gpt-oss-120b"} {
		if !strings.Contains(out, s) {
			t.Errorf("listing should contain %q:\n%s", s, out)
		}
	}

	if _, err := run("delete", "claude"); err != nil {
		t.Fatalf("groups delete: %v", err)
	}
	dg, _ = st.DisplayGroups()
	if len(dg) != 2 || dg[0].ID != "gemini" || dg[1].ID != "other" {
		t.Errorf("after delete DisplayGroups() = %+v", dg)
	}

	for _, args := range [][]string{{"set", " ", "claude"}, {"rename", "claude"}, {"order"}} {
		if _, err := run(args...); err == nil {
			t.Errorf("groups %q should fail", args)
		}
	}
}
