package pagestate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// tokenKeys are the JSON fields ExtractTokens reads when the input is a JSON
// document rather than a plain token list.
var tokenKeys = []string{"refresh_token", "refreshToken", "access_token", "accessToken", "token", "github_token", "api_key", "apiKey"}

func (p *Page) beginImport() {
	p.mu.Lock()
	p.add.status = AddStatus{Phase: PhaseLoading, Message: p.t("import.loading", "Importing...", nil)}
	p.mu.Unlock()
}

func (p *Page) importFailed(err error) {
	logger.Error("import failed", "platform", p.cfg.Platform, "error", err)
	p.fail(err, p.t("import.failed", "Import failed: {{error}}", i18n.Params{"error": err.Error()}))
}

func (p *Page) imported(ctx context.Context, accounts []models.Account) {
	_ = p.Load(ctx)
	p.succeed(p.t("import.success", "Imported {{count}} account(s)", i18n.Params{"count": len(accounts)}), len(accounts))
}

// ImportJSON imports accounts from pasted JSON.
func (p *Page) ImportJSON(ctx context.Context, content string) {
	if strings.TrimSpace(content) == "" {
		p.fail(ErrEmptyInput, p.t("import.emptyInput", "Paste JSON or tokens first", nil))
		return
	}
	p.beginImport()
	accounts, err := p.cfg.Service.ImportJSON(ctx, content)
	if err != nil {
		p.importFailed(err)
		return
	}
	p.imported(ctx, accounts)
}

// ImportLocal imports the accounts of the platform's local installation.
func (p *Page) ImportLocal(ctx context.Context) {
	p.beginImport()
	accounts, err := p.cfg.Service.ImportLocal(ctx)
	if err != nil {
		p.importFailed(err)
		return
	}
	p.imported(ctx, accounts)
}

// AddWithToken adds one account per token found in input, one at a time.
// Mixed outcomes end in PhasePartial with both counts.
func (p *Page) AddWithToken(ctx context.Context, input string) {
	if strings.TrimSpace(input) == "" {
		p.fail(ErrEmptyInput, p.t("import.emptyInput", "Paste JSON or tokens first", nil))
		return
	}
	tokens := ExtractTokens(input)
	if len(tokens) == 0 {
		p.fail(ErrNoTokens, p.t("import.noTokens", "No tokens found in input", nil))
		return
	}

	p.beginImport()
	var errs []error
	ok := 0
	for _, token := range tokens {
		if _, err := p.cfg.Service.AddWithToken(ctx, token); err != nil {
			logger.Warn("failed to add account from token", "platform", p.cfg.Platform, "error", err)
			errs = append(errs, err)
			continue
		}
		ok++
	}

	switch {
	case len(errs) == 0:
		_ = p.Load(ctx)
		p.succeed(p.t("import.success", "Imported {{count}} account(s)", i18n.Params{"count": ok}), ok)
	case ok == 0:
		p.importFailed(errors.Join(errs...))
		p.mu.Lock()
		p.add.status.Failed = len(errs)
		p.mu.Unlock()
	default:
		_ = p.Load(ctx)
		text := p.t("import.partial", "Imported {{ok}}, failed {{failed}}", i18n.Params{"ok": ok, "failed": len(errs)})
		p.mu.Lock()
		p.add.status = AddStatus{Phase: PhasePartial, Message: text, Err: errors.Join(errs...), OK: ok, Failed: len(errs)}
		p.message = Message{Text: text, Tone: ToneError}
		p.mu.Unlock()
	}
}

// ExtractTokens pulls tokens out of free text: one per line, comma or
// whitespace separated, or the token fields of a JSON object or array.
// Duplicates are dropped and order is kept.
func ExtractTokens(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	var doc any
	if err := json.Unmarshal([]byte(input), &doc); err == nil {
		var tokens []string
		collectTokens(doc, &tokens)
		return lo.Uniq(tokens)
	}

	fields := strings.FieldsFunc(input, func(r rune) bool {
		switch r {
		case '\n', '\r', '\t', ' ', ',', ';':
			return true
		}
		return false
	})
	tokens := lo.FilterMap(fields, func(f string, _ int) (string, bool) {
		f = strings.Trim(f, `"'`+"`")
		return f, f != ""
	})
	return lo.Uniq(tokens)
}

func collectTokens(node any, out *[]string) {
	switch v := node.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			*out = append(*out, s)
		}
	case []any:
		for _, item := range v {
			collectTokens(item, out)
		}
	case map[string]any:
		for _, key := range tokenKeys {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				*out = append(*out, strings.TrimSpace(s))
				return
			}
		}
		for _, key := range []string{"accounts", "tokens", "data"} {
			if nested, ok := v[key]; ok {
				collectTokens(nested, out)
			}
		}
	}
}
