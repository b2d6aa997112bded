// Package i18n resolves user-facing copy from embedded catalogs.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/j-veylop/cockpit-tui/internal/logger"
)

//go:embed locales/*.json
var localeFS embed.FS

// Params are interpolated into {{name}} placeholders.
type Params map[string]any

var (
	supported = []language.Tag{language.English, language.SimplifiedChinese}
	matcher   = language.NewMatcher(supported)

	placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
)

// Translator looks keys up in one catalog and falls back to caller text.
type Translator struct {
	messages map[string]string
	tag      language.Tag
}

// New builds a translator for the best supported match of locale.
func New(locale string) *Translator {
	desired, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(desired) == 0 {
		desired = []language.Tag{language.English}
	}
	_, idx, _ := matcher.Match(desired...)
	tag := supported[idx]

	tr := &Translator{tag: tag, messages: map[string]string{}}
	if err := tr.load(catalogFile(tag)); err != nil {
		logger.Warn("failed to load locale catalog", "locale", tag.String(), "error", err)
	}
	return tr
}

func catalogFile(tag language.Tag) string {
	if tag == language.SimplifiedChinese {
		return "locales/zh-CN.json"
	}
	return "locales/en.json"
}

func (tr *Translator) load(name string) error {
	data, err := localeFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	flatten("", nested, tr.messages)
	return nil
}

// flatten turns {"a":{"b":"x"}} into "a.b" -> "x".
func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		}
	}
}

// Locale returns the resolved BCP 47 tag.
func (tr *Translator) Locale() string {
	return tr.tag.String()
}

// T returns the catalog entry for key, else fallback, else key itself.
func (tr *Translator) T(key, fallback string, params Params) string {
	msg, ok := "", false
	if tr != nil {
		msg, ok = tr.messages[key]
	}
	if !ok {
		msg = fallback
	}
	if msg == "" {
		msg = key
	}
	if len(params) == 0 {
		return msg
	}
	return placeholderRe.ReplaceAllStringFunc(msg, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-2])
		if v, ok := params[name]; ok {
			return fmt.Sprint(v)
		}
		return m
	})
}
