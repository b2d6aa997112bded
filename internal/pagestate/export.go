package pagestate

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/j-veylop/cockpit-tui/internal/config"
	"github.com/j-veylop/cockpit-tui/internal/fsutil"
	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/logger"
)

// DefaultExportBase is used when a file name sanitises to nothing.
const DefaultExportBase = "accounts_export"

// ExportJob is the open export modal.
type ExportJob struct {
	IDs       []string
	JSON      string
	FileName  string
	SavedPath string
	// Hidden masks the JSON in the modal; it starts true.
	Hidden bool
}

var (
	illegalFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)
	fileSeparators   = regexp.MustCompile(`[\s_]+`)
)

// writeClipboard is swapped in tests.
var writeClipboard = clipboard.WriteAll

// SanitizeFileName makes a string safe as a file name on every common
// filesystem.
func SanitizeFileName(name string) string {
	name = illegalFileChars.ReplaceAllString(name, "")
	name = fileSeparators.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, "_. ")
	if name == "" {
		return DefaultExportBase
	}
	return name
}

// DefaultExportFileName is "{prefix}_{YYYY-MM-DD}.json" for the page's
// export prefix.
func (p *Page) DefaultExportFileName(now time.Time) string {
	return SanitizeFileName(p.cfg.ExportPrefix) + "_" + now.Format("2006-01-02") + ".json"
}

// DefaultExportDir is the directory exports are saved to by default.
func (p *Page) DefaultExportDir() string {
	if p.cfg.DownloadsDir != "" {
		return p.cfg.DownloadsDir
	}
	return config.DefaultDownloadsDir()
}

// Export returns the open export job, nil when the modal is closed.
func (p *Page) Export() *ExportJob {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.export == nil {
		return nil
	}
	job := *p.export
	return &job
}

// StartExport fetches the JSON of ids and opens the export modal.
func (p *Page) StartExport(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		p.setMessage(ToneError, p.t("export.noSelection", "Select at least one account to export", nil))
		return ErrNoIDs
	}
	data, err := p.cfg.Service.ExportJSON(ctx, ids)
	if err != nil {
		logger.Error("failed to export accounts", "platform", p.cfg.Platform, "error", err)
		p.setMessage(ToneError, p.t("export.failed", "Export failed: {{error}}", i18n.Params{"error": err.Error()}))
		return nil
	}

	job := &ExportJob{
		IDs:      append([]string(nil), ids...),
		JSON:     data,
		FileName: p.DefaultExportFileName(p.cfg.Now()),
		Hidden:   true,
	}
	p.mu.Lock()
	p.export = job
	p.mu.Unlock()
	return nil
}

// ToggleExportHidden switches the modal between masked and raw JSON.
func (p *Page) ToggleExportHidden() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.export != nil {
		p.export.Hidden = !p.export.Hidden
	}
}

// SaveExport writes the export JSON to path, or to the default directory and
// file name when path is empty. The file is private to the user.
func (p *Page) SaveExport(path string) {
	p.mu.RLock()
	job := p.export
	p.mu.RUnlock()
	if job == nil {
		return
	}
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(p.DefaultExportDir(), job.FileName)
	}

	if err := fsutil.WriteAtomic(path, []byte(job.JSON), 0o600); err != nil {
		logger.Error("failed to save export", "platform", p.cfg.Platform, "path", path, "error", err)
		p.setMessage(ToneError, p.t("export.failed", "Export failed: {{error}}", i18n.Params{"error": err.Error()}))
		return
	}

	p.mu.Lock()
	if p.export != nil {
		p.export.SavedPath = path
	}
	p.mu.Unlock()
	p.setMessage(ToneSuccess, p.t("export.saved", "Saved to {{path}}", i18n.Params{"path": path}))
}

// CopyExport puts the export JSON on the clipboard.
func (p *Page) CopyExport() {
	p.mu.RLock()
	job := p.export
	p.mu.RUnlock()
	if job == nil {
		return
	}
	if err := writeClipboard(job.JSON); err != nil {
		logger.Warn("failed to copy export", "platform", p.cfg.Platform, "error", err)
		p.setMessage(ToneError, p.t("export.failed", "Export failed: {{error}}", i18n.Params{"error": err.Error()}))
		return
	}
	p.setMessage(ToneSuccess, p.t("export.copied", "Copied to clipboard", nil))
}

// CanOpenExportDir reports whether the saved export lies inside the
// downloads directory, the only place the UI opens a file browser on.
func (p *Page) CanOpenExportDir() bool {
	p.mu.RLock()
	job := p.export
	p.mu.RUnlock()
	if job == nil || job.SavedPath == "" {
		return false
	}
	return CanOpenExportDir(job.SavedPath, p.DefaultExportDir())
}

// CanOpenExportDir reports whether savedPath is lexically inside dir.
func CanOpenExportDir(savedPath, dir string) bool {
	if savedPath == "" || dir == "" {
		return false
	}
	return fsutil.IsWithin(savedPath, dir)
}

// CloseExport discards the export job.
func (p *Page) CloseExport() {
	p.mu.Lock()
	p.export = nil
	p.mu.Unlock()
}
