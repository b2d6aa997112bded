package pagestate

import (
	"context"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/j-veylop/cockpit-tui/internal/i18n"
	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/models"
)

// Filters is a snapshot of the list controls.
type Filters struct {
	Search     string
	TypeFilter string
	SortKey    SortKey
	Tags       []string
	SortDesc   bool
	GroupByTag bool
}

// Filters returns the current list controls.
func (p *Page) Filters() Filters {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Filters{
		Search:     p.search,
		TypeFilter: p.typeFilter,
		SortKey:    p.sortKey,
		Tags:       slices.Clone(p.tagFilter),
		SortDesc:   p.sortDesc,
		GroupByTag: p.groupByTag,
	}
}

// SetSearch sets the search text.
func (p *Page) SetSearch(query string) {
	p.mu.Lock()
	p.search = query
	p.mu.Unlock()
}

// SetTypeFilter restricts the list to one plan class; empty shows all.
func (p *Page) SetTypeFilter(class string) {
	p.mu.Lock()
	p.typeFilter = strings.ToLower(strings.TrimSpace(class))
	p.mu.Unlock()
}

// ToggleTagFilter adds or removes a tag from the tag filter.
func (p *Page) ToggleTagFilter(tag string) {
	tag = models.NormalizeTag(tag)
	if tag == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.tagFilter, tag) {
		p.tagFilter = lo.Without(p.tagFilter, tag)
		return
	}
	p.tagFilter = append(p.tagFilter, tag)
}

// ClearTagFilter empties the tag filter.
func (p *Page) ClearTagFilter() {
	p.mu.Lock()
	p.tagFilter = nil
	p.mu.Unlock()
}

// SetSortKey changes the sort value. Unknown keys are ignored.
func (p *Page) SetSortKey(key SortKey) {
	switch key {
	case SortCreated, SortPlanEnd, SortQuota:
	default:
		return
	}
	p.mu.Lock()
	p.sortKey = key
	p.mu.Unlock()
}

// ToggleSortDirection flips between ascending and descending.
func (p *Page) ToggleSortDirection() {
	p.mu.Lock()
	p.sortDesc = !p.sortDesc
	p.mu.Unlock()
}

// SetGroupByTag turns the tag-grouped view on or off.
func (p *Page) SetGroupByTag(on bool) {
	p.mu.Lock()
	p.groupByTag = on
	p.mu.Unlock()
}

// Visible returns the filtered and sorted accounts.
func (p *Page) Visible() []Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visibleLocked()
}

func (p *Page) visibleLocked() []Item {
	query := strings.ToLower(strings.TrimSpace(p.search))
	items := make([]Item, 0, len(p.accounts))
	for _, acc := range p.accounts {
		item := Item{Account: acc, Presentation: p.presentations[acc.Meta().ID]}
		if query != "" && !p.matchesSearch(item, query) {
			continue
		}
		if p.typeFilter != "" && strings.ToLower(item.Presentation.PlanClass) != p.typeFilter {
			continue
		}
		if len(p.tagFilter) > 0 && !lo.SomeBy(p.tagFilter, func(tag string) bool { return models.HasTag(acc, tag) }) {
			continue
		}
		items = append(items, item)
	}
	p.sortItems(items)
	return items
}

func (p *Page) matchesSearch(item Item, query string) bool {
	fields := []string{item.Presentation.DisplayName, item.Account.Label()}
	if p.cfg.SearchFields != nil {
		fields = append(fields, p.cfg.SearchFields(item.Account)...)
	}
	return lo.SomeBy(fields, func(f string) bool {
		return strings.Contains(strings.ToLower(f), query)
	})
}

func (p *Page) sortItems(items []Item) {
	desc := p.sortDesc
	switch p.sortKey {
	case SortPlanEnd:
		slices.SortStableFunc(items, func(a, b Item) int {
			return compareNilLast(a.Presentation.CycleEndsAt, b.Presentation.CycleEndsAt, desc)
		})
	case SortQuota:
		values := make(map[string]*float64, len(items))
		for _, it := range items {
			values[it.Account.Meta().ID] = p.cfg.QuotaValue(it.Account, it.Presentation)
		}
		slices.SortStableFunc(items, func(a, b Item) int {
			return compareNilLast(values[a.Account.Meta().ID], values[b.Account.Meta().ID], desc)
		})
	default:
		slices.SortStableFunc(items, func(a, b Item) int {
			return compareNilLast(createdAt(a.Account), createdAt(b.Account), desc)
		})
	}
}

func createdAt(acc models.Account) *int64 {
	if ts := acc.Meta().CreatedAt; ts > 0 {
		return &ts
	}
	return nil
}

// GroupByTag buckets the visible accounts by tag. An account appears once per
// tag it carries; with a tag filter active only the filtered tags form
// buckets. Untagged accounts share one bucket that always comes last.
func (p *Page) GroupByTag() []TagGroup {
	p.mu.RLock()
	items := p.visibleLocked()
	filter := slices.Clone(p.tagFilter)
	p.mu.RUnlock()

	buckets := map[string][]Item{}
	var untagged []Item
	for _, it := range items {
		tags := models.NormalizeTags(it.Account.Meta().Tags)
		if len(filter) > 0 {
			tags = lo.Intersect(filter, tags)
		}
		if len(tags) == 0 {
			untagged = append(untagged, it)
			continue
		}
		for _, tag := range tags {
			buckets[tag] = append(buckets[tag], it)
		}
	}

	names := lo.Keys(buckets)
	slices.Sort(names)
	groups := make([]TagGroup, 0, len(names)+1)
	for _, tag := range names {
		groups = append(groups, TagGroup{Tag: tag, Label: tag, Items: buckets[tag]})
	}
	if len(untagged) > 0 {
		groups = append(groups, TagGroup{Label: p.t("common.untagged", "Untagged", nil), Items: untagged})
	}
	return groups
}

// AllTags returns every normalised tag in use, sorted.
func (p *Page) AllTags() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var tags []string
	for _, acc := range p.accounts {
		for _, tag := range acc.Meta().Tags {
			if tag = models.NormalizeTag(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	tags = lo.Uniq(tags)
	slices.Sort(tags)
	return tags
}

// SaveTags replaces the tags of one account.
func (p *Page) SaveTags(ctx context.Context, id string, tags []string) {
	if _, err := p.cfg.Service.UpdateTags(ctx, id, tags); err != nil {
		logger.Error("failed to save tags", "platform", p.cfg.Platform, "id", id, "error", err)
		p.setMessage(ToneError, err.Error())
		return
	}
	p.setMessage(ToneSuccess, p.t("accounts.tagsSaved", "Tags saved", nil))
	_ = p.Load(ctx)
}

// DeleteTag removes a tag from every account carrying it, one account at a
// time, then drops it from the tag filter. Accounts already updated stay
// updated when a later one fails.
func (p *Page) DeleteTag(ctx context.Context, tag string) []ItemResult {
	tag = models.NormalizeTag(tag)
	if tag == "" {
		return nil
	}

	p.mu.RLock()
	targets := lo.Filter(p.accounts, func(acc models.Account, _ int) bool { return models.HasTag(acc, tag) })
	p.mu.RUnlock()

	results := make([]ItemResult, 0, len(targets))
	for _, acc := range targets {
		meta := acc.Meta()
		rest := lo.Filter(meta.Tags, func(t string, _ int) bool { return models.NormalizeTag(t) != tag })
		_, err := p.cfg.Service.UpdateTags(ctx, meta.ID, rest)
		if err != nil {
			logger.Error("failed to remove tag", "platform", p.cfg.Platform, "id", meta.ID, "tag", tag, "error", err)
		}
		results = append(results, ItemResult{ID: meta.ID, Err: err})
	}

	p.mu.Lock()
	p.tagFilter = lo.Without(p.tagFilter, tag)
	p.mu.Unlock()

	ok := lo.CountBy(results, func(r ItemResult) bool { return r.Err == nil })
	tone := ToneSuccess
	if ok < len(results) {
		tone = ToneError
	}
	p.setMessage(tone, p.t("accounts.tagDeleted", `Removed tag "{{tag}}" from {{count}} account(s)`, i18n.Params{"tag": tag, "count": ok}))
	_ = p.Load(ctx)
	return results
}
