package keyboard

import (
	"strconv"
	"strings"

	"github.com/Proton-105/tarot-bot/internal/i18n"
)

// Pager describes the page being shown out of Total pages. Pages are 1-based.
type Pager struct {
	Page  int
	Total int
}

// HasPrev reports whether a previous page exists.
func (p Pager) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pager) HasNext() bool { return p.Page < p.Total }

// Paginate cuts items into pages of size and returns the requested one.
// Out-of-range pages are clamped, so an empty slice still yields page 1 of 1.
func Paginate[T any](items []T, page, size int) ([]T, Pager) {
	if size < 1 {
		size = len(items)
	}

	total := 1
	if size > 0 && len(items) > size {
		total = (len(items) + size - 1) / size
	}
	page = max(1, min(page, total))

	if len(items) == 0 {
		return items, Pager{Page: page, Total: total}
	}

	start := (page - 1) * size
	end := min(start+size, len(items))
	return items[start:end], Pager{Page: page, Total: total}
}

// PaginationButtons renders prev, current and next buttons for p. Every button
// carries its target page number as data under the shared action.
func PaginationButtons(t i18n.Translator, action string, p Pager) []InlineButton {
	if p.Total < 1 {
		p.Total = 1
	}
	p.Page = max(1, min(p.Page, p.Total))

	pageButton := func(text string, page int) InlineButton {
		return InlineButton{Text: text, Unique: action, Data: strconv.Itoa(page)}
	}

	buttons := make([]InlineButton, 0, 3)
	if p.HasPrev() {
		buttons = append(buttons, pageButton(translated(t, "pagination.prev", "◀️"), p.Page-1))
	}
	buttons = append(buttons, pageButton(pageLabel(t, p), p.Page))
	if p.HasNext() {
		buttons = append(buttons, pageButton(translated(t, "pagination.next", "▶️"), p.Page+1))
	}

	return buttons
}

// translated falls back when the catalog has no entry for key.
func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	if text := strings.TrimSpace(t.T(key)); text != "" && text != key {
		return text
	}
	return fallback
}

func pageLabel(t i18n.Translator, p Pager) string {
	if translated(t, "pagination.page", "") == "" {
		return strconv.Itoa(p.Page) + "/" + strconv.Itoa(p.Total)
	}
	return t.Tf("pagination.page", p.Page, p.Total)
}
