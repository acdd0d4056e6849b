// Package report renders batch results into user-facing text.
package report

import (
	"fmt"
	"sort"
	"strings"

	"fragwatch/internal/checker"
	"fragwatch/internal/source"
)

const timeLayout = "02-01-2006 15:04"

// Format renders one checking pass as a numbered list sorted by number.
// The checker gives no ordering guarantee, so display order is imposed here.
func Format(res checker.Result) string {
	items := make([]checker.Item, len(res.Items))
	copy(items, res.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Check result (%s):\n\n", res.StartedAt.Format(timeLayout))
	for i, it := range items {
		fmt.Fprintf(&b, "%d. +%s: %s\n", i+1, it.Number, it.Status.Mark())
	}
	if res.Cancelled {
		b.WriteString("\n⚠️ Check was cut short; the list above is partial.\n")
	}
	return b.String()
}

// FormatRestricted renders the restricted-only view from cached items.
func FormatRestricted(items []checker.Item) string {
	if len(items) == 0 {
		return "🔒 No restricted numbers in the last check."
	}
	sorted := make([]checker.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	var b strings.Builder
	b.WriteString("🔒 Restricted numbers:\n\n")
	for i, it := range sorted {
		fmt.Fprintf(&b, "%d. +%s\n", i+1, it.Number)
	}
	return b.String()
}

// Summary renders a one-line digest of a pass, suitable for log lines.
func Summary(res checker.Result) string {
	var avail, restricted, notFound, failed int
	for _, it := range res.Items {
		switch it.Status {
		case source.StatusRestricted:
			restricted++
		case source.StatusNotFound:
			notFound++
		case source.StatusError:
			failed++
		default:
			avail++
		}
	}
	return fmt.Sprintf("✅ %d · 🔒 %d · ❓ %d · ⚠️ %d", avail, restricted, notFound, failed)
}
