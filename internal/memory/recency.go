package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// recencyLabel maps the age of an entry to a human-readable bucket.
// Thresholds are exclusive upper bounds in whole days.
func recencyLabel(age time.Duration) string {
	days := int(age.Hours() / 24)
	switch {
	case days < 8:
		d := days
		if d < 1 {
			d = 1
		}
		if d == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", d)
	case days < 15:
		return "1 week ago"
	case days < 22:
		return "2 weeks ago"
	case days < 52:
		return "1 month ago"
	case days < 82:
		return "2 months ago"
	case days < 112:
		return "3 months ago"
	case days < 142:
		return "4 months ago"
	case days < 172:
		return "5 months ago"
	case days < 181:
		return "6 months ago"
	case days < 366:
		return "half a year ago"
	default:
		return "a long time ago"
	}
}

// bucketRank orders labels newest-first for digest output. Day-level
// buckets get one rank per day so each rank maps to exactly one label.
// Entries within a bucket keep their retrieval order.
func bucketRank(age time.Duration) int {
	days := int(age.Hours() / 24)
	if days < 8 {
		if days < 1 {
			days = 1
		}
		return days
	}
	bounds := []int{15, 22, 52, 82, 112, 142, 172, 181, 366}
	for i, b := range bounds {
		if days < b {
			return 8 + i
		}
	}
	return 8 + len(bounds)
}

// RecencyDigest renders retrieved memories grouped by how long ago
// each fact was recorded, newest bucket first. An empty input yields
// an empty string.
func RecencyDigest(entries []Entry, now time.Time) string {
	if len(entries) == 0 {
		return ""
	}
	type group struct {
		rank  int
		label string
		facts []string
	}
	byRank := map[int]*group{}
	var groups []*group
	for _, e := range entries {
		age := now.Sub(e.CreatedAt)
		if age < 0 {
			age = 0
		}
		rank := bucketRank(age)
		g, ok := byRank[rank]
		if !ok {
			g = &group{rank: rank, label: recencyLabel(age)}
			byRank[rank] = g
			groups = append(groups, g)
		}
		g.facts = append(g.facts, e.Fact)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].rank < groups[j].rank })

	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(g.label)
		b.WriteString(":\n")
		for _, f := range g.facts {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
