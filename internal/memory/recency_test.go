package memory

import (
	"strings"
	"testing"
	"time"
)

func TestRecencyLabelBuckets(t *testing.T) {
	day := 24 * time.Hour
	cases := []struct {
		age  time.Duration
		want string
	}{
		{0, "1 day ago"},
		{3 * day, "3 days ago"},
		{7 * day, "7 days ago"},
		{8 * day, "1 week ago"},
		{14 * day, "1 week ago"},
		{15 * day, "2 weeks ago"},
		{21 * day, "2 weeks ago"},
		{22 * day, "1 month ago"},
		{51 * day, "1 month ago"},
		{52 * day, "2 months ago"},
		{111 * day, "3 months ago"},
		{171 * day, "5 months ago"},
		{175 * day, "6 months ago"},
		{181 * day, "half a year ago"},
		{365 * day, "half a year ago"},
		{366 * day, "a long time ago"},
		{1000 * day, "a long time ago"},
	}
	for _, tc := range cases {
		if got := recencyLabel(tc.age); got != tc.want {
			t.Errorf("recencyLabel(%v) = %q, want %q", tc.age, got, tc.want)
		}
	}
}

func TestRecencyDigestGroupsNewestFirst(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Fact: "old fact", CreatedAt: now.AddDate(0, 0, -30)},
		{Fact: "fresh fact", CreatedAt: now.AddDate(0, 0, -3)},
		{Fact: "second recent fact", CreatedAt: now.AddDate(0, 0, -3)},
	}
	got := RecencyDigest(entries, now)

	freshIdx := strings.Index(got, "fresh fact")
	oldIdx := strings.Index(got, "old fact")
	if freshIdx < 0 || oldIdx < 0 {
		t.Fatalf("digest missing facts: %q", got)
	}
	if freshIdx > oldIdx {
		t.Errorf("newest bucket should come first, got %q", got)
	}
	if !strings.Contains(got, "1 month ago:") {
		t.Errorf("digest missing month bucket label: %q", got)
	}
	// Entries in the same bucket keep their input order.
	if strings.Index(got, "fresh fact") > strings.Index(got, "second recent fact") {
		t.Errorf("within-bucket order not preserved: %q", got)
	}
}

func TestRecencyDigestEmpty(t *testing.T) {
	if got := RecencyDigest(nil, time.Now()); got != "" {
		t.Fatalf("RecencyDigest(nil) = %q, want empty", got)
	}
}
