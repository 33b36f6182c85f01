package coordinate

import (
	"sort"
	"time"

	"github.com/use-agent/chronicle/models"
	"github.com/use-agent/chronicle/pool"
)

// Timeline is the merged, ordered output of one collection.
type Timeline struct {
	CaseURL string

	// DiscoveredIn and CollectedIn break down where the time went:
	// list discovery versus the item pipelines.
	DiscoveredIn time.Duration
	CollectedIn  time.Duration

	// Entries is sorted ascending by OccurredAt.
	Entries []models.Record

	// Unparsed holds records without a usable timestamp, including error
	// placeholders. They are reported alongside the timeline, never dropped.
	Unparsed []models.Record
}

// Total is the number of collected records across both lists.
func (t *Timeline) Total() int {
	return len(t.Entries) + len(t.Unparsed)
}

// Failed counts the error placeholders.
func (t *Timeline) Failed() int {
	n := 0
	for _, rec := range t.Unparsed {
		if rec.IsError() {
			n++
		}
	}
	return n
}

// buildTimeline merges the batch result sets and splits records into the
// sorted timeline and the unparsed side list.
func buildTimeline(caseURL string, sets ...*pool.ResultSet) *Timeline {
	tl := &Timeline{CaseURL: caseURL}

	for _, set := range sets {
		if set == nil {
			continue
		}
		for _, rec := range set.Records() {
			if rec.OccurredAt == nil {
				tl.Unparsed = append(tl.Unparsed, rec)
				continue
			}
			tl.Entries = append(tl.Entries, rec)
		}
	}

	sort.SliceStable(tl.Entries, func(i, j int) bool {
		return tl.Entries[i].OccurredAt.Before(*tl.Entries[j].OccurredAt)
	})
	// Deterministic order for the side list too, so identical runs render
	// identical reports.
	sort.SliceStable(tl.Unparsed, func(i, j int) bool {
		return tl.Unparsed[i].SourceURL < tl.Unparsed[j].SourceURL
	})

	return tl
}
