// Package report turns raw Redmine time entries into per-user markdown
// reports.
package report

import (
	"cmp"
	"slices"
	"strings"

	"timereport/api/internal/redmine"
)

// AggregatedIssue is one user's rollup of the time spent on a single issue.
type AggregatedIssue struct {
	ID    uint64
	Hours float64
	// Notes holds one "  <comment>  \n" line per contributing entry.
	Notes string
}

// Aggregate groups entries by issue. Output order is unspecified; see Rank.
//
// Entries inside a group are ordered by (spent on, entry id) before their
// hours are summed, so the float result does not depend on input order.
func Aggregate(entries []redmine.TimeEntry) []AggregatedIssue {
	groups := make(map[uint64][]redmine.TimeEntry)
	order := make([]uint64, 0)
	for _, entry := range entries {
		if _, ok := groups[entry.IssueID]; !ok {
			order = append(order, entry.IssueID)
		}
		groups[entry.IssueID] = append(groups[entry.IssueID], entry)
	}

	issues := make([]AggregatedIssue, 0, len(order))
	for _, issueID := range order {
		group := groups[issueID]
		slices.SortFunc(group, compareEntries)

		var (
			hours float64
			notes strings.Builder
		)
		for _, entry := range group {
			hours += entry.Hours
			notes.WriteString("  ")
			notes.WriteString(entry.Comments)
			notes.WriteString("  \n")
		}
		issues = append(issues, AggregatedIssue{ID: issueID, Hours: hours, Notes: notes.String()})
	}
	return issues
}

func compareEntries(a, b redmine.TimeEntry) int {
	if c := a.SpentOn.Compare(b.SpentOn); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Rank orders issues by hours descending, then issue id ascending.
// The input slice is sorted in place and returned.
func Rank(issues []AggregatedIssue) []AggregatedIssue {
	slices.SortFunc(issues, func(a, b AggregatedIssue) int {
		if c := cmp.Compare(b.Hours, a.Hours); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return issues
}
