package report

import (
	"fmt"
	"strings"

	"timereport/api/internal/redmine"
)

// Render writes one markdown block per issue, in the given order:
//
//	* **#<id>: <subject>**
//
//	  <note>
//
// Every issue must have an entry in titles; a missing one panics.
func Render(ranked []AggregatedIssue, titles map[uint64]redmine.Issue) string {
	var b strings.Builder
	for _, issue := range ranked {
		title, ok := titles[issue.ID]
		if !ok {
			panic(fmt.Sprintf("report: no title fetched for issue %d", issue.ID))
		}
		fmt.Fprintf(&b, "* **#%d: %s**\n\n%s\n", issue.ID, strings.TrimSpace(title.Subject), issue.Notes)
	}
	return b.String()
}
