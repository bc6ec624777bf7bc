package redmine

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar date format used on the Redmine wire.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// User is the owner of a time entry.
type User struct {
	ID   uint64
	Name string
}

// TimeEntry is a single logged unit of work.
type TimeEntry struct {
	ID       uint64
	Hours    float64
	Comments string
	User     User
	IssueID  uint64
	SpentOn  time.Time
}

// Issue is the subset of a Redmine issue the reports need.
type Issue struct {
	ID      uint64
	Subject string
}

// Wire shapes. Pointer fields are required; a nil pointer after decoding
// means the backend omitted the field.

type wireRef struct {
	ID   *uint64 `json:"id"`
	Name string  `json:"name"`
}

type wireTimeEntry struct {
	ID       *uint64  `json:"id"`
	Hours    *float64 `json:"hours"`
	Comments *string  `json:"comments"`
	User     *wireRef `json:"user"`
	Issue    *wireRef `json:"issue"`
	SpentOn  *string  `json:"spent_on"`
}

type timeEntriesPage struct {
	TotalCount  *int             `json:"total_count"`
	TimeEntries *[]wireTimeEntry `json:"time_entries"`
}

type wireIssue struct {
	ID      *uint64 `json:"id"`
	Subject *string `json:"subject"`
}

type issuesPage struct {
	Issues *[]wireIssue `json:"issues"`
}

func (w wireTimeEntry) toTimeEntry() (TimeEntry, error) {
	switch {
	case w.ID == nil:
		return TimeEntry{}, fmt.Errorf("time entry: missing id")
	case w.Hours == nil:
		return TimeEntry{}, fmt.Errorf("time entry %d: missing hours", *w.ID)
	case w.Comments == nil:
		return TimeEntry{}, fmt.Errorf("time entry %d: missing comments", *w.ID)
	case w.User == nil || w.User.ID == nil:
		return TimeEntry{}, fmt.Errorf("time entry %d: missing user.id", *w.ID)
	case w.Issue == nil || w.Issue.ID == nil:
		return TimeEntry{}, fmt.Errorf("time entry %d: missing issue.id", *w.ID)
	case w.SpentOn == nil:
		return TimeEntry{}, fmt.Errorf("time entry %d: missing spent_on", *w.ID)
	}
	if *w.Hours < 0 || math.IsNaN(*w.Hours) || math.IsInf(*w.Hours, 0) {
		return TimeEntry{}, fmt.Errorf("time entry %d: invalid hours %v", *w.ID, *w.Hours)
	}
	spentOn, err := ParseDate(*w.SpentOn)
	if err != nil {
		return TimeEntry{}, fmt.Errorf("time entry %d: spent_on: %w", *w.ID, err)
	}
	return TimeEntry{
		ID:       *w.ID,
		Hours:    *w.Hours,
		Comments: *w.Comments,
		User:     User{ID: *w.User.ID, Name: w.User.Name},
		IssueID:  *w.Issue.ID,
		SpentOn:  spentOn,
	}, nil
}

func (w wireIssue) toIssue() (Issue, error) {
	if w.ID == nil {
		return Issue{}, fmt.Errorf("issue: missing id")
	}
	if w.Subject == nil {
		return Issue{}, fmt.Errorf("issue %d: missing subject", *w.ID)
	}
	return Issue{ID: *w.ID, Subject: *w.Subject}, nil
}
