// Package verification runs the lecture-date fix smoke flow against the
// backend's data verification endpoints.
package verification

import (
	"strings"

	"github.com/classroomapp/adminconsole/internal/adminapi"
)

// LectureNoDateCode is the issue code the backend uses for lectures
// without a date.
const LectureNoDateCode = "LECTURE_NO_DATE"

// NeedsLectureFix reports whether report shows anything the lecture-date
// fix could address: a LECTURE_NO_DATE issue, an issue message mentioning
// "lecture" or "date", or any warning.
func NeedsLectureFix(report *adminapi.VerificationReport) bool {
	if report == nil {
		return false
	}
	if report.WarningIssues != 0 {
		return true
	}
	for _, issue := range report.Issues {
		if issue.Code == LectureNoDateCode ||
			strings.Contains(issue.Message, "lecture") ||
			strings.Contains(issue.Message, "date") {
			return true
		}
	}
	return false
}

// Delta is the change between two verification reports, before minus after.
type Delta struct {
	IssuesReduced   int `json:"issuesReduced"`
	WarningsReduced int `json:"warningsReduced"`
}

// Compare returns how many issues and warnings disappeared between reports.
func Compare(before, after *adminapi.VerificationReport) Delta {
	return Delta{
		IssuesReduced:   before.TotalIssues - after.TotalIssues,
		WarningsReduced: before.WarningIssues - after.WarningIssues,
	}
}

// Outcome classifies the result of a fix.
type Outcome string

const (
	OutcomeImproved      Outcome = "improved"
	OutcomeResolved      Outcome = "resolved"
	OutcomeNoImprovement Outcome = "no-improvement"
)

// Outcome classifies d given the post-fix report.
func (d Delta) Outcome(after *adminapi.VerificationReport) Outcome {
	switch {
	case d.IssuesReduced > 0 || d.WarningsReduced > 0:
		return OutcomeImproved
	case after.TotalIssues == 0:
		return OutcomeResolved
	default:
		return OutcomeNoImprovement
	}
}
