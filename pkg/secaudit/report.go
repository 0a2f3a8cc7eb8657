// Package secaudit runs adversarial checks against the live
// permission configuration: grant auditing, injection probes,
// cross-chapter isolation sampling and role-assignment guard tests.
package secaudit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// Severity ranks a failed check.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Overall is the aggregate verdict of a run.
type Overall string

const (
	OverallSecure      Overall = "SECURE"
	OverallIssuesFound Overall = "ISSUES_FOUND"
	OverallCritical    Overall = "CRITICAL"
)

// Finding is the result of one check.
type Finding struct {
	Check    string   `json:"check"`
	Status   Status   `json:"status"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Details  []string `json:"details,omitempty"`
}

// Report is the result of a full validation run.
type Report struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Findings   []Finding `json:"findings"`
}

func newReport() *Report {
	return &Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Overall computes the aggregate verdict: any critical failure is
// CRITICAL, any other failure or error is ISSUES_FOUND.
func (r *Report) Overall() Overall {
	overall := OverallSecure
	for _, f := range r.Findings {
		if f.Status == StatusPass {
			continue
		}
		if f.Severity == SeverityCritical {
			return OverallCritical
		}
		overall = OverallIssuesFound
	}
	return overall
}

// Counts returns the number of passed, failed and errored checks.
func (r *Report) Counts() (passed, failed, errored int) {
	for _, f := range r.Findings {
		switch f.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusError:
			errored++
		}
	}
	return
}

// Render formats the report as human-readable text.
func (r *Report) Render() string {
	var b strings.Builder
	passed, failed, errored := r.Counts()
	fmt.Fprintf(&b, "Security validation %s\n", r.ID)
	fmt.Fprintf(&b, "Started:  %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished: %s\n", r.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Overall:  %s (%d passed, %d failed, %d errored)\n\n", r.Overall(), passed, failed, errored)
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "[%s] %s", f.Status, f.Check)
		if f.Status != StatusPass {
			fmt.Fprintf(&b, " (%s)", f.Severity)
		}
		fmt.Fprintf(&b, ": %s\n", f.Message)
		for _, d := range f.Details {
			fmt.Fprintf(&b, "    - %s\n", d)
		}
	}
	return b.String()
}
