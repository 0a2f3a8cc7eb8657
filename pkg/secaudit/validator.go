package secaudit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verenigingen/chapterkit/pkg/audit"
	"github.com/verenigingen/chapterkit/pkg/directory"
	"github.com/verenigingen/chapterkit/pkg/observability"
	"github.com/verenigingen/chapterkit/pkg/permissions"
	"github.com/verenigingen/chapterkit/pkg/rolesync"
)

// DefaultSampleSize bounds the chapters, members and expenses each
// sampling check inspects.
const DefaultSampleSize = 10

// injectionProbes are hostile identity strings fed to the permission
// layer. None of them may surface in a filter expression or be granted
// access.
var injectionProbes = []string{
	`'; DROP TABLE members; --`,
	`" OR "1"="1`,
	`admin'--`,
	`1; DELETE FROM user_roles WHERE '1'='1`,
	`<script>alert(1)</script>@example.org`,
}

// Validator runs the security check suite against live configuration
// and data. All checks are read-only apart from the audit trail probe.
type Validator struct {
	store      *directory.Store
	resolver   *permissions.Resolver
	builder    *permissions.QueryBuilder
	evaluator  *permissions.Evaluator
	syncer     *rolesync.Syncer
	auditLog   audit.Logger
	logger     *observability.Logger
	metrics    *observability.Metrics
	sampleSize int
}

// NewValidator wires a validator. auditLog and metrics may be nil.
func NewValidator(
	store *directory.Store,
	resolver *permissions.Resolver,
	builder *permissions.QueryBuilder,
	evaluator *permissions.Evaluator,
	syncer *rolesync.Syncer,
	auditLog audit.Logger,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Validator {
	if auditLog == nil {
		auditLog = audit.NopLogger()
	}
	return &Validator{
		store:      store,
		resolver:   resolver,
		builder:    builder,
		evaluator:  evaluator,
		syncer:     syncer,
		auditLog:   auditLog,
		logger:     logger,
		metrics:    metrics,
		sampleSize: DefaultSampleSize,
	}
}

// SetSampleSize overrides the sampling bound.
func (v *Validator) SetSampleSize(n int) {
	if n > 0 {
		v.sampleSize = n
	}
}

// Run executes every check and returns the report.
func (v *Validator) Run(ctx context.Context) *Report {
	report := newReport()
	v.logger.WithField("run_id", report.ID).Info("security validation started")

	report.add(v.checkGrantConfiguration(ctx))
	report.add(v.checkInjectionProbes(ctx))
	report.add(v.checkCrossChapterIsolation(ctx))
	report.add(v.checkRoleAssignmentGuards(ctx))
	report.add(v.checkTreasurerBoundaries(ctx))
	report.add(v.checkAuditTrail(ctx, report.ID))

	report.FinishedAt = time.Now().UTC()
	overall := report.Overall()

	if v.metrics != nil {
		v.metrics.ValidationRunsTotal.WithLabelValues(string(overall)).Inc()
		counts := map[Severity]int{}
		for _, f := range report.Findings {
			if f.Status != StatusPass {
				counts[f.Severity]++
			}
		}
		for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityCritical} {
			v.metrics.ValidationFindings.WithLabelValues(string(sev)).Set(float64(counts[sev]))
		}
	}

	if err := v.auditLog.Log(ctx, &audit.Event{
		EventType: audit.EventTypeValidationRun,
		Status:    audit.EventStatusSuccess,
		Subject:   report.ID,
		Message:   string(overall),
	}); err != nil {
		v.logger.WithError(err).Error("failed to audit validation run")
	}
	v.logger.WithField("run_id", report.ID).WithField("overall", string(overall)).
		Info("security validation finished")
	return report
}

// checkGrantConfiguration audits the grant table against the allowed
// envelope: no deletes anywhere, cancel only on Volunteer Expense,
// amend only on Membership and Volunteer Expense, import never.
func (v *Validator) checkGrantConfiguration(ctx context.Context) Finding {
	const check = "grant_configuration"
	grants, err := v.store.Grants(ctx)
	if err != nil {
		return Finding{Check: check, Status: StatusError, Severity: SeverityWarning,
			Message: fmt.Sprintf("could not load grants: %v", err)}
	}

	var violations []string
	for _, g := range grants {
		where := fmt.Sprintf("%s / %s", g.RecordType, g.Role)
		if g.Delete {
			violations = append(violations, where+": delete granted")
		}
		if g.Cancel && g.RecordType != directory.RecordExpense {
			violations = append(violations, where+": cancel granted outside Volunteer Expense")
		}
		if g.Amend && g.RecordType != directory.RecordMembership && g.RecordType != directory.RecordExpense {
			violations = append(violations, where+": amend granted outside Membership and Volunteer Expense")
		}
		if g.Import {
			violations = append(violations, where+": import granted")
		}
	}
	if len(violations) > 0 {
		return Finding{Check: check, Status: StatusFail, Severity: SeverityWarning,
			Message: fmt.Sprintf("%d grant violations", len(violations)), Details: violations}
	}
	return Finding{Check: check, Status: StatusPass,
		Message: fmt.Sprintf("%d grants within the allowed envelope", len(grants))}
}

// checkInjectionProbes feeds hostile identity strings through the
// filter builder and evaluator. Filters must stay parameterized and
// every probe must be denied.
func (v *Validator) checkInjectionProbes(ctx context.Context) Finding {
	const check = "injection_probes"
	var violations []string

	for _, probe := range injectionProbes {
		f, err := v.builder.ForMember(ctx, probe)
		if err != nil {
			// A denied probe with an error is still fail-closed.
			if !f.IsDenyAll() {
				violations = append(violations, fmt.Sprintf("probe %q: error without deny-all filter", probe))
			}
			continue
		}
		if f.IsUnrestricted() {
			violations = append(violations, fmt.Sprintf("probe %q: unrestricted member filter", probe))
		}
		if containsLiteral(f.Expr, probe) {
			violations = append(violations, fmt.Sprintf("probe %q: value interpolated into filter expression", probe))
		}
		if v.evaluator.CanTerminateMember(ctx, probe, permissions.MemberID(probe)) {
			violations = append(violations, fmt.Sprintf("probe %q: termination check allowed", probe))
		}
		if v.evaluator.CanApproveExpense(ctx, probe, permissions.ExpenseID(probe)) {
			violations = append(violations, fmt.Sprintf("probe %q: expense approval allowed", probe))
		}
	}

	// The probes must have left the schema intact.
	if _, err := v.store.ChapterIDs(ctx, 1); err != nil {
		violations = append(violations, fmt.Sprintf("schema probe query failed after injection attempts: %v", err))
	}

	if len(violations) > 0 {
		return Finding{Check: check, Status: StatusFail, Severity: SeverityCritical,
			Message: fmt.Sprintf("%d injection violations", len(violations)), Details: violations}
	}
	return Finding{Check: check, Status: StatusPass,
		Message: fmt.Sprintf("%d hostile identities denied", len(injectionProbes))}
}

func containsLiteral(expr, probe string) bool {
	return probe != "" && strings.Contains(expr, probe)
}

// checkCrossChapterIsolation samples board users and verifies their
// member filter cannot reach members of chapters they do not serve.
func (v *Validator) checkCrossChapterIsolation(ctx context.Context) Finding {
	const check = "cross_chapter_isolation"
	users, err := v.store.ActiveBoardUsers(ctx)
	if err != nil {
		return Finding{Check: check, Status: StatusError, Severity: SeverityWarning,
			Message: fmt.Sprintf("could not list board users: %v", err)}
	}
	chapters, err := v.store.ChapterIDs(ctx, v.sampleSize)
	if err != nil {
		return Finding{Check: check, Status: StatusError, Severity: SeverityWarning,
			Message: fmt.Sprintf("could not list chapters: %v", err)}
	}
	if len(users) == 0 || len(chapters) < 2 {
		return Finding{Check: check, Status: StatusPass,
			Message: "not enough board users or chapters to sample"}
	}
	if len(users) > v.sampleSize {
		users = users[:v.sampleSize]
	}

	var violations []string
	checked := 0
	for _, user := range users {
		scopes, err := v.resolver.Resolve(ctx, user)
		if err != nil {
			violations = append(violations, fmt.Sprintf("user %s: scope resolution failed: %v", user, err))
			continue
		}
		if scopes.IsAdmin() || scopes.OnNationalBoard() {
			continue
		}
		filter, err := v.builder.ForMember(ctx, user)
		if err != nil {
			continue
		}
		if filter.IsUnrestricted() {
			violations = append(violations, fmt.Sprintf("user %s: unrestricted member filter without admin role", user))
			continue
		}

		for _, foreign := range chapters {
			if scopes.OnBoardOf(foreign) {
				continue
			}
			memberIDs, err := v.store.ChapterMemberIDs(ctx, foreign, v.sampleSize)
			if err != nil || len(memberIDs) == 0 {
				continue
			}
			// Exclude the user's own record, which may legitimately
			// sit in a foreign chapter.
			reachable, err := v.countReachableMembers(ctx, filter, memberIDs, scopes.MemberID)
			if err != nil {
				violations = append(violations, fmt.Sprintf("user %s vs %s: probe query failed: %v", user, foreign, err))
				continue
			}
			checked++
			if reachable > 0 {
				violations = append(violations,
					fmt.Sprintf("user %s reaches %d members of foreign chapter %s", user, reachable, foreign))
			}
		}
	}

	if len(violations) > 0 {
		return Finding{Check: check, Status: StatusFail, Severity: SeverityCritical,
			Message: fmt.Sprintf("%d isolation violations", len(violations)), Details: violations}
	}
	return Finding{Check: check, Status: StatusPass,
		Message: fmt.Sprintf("%d user/chapter pairs isolated", checked)}
}

func (v *Validator) countReachableMembers(ctx context.Context, filter permissions.Filter, memberIDs []string, ownMemberID string) (int, error) {
	ids := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != ownMemberID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	combined := permissions.And(filter, permissions.In("id", ids))
	var n int
	err := v.store.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM members"+combined.WhereClause(), combined.Args...).Scan(&n)
	return n, err
}

// checkRoleAssignmentGuards verifies the synchronizer refuses
// identities it cannot ground in the directory: fabricated accounts,
// empty identities, and real accounts without a member record. The
// member-less probe samples live data and mutates nothing, since the
// refusal happens before any role change.
func (v *Validator) checkRoleAssignmentGuards(ctx context.Context) Finding {
	const check = "role_assignment_guards"
	probe := fmt.Sprintf("probe-%s@invalid.example", uuid.NewString())

	var violations []string
	if _, err := v.syncer.SyncIdentity(ctx, probe); !errors.Is(err, rolesync.ErrUnknownIdentity) {
		violations = append(violations, fmt.Sprintf("unknown identity %s was not refused (err=%v)", probe, err))
	}
	if _, err := v.syncer.SyncIdentity(ctx, ""); !errors.Is(err, rolesync.ErrUnknownIdentity) {
		violations = append(violations, "empty identity was not refused")
	}

	orphans, err := v.store.MemberlessUsers(ctx, 1)
	if err != nil {
		return Finding{Check: check, Status: StatusError, Severity: SeverityWarning,
			Message: fmt.Sprintf("could not sample member-less accounts: %v", err)}
	}
	message := "ungrounded identities refused"
	if len(orphans) == 0 {
		message += "; no member-less account to sample"
	} else if _, err := v.syncer.SyncIdentity(ctx, orphans[0]); !errors.Is(err, rolesync.ErrNoMemberRecord) {
		violations = append(violations,
			fmt.Sprintf("member-less account %s was not refused (err=%v)", orphans[0], err))
	}

	if len(violations) > 0 {
		return Finding{Check: check, Status: StatusFail, Severity: SeverityWarning,
			Message: "synchronizer accepted ungrounded identities", Details: violations}
	}
	return Finding{Check: check, Status: StatusPass, Message: message}
}

// checkTreasurerBoundaries verifies expense approval stays inside
// treasurer chapters on sampled data.
func (v *Validator) checkTreasurerBoundaries(ctx context.Context) Finding {
	const check = "treasurer_boundaries"
	users, err := v.store.ActiveBoardUsers(ctx)
	if err != nil {
		return Finding{Check: check, Status: StatusError, Severity: SeverityWarning,
			Message: fmt.Sprintf("could not list board users: %v", err)}
	}
	expenses, err := v.store.SampleExpenses(ctx, v.sampleSize)
	if err != nil {
		return Finding{Check: check, Status: StatusError, Severity: SeverityWarning,
			Message: fmt.Sprintf("could not sample expenses: %v", err)}
	}
	if len(users) == 0 || len(expenses) == 0 {
		return Finding{Check: check, Status: StatusPass,
			Message: "no board users or expenses to sample"}
	}
	if len(users) > v.sampleSize {
		users = users[:v.sampleSize]
	}

	var violations []string
	checked := 0
	for _, user := range users {
		scopes, err := v.resolver.Resolve(ctx, user)
		if err != nil || scopes.IsTerminationAdmin() {
			continue
		}
		for _, exp := range expenses {
			allowed := v.evaluator.CanApproveExpense(ctx, user, permissions.ExpenseRecord(&exp))
			checked++
			if allowed && !scopes.TreasurerOf(exp.ChapterID) {
				violations = append(violations,
					fmt.Sprintf("user %s approves expense %s outside treasurer chapters", user, exp.ID))
			}
			if !allowed && scopes.TreasurerOf(exp.ChapterID) {
				violations = append(violations,
					fmt.Sprintf("treasurer %s denied expense %s in own chapter", user, exp.ID))
			}
		}
	}

	if len(violations) > 0 {
		return Finding{Check: check, Status: StatusFail, Severity: SeverityCritical,
			Message: fmt.Sprintf("%d approval boundary violations", len(violations)), Details: violations}
	}
	return Finding{Check: check, Status: StatusPass,
		Message: fmt.Sprintf("%d user/expense pairs within boundaries", checked)}
}

// checkAuditTrail writes a probe event and reads it back, proving the
// trail is live.
func (v *Validator) checkAuditTrail(ctx context.Context, runID string) Finding {
	const check = "audit_trail"
	probeSubject := "trail-probe-" + runID
	if err := v.auditLog.Log(ctx, &audit.Event{
		EventType: audit.EventTypeValidationFinding,
		Status:    audit.EventStatusSuccess,
		Subject:   probeSubject,
		Message:   "audit trail probe",
	}); err != nil {
		return Finding{Check: check, Status: StatusFail, Severity: SeverityWarning,
			Message: fmt.Sprintf("could not write audit probe: %v", err)}
	}

	events, err := v.auditLog.Search(ctx, audit.SearchFilter{Subject: probeSubject, Limit: 1})
	if err != nil {
		return Finding{Check: check, Status: StatusError, Severity: SeverityWarning,
			Message: fmt.Sprintf("could not read audit trail: %v", err)}
	}
	if len(events) == 0 {
		return Finding{Check: check, Status: StatusFail, Severity: SeverityWarning,
			Message: "audit probe event not found after write"}
	}
	return Finding{Check: check, Status: StatusPass, Message: "audit trail verified"}
}
