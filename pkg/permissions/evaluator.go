package permissions

import (
	"context"
	"errors"
	"time"

	"github.com/verenigingen/chapterkit/pkg/directory"
	"github.com/verenigingen/chapterkit/pkg/observability"
)

// MemberRef names a member either by id or by an already-loaded
// record. Both forms answer identically; callers holding a record
// avoid the extra lookup.
type MemberRef struct {
	id     string
	record *directory.Member
}

// MemberID refers to a member by id.
func MemberID(id string) MemberRef { return MemberRef{id: id} }

// MemberRecord refers to a loaded member.
func MemberRecord(m *directory.Member) MemberRef { return MemberRef{record: m} }

func (r MemberRef) empty() bool { return r.record == nil && r.id == "" }

// ExpenseRef names a volunteer expense by id or loaded record.
type ExpenseRef struct {
	id     string
	record *directory.VolunteerExpense
}

// ExpenseID refers to an expense by id.
func ExpenseID(id string) ExpenseRef { return ExpenseRef{id: id} }

// ExpenseRecord refers to a loaded expense.
func ExpenseRecord(e *directory.VolunteerExpense) ExpenseRef { return ExpenseRef{record: e} }

func (r ExpenseRef) empty() bool { return r.record == nil && r.id == "" }

// DonorRef names a donor by id or loaded record.
type DonorRef struct {
	id     string
	record *directory.Donor
}

// DonorID refers to a donor by id.
func DonorID(id string) DonorRef { return DonorRef{id: id} }

// DonorRecord refers to a loaded donor.
func DonorRecord(d *directory.Donor) DonorRef { return DonorRef{record: d} }

func (r DonorRef) empty() bool { return r.record == nil && r.id == "" }

// TerminationRef names a termination request by id or loaded record.
type TerminationRef struct {
	id     string
	record *directory.TerminationRequest
}

// TerminationID refers to a termination request by id.
func TerminationID(id string) TerminationRef { return TerminationRef{id: id} }

// TerminationRecord refers to a loaded termination request.
func TerminationRecord(t *directory.TerminationRequest) TerminationRef {
	return TerminationRef{record: t}
}

func (r TerminationRef) empty() bool { return r.record == nil && r.id == "" }

// AddressRef names an address by id or loaded record. Address access
// runs entirely through the link table, so the record form saves no
// lookup; it exists for symmetry with the other refs.
type AddressRef struct {
	id     string
	record *directory.Address
}

// AddressID refers to an address by id.
func AddressID(id string) AddressRef { return AddressRef{id: id} }

// AddressRecord refers to a loaded address.
func AddressRecord(a *directory.Address) AddressRef { return AddressRef{record: a} }

func (r AddressRef) empty() bool { return r.record == nil && r.id == "" }

func (r AddressRef) addressID() string {
	if r.record != nil {
		return r.record.ID
	}
	return r.id
}

// Evaluator answers record-level access questions. Every method fails
// closed: malformed references deny quietly, backend failures deny and
// log.
type Evaluator struct {
	store    *directory.Store
	resolver *Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewEvaluator creates an evaluator. metrics may be nil.
func NewEvaluator(store *directory.Store, resolver *Resolver, logger *observability.Logger, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{store: store, resolver: resolver, logger: logger, metrics: metrics}
}

func (e *Evaluator) done(op string, start time.Time, allowed bool) bool {
	if e.metrics != nil {
		e.metrics.AccessCheck(op, allowed, time.Since(start))
	}
	return allowed
}

func (e *Evaluator) deny(op string, start time.Time, err error, user string) bool {
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		e.logger.WithError(err).WithField("user", user).WithField("operation", op).
			Error("access check failed, denying")
	}
	return e.done(op, start, false)
}

func (e *Evaluator) member(ctx context.Context, ref MemberRef) (*directory.Member, error) {
	if ref.record != nil {
		return ref.record, nil
	}
	return e.store.MemberByID(ctx, ref.id)
}

func (e *Evaluator) expense(ctx context.Context, ref ExpenseRef) (*directory.VolunteerExpense, error) {
	if ref.record != nil {
		return ref.record, nil
	}
	return e.store.ExpenseByID(ctx, ref.id)
}

func (e *Evaluator) donor(ctx context.Context, ref DonorRef) (*directory.Donor, error) {
	if ref.record != nil {
		return ref.record, nil
	}
	return e.store.DonorByID(ctx, ref.id)
}

func (e *Evaluator) termination(ctx context.Context, ref TerminationRef) (*directory.TerminationRequest, error) {
	if ref.record != nil {
		return ref.record, nil
	}
	return e.store.TerminationByID(ctx, ref.id)
}

// CanApproveExpense reports whether user may approve the expense.
// Expense admins always may; otherwise the user must hold an active
// financial-level board position in the expense's chapter.
func (e *Evaluator) CanApproveExpense(ctx context.Context, user string, ref ExpenseRef) bool {
	const op = "approve_expense"
	start := time.Now()
	if user == "" || ref.empty() {
		return e.done(op, start, false)
	}

	s, err := e.resolver.Resolve(ctx, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.IsTerminationAdmin() {
		return e.done(op, start, true)
	}

	exp, err := e.expense(ctx, ref)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	return e.done(op, start, s.TreasurerOf(exp.ChapterID))
}

// CanTerminateMember reports whether user may initiate termination of
// the member. Termination admins always may; a board member may when
// they share a chapter with the target.
func (e *Evaluator) CanTerminateMember(ctx context.Context, user string, ref MemberRef) bool {
	const op = "terminate_member"
	start := time.Now()
	if user == "" || ref.empty() {
		return e.done(op, start, false)
	}

	s, err := e.resolver.Resolve(ctx, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.IsTerminationAdmin() {
		return e.done(op, start, true)
	}
	if len(s.BoardChapters) == 0 && !s.OnNationalBoard() {
		return e.done(op, start, false)
	}

	m, err := e.member(ctx, ref)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.OnNationalBoard() {
		return e.done(op, start, true)
	}
	targetChapters, err := e.store.MemberChapters(ctx, m.ID)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	for _, c := range targetChapters {
		if s.OnBoardOf(c) {
			return e.done(op, start, true)
		}
	}
	return e.done(op, start, false)
}

// CanAccessTerminationFunctions reports whether the termination UI
// surfaces should be offered at all: termination admins and anyone
// holding an active board position.
func (e *Evaluator) CanAccessTerminationFunctions(ctx context.Context, user string) bool {
	const op = "access_termination_functions"
	start := time.Now()
	if user == "" {
		return e.done(op, start, false)
	}
	s, err := e.resolver.Resolve(ctx, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	return e.done(op, start, s.IsTerminationAdmin() || len(s.BoardChapters) > 0)
}

// CanViewMemberPayments reports whether user may see the member's
// payment data. The member's permission category gates non-admin
/// access: Admin Only restricts to admins, Public admits any signed-in
// viewer, and Board Only admits the member themselves and treasurers
// of their chapters.
func (e *Evaluator) CanViewMemberPayments(ctx context.Context, user string, ref MemberRef) bool {
	const op = "view_member_payments"
	start := time.Now()
	if user == "" || ref.empty() {
		return e.done(op, start, false)
	}

	s, err := e.resolver.Resolve(ctx, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.IsAdmin() {
		return e.done(op, start, true)
	}

	m, err := e.member(ctx, ref)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if m.PermissionCategory == directory.CategoryAdminOnly {
		return e.done(op, start, false)
	}
	if m.PermissionCategory == directory.CategoryPublic {
		return e.done(op, start, true)
	}
	if s.MemberID != "" && s.MemberID == m.ID {
		return e.done(op, start, true)
	}

	targetChapters, err := e.store.MemberChapters(ctx, m.ID)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	for _, c := range targetChapters {
		if s.TreasurerOf(c) {
			return e.done(op, start, true)
		}
	}
	return e.done(op, start, false)
}

// CanAccessMember reports whether user may open the member record.
// Admins, staff and national board members always may; a board member
// may within their chapters; everyone else reaches only their own
// record, by member link or by the legacy owner field.
func (e *Evaluator) CanAccessMember(ctx context.Context, user string, ref MemberRef) bool {
	const op = "access_member"
	start := time.Now()
	if user == "" || ref.empty() {
		return e.done(op, start, false)
	}

	s, err := e.resolver.Resolve(ctx, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.IsAdmin() || s.OnNationalBoard() || s.HasRole(directory.RoleStaff) {
		return e.done(op, start, true)
	}

	m, err := e.member(ctx, ref)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.MemberID != "" && s.MemberID == m.ID {
		return e.done(op, start, true)
	}
	if m.Owner != "" && m.Owner == user {
		return e.done(op, start, true)
	}
	if len(s.BoardChapters) > 0 {
		targetChapters, err := e.store.MemberChapters(ctx, m.ID)
		if err != nil {
			return e.deny(op, start, err, user)
		}
		for _, c := range targetChapters {
			if s.OnBoardOf(c) {
				return e.done(op, start, true)
			}
		}
	}
	return e.done(op, start, false)
}

// CanAccessDonor reports whether user may open the donor record.
// Non-admin access runs through the donor's member link, which is
/// re-validated at check time: a link to a vanished member grants
// nothing.
func (e *Evaluator) CanAccessDonor(ctx context.Context, user string, ref DonorRef) bool {
	const op = "access_donor"
	start := time.Now()
	if user == "" || ref.empty() {
		return e.done(op, start, false)
	}

	s, err := e.resolver.Resolve(ctx, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.IsAdmin() {
		return e.done(op, start, true)
	}
	if s.MemberID == "" {
		return e.done(op, start, false)
	}

	d, err := e.donor(ctx, ref)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if d.MemberID == nil || *d.MemberID == "" {
		return e.done(op, start, false)
	}
	if _, err := e.store.MemberByID(ctx, *d.MemberID); err != nil {
		return e.deny(op, start, err, user)
	}
	return e.done(op, start, *d.MemberID == s.MemberID)
}

// CanAccessAddress reports whether user may open the address. The
// address must carry a link to the user's member record, or to a
// contact with the user's email for records never migrated to member
// links.
func (e *Evaluator) CanAccessAddress(ctx context.Context, user string, ref AddressRef) bool {
	const op = "access_address"
	start := time.Now()
	if user == "" || ref.empty() {
		return e.done(op, start, false)
	}

	s, err := e.resolver.Resolve(ctx, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.IsAdmin() {
		return e.done(op, start, true)
	}

	id := ref.addressID()
	if s.MemberID != "" {
		linked, err := e.store.AddressLinkedToMember(ctx, id, s.MemberID)
		if err != nil {
			return e.deny(op, start, err, user)
		}
		if linked {
			return e.done(op, start, true)
		}
	}
	linked, err := e.store.AddressLinkedToContact(ctx, id, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	return e.done(op, start, linked)
}

// CanAccessTermination reports whether user may open the termination
// request. Termination admins, national board members and the affected
// member may; a chapter board member may when the affected member is
// in one of their chapters.
func (e *Evaluator) CanAccessTermination(ctx context.Context, user string, ref TerminationRef) bool {
	const op = "access_termination"
	start := time.Now()
	if user == "" || ref.empty() {
		return e.done(op, start, false)
	}

	s, err := e.resolver.Resolve(ctx, user)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.IsTerminationAdmin() || s.OnNationalBoard() {
		return e.done(op, start, true)
	}

	tr, err := e.termination(ctx, ref)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	if s.MemberID != "" && s.MemberID == tr.MemberID {
		return e.done(op, start, true)
	}
	if len(s.BoardChapters) == 0 {
		return e.done(op, start, false)
	}
	targetChapters, err := e.store.MemberChapters(ctx, tr.MemberID)
	if err != nil {
		return e.deny(op, start, err, user)
	}
	for _, c := range targetChapters {
		if s.OnBoardOf(c) {
			return e.done(op, start, true)
		}
	}
	return e.done(op, start, false)
}
