package permissions

import (
	"context"
	"strings"

	"github.com/verenigingen/chapterkit/pkg/directory"
	"github.com/verenigingen/chapterkit/pkg/observability"
)

// QueryBuilder produces list filters per record type. Every method
// resolves the caller's scopes and fails closed: a resolution error
// yields a deny-all filter alongside the error.
type QueryBuilder struct {
	resolver *Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewQueryBuilder creates a query builder. metrics may be nil.
func NewQueryBuilder(resolver *Resolver, logger *observability.Logger, metrics *observability.Metrics) *QueryBuilder {
	return &QueryBuilder{resolver: resolver, logger: logger, metrics: metrics}
}

func (qb *QueryBuilder) scopes(ctx context.Context, user string) (*Scopes, error) {
	s, err := qb.resolver.Resolve(ctx, user)
	if err != nil {
		qb.logger.WithError(err).WithField("user", user).Error("scope resolution failed, denying access")
		return nil, err
	}
	return s, nil
}

func (qb *QueryBuilder) observe(recordType string, f Filter) Filter {
	if qb.metrics != nil {
		outcome := "scoped"
		if f.IsUnrestricted() {
			outcome = "unrestricted"
		} else if f.IsDenyAll() {
			outcome = "denied"
		}
		qb.metrics.FilterBuilt(recordType, outcome)
	}
	return f
}

// boardMemberIDs filters a member_id-shaped column to the members of
// the user's board chapters.
func boardMemberIDs(column string, chapters []string) Filter {
	if len(chapters) == 0 {
		return DenyAll()
	}
	in := In("chapter_id", chapters)
	return Filter{
		Expr: column + " IN (SELECT member_id FROM chapter_members WHERE " + in.Expr + " AND enabled)",
		Args: in.Args,
	}
}

// ForMember scopes the member list. Admins and national board members
// see everything; chapter board members see their chapters' members
// plus themselves; everyone else sees only their own record.
func (qb *QueryBuilder) ForMember(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsAdmin() || s.OnNationalBoard() {
		return qb.observe("member", Unrestricted()), nil
	}

	var terms []Filter
	if s.MemberID != "" {
		terms = append(terms, Eq("id", s.MemberID))
	}
	if strings.TrimSpace(user) != "" {
		// Legacy records carry the creating account in owner. The
		// column defaults to empty, so a blank identity must not
		// produce an owner term.
		terms = append(terms, Eq("owner", user))
	}
	if len(s.BoardChapters) > 0 {
		terms = append(terms, boardMemberIDs("id", s.BoardChapters))
	}
	return qb.observe("member", Or(terms...)), nil
}

// ForMembership scopes membership records, which hang off a member_id
// column; the reachable member set is the same as ForMember's.
func (qb *QueryBuilder) ForMembership(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsAdmin() || s.OnNationalBoard() {
		return qb.observe("membership", Unrestricted()), nil
	}

	var terms []Filter
	if s.MemberID != "" {
		terms = append(terms, Eq("member_id", s.MemberID))
	}
	if len(s.BoardChapters) > 0 {
		terms = append(terms, boardMemberIDs("member_id", s.BoardChapters))
	}
	return qb.observe("membership", Or(terms...)), nil
}

// ForChapterMember scopes chapter membership rows.
func (qb *QueryBuilder) ForChapterMember(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsAdmin() || s.OnNationalBoard() {
		return qb.observe("chapter_member", Unrestricted()), nil
	}

	var terms []Filter
	if s.MemberID != "" {
		terms = append(terms, Eq("member_id", s.MemberID))
	}
	if len(s.BoardChapters) > 0 {
		terms = append(terms, In("chapter_id", s.BoardChapters))
	}
	return qb.observe("chapter_member", Or(terms...)), nil
}

// ForVolunteer scopes the volunteer list. Volunteer admins see all.
// Management roles widen access to board-chapter volunteers and led
// teams; otherwise a volunteer sees only their own record.
func (qb *QueryBuilder) ForVolunteer(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsVolunteerAdmin() || s.OnNationalBoard() {
		return qb.observe("volunteer", Unrestricted()), nil
	}

	var terms []Filter
	if s.VolunteerID != "" {
		terms = append(terms, Eq("id", s.VolunteerID))
	}
	if s.MemberID != "" {
		terms = append(terms, Eq("member_id", s.MemberID))
	}
	if s.HasRole(directory.ManagementRoles()...) {
		if len(s.BoardChapters) > 0 {
			terms = append(terms, boardMemberIDs("member_id", s.BoardChapters))
		}
		if len(s.LeaderTeams) > 0 {
			in := In("team_id", s.LeaderTeams)
			terms = append(terms, Filter{
				Expr: "id IN (SELECT volunteer_id FROM team_members WHERE " + in.Expr + " AND is_active)",
				Args: in.Args,
			})
		}
	}
	return qb.observe("volunteer", Or(terms...)), nil
}

// ForTermination scopes termination requests. Termination admins and
// national board members see everything, matching the record-level
// termination capability; chapter board members see their chapters'
// requests; a plain member still sees the request raised against
// their own record.
func (qb *QueryBuilder) ForTermination(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsTerminationAdmin() || s.OnNationalBoard() {
		return qb.observe("termination", Unrestricted()), nil
	}

	var terms []Filter
	if s.MemberID != "" {
		terms = append(terms, Eq("member_id", s.MemberID))
	}
	if len(s.BoardChapters) > 0 {
		terms = append(terms, boardMemberIDs("member_id", s.BoardChapters))
	}
	return qb.observe("termination", Or(terms...)), nil
}

// ForAddress scopes addresses through the link table: the user's own
// member record, members of their board chapters, and the legacy
// contact fallback for records never linked to a member.
func (qb *QueryBuilder) ForAddress(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsAdmin() || s.OnNationalBoard() {
		return qb.observe("address", Unrestricted()), nil
	}

	var memberSet Filter
	if s.MemberID != "" {
		memberSet = Or(Eq("link_id", s.MemberID), linkedBoardMembers(s.BoardChapters))
	} else {
		memberSet = linkedBoardMembers(s.BoardChapters)
	}

	var terms []Filter
	if !memberSet.IsDenyAll() {
		terms = append(terms, Filter{
			Expr: "id IN (SELECT address_id FROM address_links WHERE link_type = 'member' AND (" + memberSet.Expr + "))",
			Args: memberSet.Args,
		})
	}
	terms = append(terms, Filter{
		Expr: "id IN (SELECT address_id FROM address_links WHERE link_type = 'contact' AND link_id IN " +
			"(SELECT id FROM contacts WHERE user_email = ?))",
		Args: []interface{}{user},
	})
	return qb.observe("address", Or(terms...)), nil
}

func linkedBoardMembers(chapters []string) Filter {
	return boardMemberIDs("link_id", chapters)
}

// ForDonor scopes donors. A donor reachable only through its member
// link; orphaned donors stay admin-only.
func (qb *QueryBuilder) ForDonor(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsAdmin() || s.OnNationalBoard() {
		return qb.observe("donor", Unrestricted()), nil
	}
	var terms []Filter
	if s.MemberID != "" {
		terms = append(terms, Eq("member_id", s.MemberID))
	}
	if len(s.BoardChapters) > 0 {
		terms = append(terms, boardMemberIDs("member_id", s.BoardChapters))
	}
	return qb.observe("donor", Or(terms...)), nil
}

// ForVolunteerExpense scopes expenses: expense admins see all,
// treasurers see their chapters, volunteers see their own filings.
func (qb *QueryBuilder) ForVolunteerExpense(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsTerminationAdmin() {
		return qb.observe("volunteer_expense", Unrestricted()), nil
	}
	var terms []Filter
	if s.VolunteerID != "" {
		terms = append(terms, Eq("volunteer_id", s.VolunteerID))
	}
	if len(s.TreasurerChapters) > 0 {
		terms = append(terms, In("chapter_id", s.TreasurerChapters))
	}
	return qb.observe("volunteer_expense", Or(terms...)), nil
}

// ForTeamMember scopes team membership rows to led teams plus the
// caller's own row.
func (qb *QueryBuilder) ForTeamMember(ctx context.Context, user string) (Filter, error) {
	s, err := qb.scopes(ctx, user)
	if err != nil {
		return DenyAll(), err
	}
	if s.IsVolunteerAdmin() {
		return qb.observe("team_member", Unrestricted()), nil
	}
	var terms []Filter
	if s.VolunteerID != "" {
		terms = append(terms, Eq("volunteer_id", s.VolunteerID))
	}
	if len(s.LeaderTeams) > 0 {
		terms = append(terms, In("team_id", s.LeaderTeams))
	}
	return qb.observe("team_member", Or(terms...)), nil
}
