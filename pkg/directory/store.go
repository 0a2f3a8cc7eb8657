package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("directory: not found")

// Store provides access to the association directory. All queries use
// positional parameters; callers never interpolate values into SQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a directory store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for filter execution.
func (s *Store) DB() *sql.DB {
	return s.db
}

func scanMember(row *sql.Row) (*Member, error) {
	var m Member
	var userEmail sql.NullString
	err := row.Scan(&m.ID, &m.FullName, &m.Email, &userEmail, &m.Status, &m.PermissionCategory, &m.Owner, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	if userEmail.Valid {
		m.UserEmail = &userEmail.String
	}
	return &m, nil
}

const memberColumns = `id, full_name, email, user_email, status, permission_category, owner, created_at`

// MemberByID fetches a single member record.
func (s *Store) MemberByID(ctx context.Context, id string) (*Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	return scanMember(row)
}

// MemberByUser resolves the member record for a login email. The user
// link field is authoritative; the contact email is a fallback for
// records created before accounts were linked.
func (s *Store) MemberByUser(ctx context.Context, email string) (*Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE user_email = $1`, email)
	m, err := scanMember(row)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	row = s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE email = $1`, email)
	return scanMember(row)
}

// VolunteerByMember fetches the volunteer record linked to a member.
func (s *Store) VolunteerByMember(ctx context.Context, memberID string) (*Volunteer, error) {
	var v Volunteer
	var mid sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, member_id, created_at FROM volunteers WHERE member_id = $1`, memberID,
	).Scan(&v.ID, &mid, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get volunteer: %w", err)
	}
	if mid.Valid {
		v.MemberID = &mid.String
	}
	return &v, nil
}

// VolunteerByID fetches a volunteer record.
func (s *Store) VolunteerByID(ctx context.Context, id string) (*Volunteer, error) {
	var v Volunteer
	var mid sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, member_id, created_at FROM volunteers WHERE id = $1`, id,
	).Scan(&v.ID, &mid, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get volunteer: %w", err)
	}
	if mid.Valid {
		v.MemberID = &mid.String
	}
	return &v, nil
}

// activePositionCond selects board positions that currently confer
// access: active flag set and no end date in the past.
const activePositionCond = `bp.is_active AND (bp.end_date IS NULL OR bp.end_date > CURRENT_TIMESTAMP)`

// BoardChapters returns the chapters where the volunteer currently
// holds any active board position.
func (s *Store) BoardChapters(ctx context.Context, volunteerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT bp.chapter_id FROM board_positions bp
		 WHERE bp.volunteer_id = $1 AND `+activePositionCond+`
		 ORDER BY bp.chapter_id`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query board chapters: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// TreasurerChapters returns the chapters where the volunteer holds an
// active position whose role carries financial permissions.
func (s *Store) TreasurerChapters(ctx context.Context, volunteerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT bp.chapter_id FROM board_positions bp
		 JOIN chapter_roles cr ON cr.id = bp.role_id
		 WHERE bp.volunteer_id = $1 AND cr.permissions_level = $2
		 AND `+activePositionCond+`
		 ORDER BY bp.chapter_id`, volunteerID, string(LevelFinancial))
	if err != nil {
		return nil, fmt.Errorf("failed to query treasurer chapters: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// BoardPositions returns every position held by the volunteer with the
// role joined in, active or not.
func (s *Store) BoardPositions(ctx context.Context, volunteerID string) ([]BoardPositionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bp.chapter_id, bp.role_id, cr.name, cr.permissions_level,
		        bp.is_active AND (bp.end_date IS NULL OR bp.end_date > CURRENT_TIMESTAMP),
		        bp.end_date
		 FROM board_positions bp
		 JOIN chapter_roles cr ON cr.id = bp.role_id
		 WHERE bp.volunteer_id = $1
		 ORDER BY bp.chapter_id, bp.start_date`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query board positions: %w", err)
	}
	defer rows.Close()

	var out []BoardPositionSummary
	for rows.Next() {
		var p BoardPositionSummary
		var end sql.NullTime
		if err := rows.Scan(&p.ChapterID, &p.RoleID, &p.RoleName, &p.PermissionsLevel, &p.IsActive, &end); err != nil {
			return nil, fmt.Errorf("failed to scan board position: %w", err)
		}
		if end.Valid {
			p.EndDate = &end.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HasActiveBoardPosition reports whether the volunteer currently holds
// any active board position.
func (s *Store) HasActiveBoardPosition(ctx context.Context, volunteerID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM board_positions bp
		 WHERE bp.volunteer_id = $1 AND `+activePositionCond, volunteerID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count board positions: %w", err)
	}
	return n > 0, nil
}

// MemberChapters returns the chapters a member belongs to through
// enabled membership rows.
func (s *Store) MemberChapters(ctx context.Context, memberID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cm.chapter_id FROM chapter_members cm
		 WHERE cm.member_id = $1 AND cm.enabled
		 ORDER BY cm.chapter_id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query member chapters: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// ChapterMemberIDs returns up to limit member ids belonging to a
// chapter, for the isolation sampling checks.
func (s *Store) ChapterMemberIDs(ctx context.Context, chapterID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cm.member_id FROM chapter_members cm
		 WHERE cm.chapter_id = $1 AND cm.enabled
		 ORDER BY cm.member_id LIMIT $2`, chapterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapter members: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// ChapterIDs returns up to limit chapter ids.
func (s *Store) ChapterIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chapters ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// UserExists reports whether a user account exists.
func (s *Store) UserExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = $1`, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return n > 0, nil
}

// UserRoles returns the roles assigned to a user account.
func (s *Store) UserRoles(ctx context.Context, email string) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_email = $1 ORDER BY role`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		out = append(out, Role(r))
	}
	return out, rows.Err()
}

// HasRole reports whether the user holds any of the given roles.
func (s *Store) HasRole(ctx context.Context, email string, roles ...Role) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	placeholders := make([]string, len(roles))
	args := make([]interface{}, 0, len(roles)+1)
	args = append(args, email)
	for i, r := range roles {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, string(r))
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_roles WHERE user_email = $1 AND role IN (`+
			strings.Join(placeholders, ", ")+`)`, args...,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check roles: %w", err)
	}
	return n > 0, nil
}

// AddUserRole assigns a role to a user if not already present.
func (s *Store) AddUserRole(ctx context.Context, email string, role Role) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_email, role) VALUES ($1, $2)
		 ON CONFLICT (user_email, role) DO NOTHING`, email, string(role))
	if err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	return nil
}

// RemoveUserRole removes a role from a user.
func (s *Store) RemoveUserRole(ctx context.Context, email string, role Role) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_email = $1 AND role = $2`, email, string(role))
	if err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

// UsersWithRole returns every user email holding the role.
func (s *Store) UsersWithRole(ctx context.Context, role Role) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_email FROM user_roles WHERE role = $1 ORDER BY user_email`, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query users with role: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// ActiveBoardUsers returns the distinct user emails that currently
// hold an active board position through their volunteer record.
func (s *Store) ActiveBoardUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT m.user_email FROM board_positions bp
		 JOIN volunteers v ON v.id = bp.volunteer_id
		 JOIN members m ON m.id = v.member_id
		 WHERE m.user_email IS NOT NULL AND `+activePositionCond+`
		 ORDER BY m.user_email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query board users: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// DonorByID fetches a donor record.
func (s *Store) DonorByID(ctx context.Context, id string) (*Donor, error) {
	var d Donor
	var mid sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, member_id FROM donors WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &mid)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	if mid.Valid {
		d.MemberID = &mid.String
	}
	return &d, nil
}

// AddressLinkedToMember reports whether the address carries a member
// link row for the member.
func (s *Store) AddressLinkedToMember(ctx context.Context, addressID, memberID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM address_links
		 WHERE address_id = $1 AND link_type = $2 AND link_id = $3`,
		addressID, string(LinkMember), memberID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check address member link: %w", err)
	}
	return n > 0, nil
}

// AddressLinkedToContact reports whether the address is linked to a
// contact carrying the user's email.
func (s *Store) AddressLinkedToContact(ctx context.Context, addressID, userEmail string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM address_links al
		 JOIN contacts c ON c.id = al.link_id
		 WHERE al.address_id = $1 AND al.link_type = $2 AND c.user_email = $3`,
		addressID, string(LinkContact), userEmail).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check address contact link: %w", err)
	}
	return n > 0, nil
}

// MemberlessUsers returns up to limit user emails with no member
// record reachable by user link or contact email.
func (s *Store) MemberlessUsers(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.email FROM users u
		 LEFT JOIN members m ON m.user_email = u.email OR m.email = u.email
		 WHERE m.id IS NULL
		 ORDER BY u.email LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query member-less users: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// TerminationByID fetches a termination request.
func (s *Store) TerminationByID(ctx context.Context, id string) (*TerminationRequest, error) {
	var t TerminationRequest
	err := s.db.QueryRowContext(ctx,
		`SELECT id, member_id, status FROM termination_requests WHERE id = $1`, id,
	).Scan(&t.ID, &t.MemberID, &t.Status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get termination request: %w", err)
	}
	return &t, nil
}

// ExpenseByID fetches a volunteer expense.
func (s *Store) ExpenseByID(ctx context.Context, id string) (*VolunteerExpense, error) {
	var e VolunteerExpense
	err := s.db.QueryRowContext(ctx,
		`SELECT id, volunteer_id, chapter_id, amount, status FROM volunteer_expenses WHERE id = $1`, id,
	).Scan(&e.ID, &e.VolunteerID, &e.ChapterID, &e.Amount, &e.Status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return &e, nil
}

// SampleExpenses returns up to limit expenses for sampling checks.
func (s *Store) SampleExpenses(ctx context.Context, limit int) ([]VolunteerExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, volunteer_id, chapter_id, amount, status FROM volunteer_expenses
		 ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample expenses: %w", err)
	}
	defer rows.Close()

	var out []VolunteerExpense
	for rows.Next() {
		var e VolunteerExpense
		if err := rows.Scan(&e.ID, &e.VolunteerID, &e.ChapterID, &e.Amount, &e.Status); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LeaderTeams returns the teams where the volunteer is an active
// leader.
func (s *Store) LeaderTeams(ctx context.Context, volunteerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tm.team_id FROM team_members tm
		 WHERE tm.volunteer_id = $1 AND tm.is_team_leader AND tm.is_active
		 ORDER BY tm.team_id`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leader teams: %w", err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

// Grants returns the full access-grant configuration.
func (s *Store) Grants(ctx context.Context) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_type, role, can_read, can_write, can_create, can_delete,
		        can_cancel, can_amend, can_submit, can_import, can_export
		 FROM role_grants ORDER BY record_type, role`)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.RecordType, &g.Role, &g.Read, &g.Write, &g.Create,
			&g.Delete, &g.Cancel, &g.Amend, &g.Submit, &g.Import, &g.Export); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Setting returns a settings value, or empty string when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return v, nil
}

// SetSetting upserts a settings value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = $2`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
