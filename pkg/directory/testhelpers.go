package directory

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// OpenTestDB opens an in-memory SQLite database with the full schema
// applied. SQLite accepts $N positional parameters, so the production
// queries run unmodified in tests.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// SeedUser inserts a user account.
func SeedUser(t *testing.T, db *sql.DB, email string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO users (email) VALUES ($1)`, email); err != nil {
		t.Fatalf("failed to seed user %s: %v", email, err)
	}
}

// SeedRole assigns a role directly, bypassing the synchronizer.
func SeedRole(t *testing.T, db *sql.DB, email string, role Role) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO user_roles (user_email, role) VALUES ($1, $2)`, email, string(role)); err != nil {
		t.Fatalf("failed to seed role %s for %s: %v", role, email, err)
	}
}

// SeedMember inserts a member linked to a user account. Pass an empty
// userEmail for an unlinked member.
func SeedMember(t *testing.T, db *sql.DB, id, userEmail string) {
	t.Helper()
	var user interface{}
	if userEmail != "" {
		user = userEmail
	}
	if _, err := db.Exec(
		`INSERT INTO members (id, full_name, email, user_email) VALUES ($1, $2, $3, $4)`,
		id, "Member "+id, userEmail, user); err != nil {
		t.Fatalf("failed to seed member %s: %v", id, err)
	}
}

// SeedVolunteer inserts a volunteer linked to a member. Pass an empty
// memberID for an orphaned volunteer record.
func SeedVolunteer(t *testing.T, db *sql.DB, id, memberID string) {
	t.Helper()
	var member interface{}
	if memberID != "" {
		member = memberID
	}
	if _, err := db.Exec(
		`INSERT INTO volunteers (id, member_id) VALUES ($1, $2)`, id, member); err != nil {
		t.Fatalf("failed to seed volunteer %s: %v", id, err)
	}
}

// SeedChapter inserts a chapter.
func SeedChapter(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO chapters (id, region, published) VALUES ($1, $2, TRUE)`, id, "Region "+id); err != nil {
		t.Fatalf("failed to seed chapter %s: %v", id, err)
	}
}

// SeedChapterMember links a member to a chapter.
func SeedChapterMember(t *testing.T, db *sql.DB, chapterID, memberID string, enabled bool) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO chapter_members (chapter_id, member_id, enabled) VALUES ($1, $2, $3)`,
		chapterID, memberID, enabled); err != nil {
		t.Fatalf("failed to seed chapter member: %v", err)
	}
}

// SeedChapterRole inserts a chapter role definition.
func SeedChapterRole(t *testing.T, db *sql.DB, id, name string, level PermissionsLevel) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO chapter_roles (id, name, permissions_level) VALUES ($1, $2, $3)`,
		id, name, string(level)); err != nil {
		t.Fatalf("failed to seed chapter role %s: %v", id, err)
	}
}

// SeedBoardPosition inserts a board position. A nil endDate means open
// ended.
func SeedBoardPosition(t *testing.T, db *sql.DB, chapterID, volunteerID, roleID string, active bool, endDate *time.Time) {
	t.Helper()
	var end interface{}
	if endDate != nil {
		end = *endDate
	}
	if _, err := db.Exec(
		`INSERT INTO board_positions (chapter_id, volunteer_id, role_id, is_active, end_date)
		 VALUES ($1, $2, $3, $4, $5)`,
		chapterID, volunteerID, roleID, active, end); err != nil {
		t.Fatalf("failed to seed board position: %v", err)
	}
}

// SeedExpense inserts a volunteer expense.
func SeedExpense(t *testing.T, db *sql.DB, id, volunteerID, chapterID string, amount float64) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO volunteer_expenses (id, volunteer_id, chapter_id, amount) VALUES ($1, $2, $3, $4)`,
		id, volunteerID, chapterID, amount); err != nil {
		t.Fatalf("failed to seed expense %s: %v", id, err)
	}
}

// SeedTermination inserts a termination request.
func SeedTermination(t *testing.T, db *sql.DB, id, memberID string) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO termination_requests (id, member_id) VALUES ($1, $2)`, id, memberID); err != nil {
		t.Fatalf("failed to seed termination %s: %v", id, err)
	}
}

// SeedGrant inserts a grant-configuration row with the given flags.
func SeedGrant(t *testing.T, db *sql.DB, g Grant) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO role_grants (record_type, role, can_read, can_write, can_create,
		   can_delete, can_cancel, can_amend, can_submit, can_import, can_export)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(g.RecordType), string(g.Role), g.Read, g.Write, g.Create,
		g.Delete, g.Cancel, g.Amend, g.Submit, g.Import, g.Export); err != nil {
		t.Fatalf("failed to seed grant: %v", err)
	}
}

// SeedBoardScenario creates a user, member, volunteer, chapter, role
// and active board position in one call and returns the store. Most
// permission tests start from this shape.
func SeedBoardScenario(t *testing.T, db *sql.DB, email, memberID, volunteerID, chapterID, roleID string, level PermissionsLevel) *Store {
	t.Helper()
	SeedUser(t, db, email)
	SeedMember(t, db, memberID, email)
	SeedVolunteer(t, db, volunteerID, memberID)
	SeedChapter(t, db, chapterID)
	SeedChapterMember(t, db, chapterID, memberID, true)
	SeedChapterRole(t, db, roleID, "Role "+roleID, level)
	SeedBoardPosition(t, db, chapterID, volunteerID, roleID, true, nil)
	return NewStore(db)
}
