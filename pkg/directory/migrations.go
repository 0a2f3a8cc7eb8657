package directory

import (
	"database/sql"
	"fmt"
)

// Migration represents a single schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations holds the directory schema in order. The SQL sticks to the
// subset shared by PostgreSQL and SQLite so the same statements back
// both production and tests.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Create users and user_roles tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				email TEXT PRIMARY KEY,
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE IF NOT EXISTS user_roles (
				user_email TEXT NOT NULL REFERENCES users(email) ON DELETE CASCADE,
				role TEXT NOT NULL,
				assigned_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (user_email, role)
			);
			CREATE INDEX IF NOT EXISTS idx_user_roles_role ON user_roles(role);
		`,
	},
	{
		Version:     2,
		Description: "Create members and volunteers tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS members (
				id TEXT PRIMARY KEY,
				full_name TEXT NOT NULL,
				email TEXT NOT NULL DEFAULT '',
				user_email TEXT,
				status TEXT NOT NULL DEFAULT 'Active',
				permission_category TEXT NOT NULL DEFAULT 'Public',
				owner TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_members_user_email ON members(user_email);
			CREATE INDEX IF NOT EXISTS idx_members_email ON members(email);
			CREATE TABLE IF NOT EXISTS volunteers (
				id TEXT PRIMARY KEY,
				member_id TEXT REFERENCES members(id),
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_volunteers_member ON volunteers(member_id);
		`,
	},
	{
		Version:     3,
		Description: "Create chapters, chapter_members, chapter_roles and board_positions",
		SQL: `
			CREATE TABLE IF NOT EXISTS chapters (
				id TEXT PRIMARY KEY,
				region TEXT NOT NULL DEFAULT '',
				published BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE TABLE IF NOT EXISTS chapter_members (
				id INTEGER PRIMARY KEY,
				chapter_id TEXT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
				member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				join_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (chapter_id, member_id)
			);
			CREATE INDEX IF NOT EXISTS idx_chapter_members_member ON chapter_members(member_id);
			CREATE TABLE IF NOT EXISTS chapter_roles (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				permissions_level TEXT NOT NULL DEFAULT 'Basic',
				is_unique BOOLEAN NOT NULL DEFAULT FALSE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE
			);
			CREATE TABLE IF NOT EXISTS board_positions (
				id INTEGER PRIMARY KEY,
				chapter_id TEXT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
				volunteer_id TEXT NOT NULL REFERENCES volunteers(id) ON DELETE CASCADE,
				role_id TEXT NOT NULL REFERENCES chapter_roles(id),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				start_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				end_date TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_board_positions_volunteer ON board_positions(volunteer_id);
			CREATE INDEX IF NOT EXISTS idx_board_positions_chapter ON board_positions(chapter_id);
		`,
	},
	{
		Version:     4,
		Description: "Create donors, addresses, contacts and link tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS donors (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				member_id TEXT REFERENCES members(id)
			);
			CREATE TABLE IF NOT EXISTS addresses (
				id TEXT PRIMARY KEY,
				city TEXT NOT NULL DEFAULT ''
			);
			CREATE TABLE IF NOT EXISTS contacts (
				id TEXT PRIMARY KEY,
				user_email TEXT
			);
			CREATE TABLE IF NOT EXISTS address_links (
				id INTEGER PRIMARY KEY,
				address_id TEXT NOT NULL REFERENCES addresses(id) ON DELETE CASCADE,
				link_type TEXT NOT NULL,
				link_id TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_address_links_target ON address_links(link_type, link_id);
		`,
	},
	{
		Version:     5,
		Description: "Create termination_requests and volunteer_expenses",
		SQL: `
			CREATE TABLE IF NOT EXISTS termination_requests (
				id TEXT PRIMARY KEY,
				member_id TEXT NOT NULL REFERENCES members(id),
				status TEXT NOT NULL DEFAULT 'Draft'
			);
			CREATE INDEX IF NOT EXISTS idx_termination_requests_member ON termination_requests(member_id);
			CREATE TABLE IF NOT EXISTS volunteer_expenses (
				id TEXT PRIMARY KEY,
				volunteer_id TEXT NOT NULL REFERENCES volunteers(id),
				chapter_id TEXT NOT NULL REFERENCES chapters(id),
				amount REAL NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'Submitted'
			);
			CREATE INDEX IF NOT EXISTS idx_volunteer_expenses_chapter ON volunteer_expenses(chapter_id);
		`,
	},
	{
		Version:     6,
		Description: "Create teams and team_members",
		SQL: `
			CREATE TABLE IF NOT EXISTS teams (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT ''
			);
			CREATE TABLE IF NOT EXISTS team_members (
				id INTEGER PRIMARY KEY,
				team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
				volunteer_id TEXT NOT NULL REFERENCES volunteers(id) ON DELETE CASCADE,
				is_team_leader BOOLEAN NOT NULL DEFAULT FALSE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE
			);
			CREATE INDEX IF NOT EXISTS idx_team_members_volunteer ON team_members(volunteer_id);
			CREATE INDEX IF NOT EXISTS idx_team_members_team ON team_members(team_id);
		`,
	},
	{
		Version:     7,
		Description: "Create role_grants and settings",
		SQL: `
			CREATE TABLE IF NOT EXISTS role_grants (
				id INTEGER PRIMARY KEY,
				record_type TEXT NOT NULL,
				role TEXT NOT NULL,
				can_read BOOLEAN NOT NULL DEFAULT FALSE,
				can_write BOOLEAN NOT NULL DEFAULT FALSE,
				can_create BOOLEAN NOT NULL DEFAULT FALSE,
				can_delete BOOLEAN NOT NULL DEFAULT FALSE,
				can_cancel BOOLEAN NOT NULL DEFAULT FALSE,
				can_amend BOOLEAN NOT NULL DEFAULT FALSE,
				can_submit BOOLEAN NOT NULL DEFAULT FALSE,
				can_import BOOLEAN NOT NULL DEFAULT FALSE,
				can_export BOOLEAN NOT NULL DEFAULT FALSE,
				UNIQUE (record_type, role)
			);
			CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL DEFAULT ''
			);
		`,
	},
	{
		Version:     8,
		Description: "Create audit_events table",
		SQL: `
			CREATE TABLE IF NOT EXISTS audit_events (
				id TEXT PRIMARY KEY,
				timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				event_type TEXT NOT NULL,
				actor TEXT NOT NULL DEFAULT '',
				subject TEXT NOT NULL DEFAULT '',
				chapter_id TEXT NOT NULL DEFAULT '',
				success BOOLEAN NOT NULL DEFAULT TRUE,
				details TEXT NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type, timestamp);
			CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor, timestamp);
		`,
	},
}

// RunMigrations applies all pending migrations in order.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS directory_schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists int
		err := db.QueryRow(
			`SELECT COUNT(*) FROM directory_schema_migrations WHERE version = $1`, m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			`INSERT INTO directory_schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
