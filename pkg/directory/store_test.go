package directory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemberByUser(t *testing.T) {
	db := OpenTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	SeedUser(t, db, "linked@example.org")
	SeedMember(t, db, "MEM-001", "linked@example.org")

	// Unlinked member whose contact email matches a login.
	if _, err := db.Exec(
		`INSERT INTO members (id, full_name, email) VALUES ('MEM-002', 'Legacy Member', 'legacy@example.org')`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	t.Run("resolves by user link", func(t *testing.T) {
		m, err := store.MemberByUser(ctx, "linked@example.org")
		if err != nil {
			t.Fatalf("MemberByUser: %v", err)
		}
		if m.ID != "MEM-001" {
			t.Errorf("expected MEM-001, got %s", m.ID)
		}
	})

	t.Run("falls back to contact email", func(t *testing.T) {
		m, err := store.MemberByUser(ctx, "legacy@example.org")
		if err != nil {
			t.Fatalf("MemberByUser: %v", err)
		}
		if m.ID != "MEM-002" {
			t.Errorf("expected MEM-002, got %s", m.ID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.MemberByUser(ctx, "nobody@example.org")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBoardChapters(t *testing.T) {
	db := OpenTestDB(t)
	store := SeedBoardScenario(t, db, "chair@example.org", "MEM-001", "VOL-001", "CH-NORTH", "ROLE-CHAIR", LevelBasic)
	ctx := context.Background()

	SeedChapter(t, db, "CH-SOUTH")
	SeedChapterRole(t, db, "ROLE-SEC", "Secretary", LevelBasic)

	// Inactive position must not count.
	SeedBoardPosition(t, db, "CH-SOUTH", "VOL-001", "ROLE-SEC", false, nil)

	// Expired position must not count either.
	past := time.Now().Add(-24 * time.Hour)
	SeedChapter(t, db, "CH-EAST")
	SeedBoardPosition(t, db, "CH-EAST", "VOL-001", "ROLE-SEC", true, &past)

	chapters, err := store.BoardChapters(ctx, "VOL-001")
	if err != nil {
		t.Fatalf("BoardChapters: %v", err)
	}
	if len(chapters) != 1 || chapters[0] != "CH-NORTH" {
		t.Errorf("expected [CH-NORTH], got %v", chapters)
	}
}

func TestTreasurerChapters(t *testing.T) {
	db := OpenTestDB(t)
	store := SeedBoardScenario(t, db, "treas@example.org", "MEM-001", "VOL-001", "CH-NORTH", "ROLE-TREAS", LevelFinancial)
	ctx := context.Background()

	SeedChapter(t, db, "CH-SOUTH")
	SeedChapterRole(t, db, "ROLE-SEC", "Secretary", LevelBasic)
	SeedBoardPosition(t, db, "CH-SOUTH", "VOL-001", "ROLE-SEC", true, nil)

	chapters, err := store.TreasurerChapters(ctx, "VOL-001")
	if err != nil {
		t.Fatalf("TreasurerChapters: %v", err)
	}
	if len(chapters) != 1 || chapters[0] != "CH-NORTH" {
		t.Errorf("expected only the financial-role chapter, got %v", chapters)
	}

	board, err := store.BoardChapters(ctx, "VOL-001")
	if err != nil {
		t.Fatalf("BoardChapters: %v", err)
	}
	if len(board) != 2 {
		t.Errorf("expected both board chapters, got %v", board)
	}
}

func TestUserRoleLifecycle(t *testing.T) {
	db := OpenTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	SeedUser(t, db, "user@example.org")

	if err := store.AddUserRole(ctx, "user@example.org", RoleChapterBoardMember); err != nil {
		t.Fatalf("AddUserRole: %v", err)
	}
	// Adding again must be a no-op, not an error.
	if err := store.AddUserRole(ctx, "user@example.org", RoleChapterBoardMember); err != nil {
		t.Fatalf("AddUserRole (repeat): %v", err)
	}

	has, err := store.HasRole(ctx, "user@example.org", RoleChapterBoardMember)
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if !has {
		t.Error("expected role to be assigned")
	}

	users, err := store.UsersWithRole(ctx, RoleChapterBoardMember)
	if err != nil {
		t.Fatalf("UsersWithRole: %v", err)
	}
	if len(users) != 1 || users[0] != "user@example.org" {
		t.Errorf("expected single holder, got %v", users)
	}

	if err := store.RemoveUserRole(ctx, "user@example.org", RoleChapterBoardMember); err != nil {
		t.Fatalf("RemoveUserRole: %v", err)
	}
	has, err = store.HasRole(ctx, "user@example.org", RoleChapterBoardMember)
	if err != nil {
		t.Fatalf("HasRole: %v", err)
	}
	if has {
		t.Error("expected role to be removed")
	}
}

func TestActiveBoardUsers(t *testing.T) {
	db := OpenTestDB(t)
	store := SeedBoardScenario(t, db, "chair@example.org", "MEM-001", "VOL-001", "CH-NORTH", "ROLE-CHAIR", LevelBasic)
	ctx := context.Background()

	// Volunteer without a user-linked member must not appear.
	SeedMember(t, db, "MEM-002", "")
	SeedVolunteer(t, db, "VOL-002", "MEM-002")
	SeedBoardPosition(t, db, "CH-NORTH", "VOL-002", "ROLE-CHAIR", true, nil)

	users, err := store.ActiveBoardUsers(ctx)
	if err != nil {
		t.Fatalf("ActiveBoardUsers: %v", err)
	}
	if len(users) != 1 || users[0] != "chair@example.org" {
		t.Errorf("expected [chair@example.org], got %v", users)
	}
}

func TestAddressLinks(t *testing.T) {
	db := OpenTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	SeedUser(t, db, "member@example.org")
	SeedMember(t, db, "MEM-001", "member@example.org")
	for _, stmt := range []string{
		`INSERT INTO addresses (id) VALUES ('ADR-1'), ('ADR-2')`,
		`INSERT INTO contacts (id, user_email) VALUES ('CONTACT-1', 'legacy@example.org')`,
		`INSERT INTO address_links (address_id, link_type, link_id) VALUES ('ADR-1', 'member', 'MEM-001')`,
		`INSERT INTO address_links (address_id, link_type, link_id) VALUES ('ADR-2', 'contact', 'CONTACT-1')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	t.Run("member link", func(t *testing.T) {
		linked, err := store.AddressLinkedToMember(ctx, "ADR-1", "MEM-001")
		if err != nil {
			t.Fatalf("AddressLinkedToMember: %v", err)
		}
		if !linked {
			t.Error("expected link to be found")
		}
		linked, err = store.AddressLinkedToMember(ctx, "ADR-2", "MEM-001")
		if err != nil {
			t.Fatalf("AddressLinkedToMember: %v", err)
		}
		if linked {
			t.Error("contact link must not count as a member link")
		}
	})

	t.Run("contact link", func(t *testing.T) {
		linked, err := store.AddressLinkedToContact(ctx, "ADR-2", "legacy@example.org")
		if err != nil {
			t.Fatalf("AddressLinkedToContact: %v", err)
		}
		if !linked {
			t.Error("expected link through contact email")
		}
		linked, err = store.AddressLinkedToContact(ctx, "ADR-2", "member@example.org")
		if err != nil {
			t.Fatalf("AddressLinkedToContact: %v", err)
		}
		if linked {
			t.Error("unrelated email must not match")
		}
	})
}

func TestMemberlessUsers(t *testing.T) {
	db := OpenTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	SeedUser(t, db, "linked@example.org")
	SeedMember(t, db, "MEM-001", "linked@example.org")
	SeedUser(t, db, "orphan@example.org")

	// Matched through the contact-email fallback, so not member-less.
	SeedUser(t, db, "legacy@example.org")
	if _, err := db.Exec(
		`INSERT INTO members (id, full_name, email) VALUES ('MEM-002', 'Legacy', 'legacy@example.org')`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	users, err := store.MemberlessUsers(ctx, 10)
	if err != nil {
		t.Fatalf("MemberlessUsers: %v", err)
	}
	if len(users) != 1 || users[0] != "orphan@example.org" {
		t.Errorf("expected [orphan@example.org], got %v", users)
	}
}

func TestSettings(t *testing.T) {
	db := OpenTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	v, err := store.Setting(ctx, SettingNationalChapter)
	if err != nil {
		t.Fatalf("Setting: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty value for unset key, got %q", v)
	}

	if err := store.SetSetting(ctx, SettingNationalChapter, "CH-NATIONAL"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := store.SetSetting(ctx, SettingNationalChapter, "CH-NATIONAL-2"); err != nil {
		t.Fatalf("SetSetting (update): %v", err)
	}

	v, err = store.Setting(ctx, SettingNationalChapter)
	if err != nil {
		t.Fatalf("Setting: %v", err)
	}
	if v != "CH-NATIONAL-2" {
		t.Errorf("expected updated value, got %q", v)
	}
}

func TestGrants(t *testing.T) {
	db := OpenTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	SeedGrant(t, db, Grant{RecordType: RecordMember, Role: RoleChapterBoardMember, Read: true})
	SeedGrant(t, db, Grant{RecordType: RecordExpense, Role: RoleChapterBoardMember, Read: true, Write: true, Cancel: true})

	grants, err := store.Grants(ctx)
	if err != nil {
		t.Fatalf("Grants: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}
	if grants[0].RecordType != RecordMember || !grants[0].Read || grants[0].Write {
		t.Errorf("unexpected first grant: %+v", grants[0])
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := OpenTestDB(t)
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
}
