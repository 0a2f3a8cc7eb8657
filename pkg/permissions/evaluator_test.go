package permissions

import (
	"context"
	"database/sql"
	"testing"

	"github.com/verenigingen/chapterkit/pkg/directory"
)

func newTestEvaluator(t *testing.T, db *sql.DB) *Evaluator {
	t.Helper()
	store := directory.NewStore(db)
	resolver := NewResolver(store, NewLRUScopeCache(16, DefaultScopeTTL))
	return NewEvaluator(store, resolver, testLogger(), nil)
}

func TestCanApproveExpense(t *testing.T) {
	db := directory.OpenTestDB(t)
	directory.SeedBoardScenario(t, db, "treas@example.org", "MEM-T", "VOL-T", "CH-NORTH", "ROLE-TREAS", directory.LevelFinancial)
	directory.SeedBoardScenario(t, db, "chair@example.org", "MEM-C", "VOL-C", "CH-SOUTH", "ROLE-CHAIR", directory.LevelBasic)

	directory.SeedUser(t, db, "admin@example.org")
	directory.SeedRole(t, db, "admin@example.org", directory.RoleAdministrator)

	directory.SeedExpense(t, db, "EXP-1", "VOL-C", "CH-NORTH", 50)
	directory.SeedExpense(t, db, "EXP-2", "VOL-T", "CH-SOUTH", 75)

	ev := newTestEvaluator(t, db)
	ctx := context.Background()

	t.Run("expense admin approves anywhere", func(t *testing.T) {
		if !ev.CanApproveExpense(ctx, "admin@example.org", ExpenseID("EXP-2")) {
			t.Error("expected admin approval")
		}
	})

	t.Run("treasurer approves within chapter", func(t *testing.T) {
		if !ev.CanApproveExpense(ctx, "treas@example.org", ExpenseID("EXP-1")) {
			t.Error("expected treasurer approval in own chapter")
		}
		if ev.CanApproveExpense(ctx, "treas@example.org", ExpenseID("EXP-2")) {
			t.Error("treasurer must not approve outside their chapter")
		}
	})

	t.Run("basic board position does not approve", func(t *testing.T) {
		if ev.CanApproveExpense(ctx, "chair@example.org", ExpenseID("EXP-2")) {
			t.Error("non-financial role must not approve")
		}
	})

	t.Run("loaded record answers like an id", func(t *testing.T) {
		exp, err := directory.NewStore(db).ExpenseByID(ctx, "EXP-1")
		if err != nil {
			t.Fatalf("ExpenseByID: %v", err)
		}
		byID := ev.CanApproveExpense(ctx, "treas@example.org", ExpenseID("EXP-1"))
		byRecord := ev.CanApproveExpense(ctx, "treas@example.org", ExpenseRecord(exp))
		if byID != byRecord {
			t.Errorf("id and record forms disagree: %v vs %v", byID, byRecord)
		}
	})

	t.Run("malformed input denies quietly", func(t *testing.T) {
		if ev.CanApproveExpense(ctx, "", ExpenseID("EXP-1")) {
			t.Error("empty user must deny")
		}
		if ev.CanApproveExpense(ctx, "treas@example.org", ExpenseRef{}) {
			t.Error("empty ref must deny")
		}
		if ev.CanApproveExpense(ctx, "treas@example.org", ExpenseID("EXP-MISSING")) {
			t.Error("missing expense must deny")
		}
	})
}

func TestCanTerminateMember(t *testing.T) {
	db := directory.OpenTestDB(t)
	directory.SeedBoardScenario(t, db, "board@example.org", "MEM-B", "VOL-B", "CH-NORTH", "ROLE-CHAIR", directory.LevelBasic)

	directory.SeedChapter(t, db, "CH-SOUTH")
	directory.SeedMember(t, db, "MEM-NORTH", "")
	directory.SeedChapterMember(t, db, "CH-NORTH", "MEM-NORTH", true)
	directory.SeedMember(t, db, "MEM-SOUTH", "")
	directory.SeedChapterMember(t, db, "CH-SOUTH", "MEM-SOUTH", true)

	directory.SeedUser(t, db, "admin@example.org")
	directory.SeedRole(t, db, "admin@example.org", directory.RoleAdministrator)

	ev := newTestEvaluator(t, db)
	ctx := context.Background()

	t.Run("termination admin", func(t *testing.T) {
		if !ev.CanTerminateMember(ctx, "admin@example.org", MemberID("MEM-SOUTH")) {
			t.Error("expected admin to terminate")
		}
	})

	t.Run("board member within shared chapter", func(t *testing.T) {
		if !ev.CanTerminateMember(ctx, "board@example.org", MemberID("MEM-NORTH")) {
			t.Error("expected board member to terminate chapter member")
		}
	})

	t.Run("board member outside chapter denied", func(t *testing.T) {
		if ev.CanTerminateMember(ctx, "board@example.org", MemberID("MEM-SOUTH")) {
			t.Error("board member must not reach other chapters")
		}
	})

	t.Run("missing member denies", func(t *testing.T) {
		if ev.CanTerminateMember(ctx, "board@example.org", MemberID("MEM-MISSING")) {
			t.Error("missing member must deny")
		}
	})
}

func TestCanAccessTerminationFunctions(t *testing.T) {
	db := directory.OpenTestDB(t)
	directory.SeedBoardScenario(t, db, "board@example.org", "MEM-B", "VOL-B", "CH-NORTH", "ROLE-CHAIR", directory.LevelBasic)
	directory.SeedUser(t, db, "plain@example.org")
	directory.SeedMember(t, db, "MEM-P", "plain@example.org")

	ev := newTestEvaluator(t, db)
	ctx := context.Background()

	if !ev.CanAccessTerminationFunctions(ctx, "board@example.org") {
		t.Error("board member should access termination functions")
	}
	if ev.CanAccessTerminationFunctions(ctx, "plain@example.org") {
		t.Error("plain member should not access termination functions")
	}
	if ev.CanAccessTerminationFunctions(ctx, "") {
		t.Error("empty user must deny")
	}
}

func TestCanViewMemberPayments(t *testing.T) {
	db := directory.OpenTestDB(t)
	directory.SeedBoardScenario(t, db, "treas@example.org", "MEM-T", "VOL-T", "CH-NORTH", "ROLE-TREAS", directory.LevelFinancial)

	directory.SeedUser(t, db, "north@example.org")
	directory.SeedMember(t, db, "MEM-NORTH", "north@example.org")
	directory.SeedChapterMember(t, db, "CH-NORTH", "MEM-NORTH", true)
	// Board Only, so self and treasurer access cannot ride on the
	// default Public category.
	if _, err := db.Exec(
		`UPDATE members SET permission_category = 'Board Only' WHERE id = 'MEM-NORTH'`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Restricted member in the same chapter.
	if _, err := db.Exec(
		`INSERT INTO members (id, full_name, permission_category) VALUES ('MEM-LOCKED', 'Locked', 'Admin Only')`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	directory.SeedChapterMember(t, db, "CH-NORTH", "MEM-LOCKED", true)

	// Board Only member outside the treasurer's chapters.
	directory.SeedChapter(t, db, "CH-SOUTH")
	if _, err := db.Exec(
		`INSERT INTO members (id, full_name, permission_category) VALUES ('MEM-REMOTE', 'Remote', 'Board Only')`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	directory.SeedChapterMember(t, db, "CH-SOUTH", "MEM-REMOTE", true)

	directory.SeedUser(t, db, "admin@example.org")
	directory.SeedRole(t, db, "admin@example.org", directory.RoleManager)

	ev := newTestEvaluator(t, db)
	ctx := context.Background()

	t.Run("member sees own payments", func(t *testing.T) {
		if !ev.CanViewMemberPayments(ctx, "north@example.org", MemberID("MEM-NORTH")) {
			t.Error("expected self access")
		}
	})

	t.Run("treasurer sees chapter member payments", func(t *testing.T) {
		if !ev.CanViewMemberPayments(ctx, "treas@example.org", MemberID("MEM-NORTH")) {
			t.Error("expected treasurer access")
		}
	})

	t.Run("admin-only category blocks treasurer", func(t *testing.T) {
		if ev.CanViewMemberPayments(ctx, "treas@example.org", MemberID("MEM-LOCKED")) {
			t.Error("Admin Only category must restrict to admins")
		}
		if !ev.CanViewMemberPayments(ctx, "admin@example.org", MemberID("MEM-LOCKED")) {
			t.Error("admin must see Admin Only member")
		}
	})

	t.Run("public category open to any signed-in viewer", func(t *testing.T) {
		// MEM-T keeps the default Public category; north is neither
		// the member, a treasurer, nor an admin.
		if !ev.CanViewMemberPayments(ctx, "north@example.org", MemberID("MEM-T")) {
			t.Error("Public category must admit unrelated viewers")
		}
	})

	t.Run("board-only member out of reach denied", func(t *testing.T) {
		if ev.CanViewMemberPayments(ctx, "north@example.org", MemberID("MEM-REMOTE")) {
			t.Error("plain member must not see Board Only payments")
		}
		if ev.CanViewMemberPayments(ctx, "treas@example.org", MemberID("MEM-REMOTE")) {
			t.Error("treasurer must not reach Board Only members outside their chapters")
		}
	})
}

func TestCanAccessMember(t *testing.T) {
	db := directory.OpenTestDB(t)
	directory.SeedBoardScenario(t, db, "board@example.org", "MEM-B", "VOL-B", "CH-NORTH", "ROLE-CHAIR", directory.LevelBasic)
	directory.SeedChapter(t, db, "CH-SOUTH")

	directory.SeedUser(t, db, "north@example.org")
	directory.SeedMember(t, db, "MEM-NORTH", "north@example.org")
	directory.SeedChapterMember(t, db, "CH-NORTH", "MEM-NORTH", true)

	directory.SeedUser(t, db, "south@example.org")
	directory.SeedMember(t, db, "MEM-SOUTH", "south@example.org")
	directory.SeedChapterMember(t, db, "CH-SOUTH", "MEM-SOUTH", true)

	directory.SeedUser(t, db, "staff@example.org")
	directory.SeedRole(t, db, "staff@example.org", directory.RoleStaff)

	// Legacy record reachable only through its owner field.
	directory.SeedUser(t, db, "legacy@example.org")
	if _, err := db.Exec(
		`INSERT INTO members (id, full_name, owner) VALUES ('MEM-LEGACY', 'Legacy', 'legacy@example.org')`,
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ev := newTestEvaluator(t, db)
	ctx := context.Background()

	t.Run("member opens own record", func(t *testing.T) {
		if !ev.CanAccessMember(ctx, "north@example.org", MemberID("MEM-NORTH")) {
			t.Error("expected self access")
		}
	})

	t.Run("board member within chapter", func(t *testing.T) {
		if !ev.CanAccessMember(ctx, "board@example.org", MemberID("MEM-NORTH")) {
			t.Error("expected board access within chapter")
		}
	})

	t.Run("board member outside chapter denied", func(t *testing.T) {
		if ev.CanAccessMember(ctx, "board@example.org", MemberID("MEM-SOUTH")) {
			t.Error("board member must not reach other chapters")
		}
	})

	t.Run("staff reads any record", func(t *testing.T) {
		if !ev.CanAccessMember(ctx, "staff@example.org", MemberID("MEM-SOUTH")) {
			t.Error("expected staff access")
		}
	})

	t.Run("owner fallback", func(t *testing.T) {
		if !ev.CanAccessMember(ctx, "legacy@example.org", MemberID("MEM-LEGACY")) {
			t.Error("expected owner-based access")
		}
	})

	t.Run("unrelated member denied", func(t *testing.T) {
		if ev.CanAccessMember(ctx, "north@example.org", MemberID("MEM-SOUTH")) {
			t.Error("plain member must not open other records")
		}
	})

	t.Run("malformed input denies quietly", func(t *testing.T) {
		if ev.CanAccessMember(ctx, "", MemberID("MEM-NORTH")) {
			t.Error("empty user must deny")
		}
		if ev.CanAccessMember(ctx, "north@example.org", MemberRef{}) {
			t.Error("empty ref must deny")
		}
		if ev.CanAccessMember(ctx, "north@example.org", MemberID("MEM-MISSING")) {
			t.Error("missing member must deny")
		}
	})
}

func TestCanAccessDonor(t *testing.T) {
	db := directory.OpenTestDB(t)
	directory.SeedUser(t, db, "member@example.org")
	directory.SeedMember(t, db, "MEM-1", "member@example.org")
	directory.SeedUser(t, db, "other@example.org")
	directory.SeedMember(t, db, "MEM-2", "other@example.org")
	directory.SeedUser(t, db, "guest@example.org")
	directory.SeedUser(t, db, "admin@example.org")
	directory.SeedRole(t, db, "admin@example.org", directory.RoleManager)

	if _, err := db.Exec(
		`INSERT INTO donors (id, name, member_id) VALUES ('DON-1', 'Linked', 'MEM-1')`); err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO donors (id, name) VALUES ('DON-ORPHAN', 'Orphan')`); err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	// A donor whose member link points nowhere, as left behind by an
	// out-of-band member deletion.
	if _, err := db.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO donors (id, name, member_id) VALUES ('DON-STALE', 'Stale', 'MEM-GONE')`); err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("pragma: %v", err)
	}

	ev := newTestEvaluator(t, db)
	ctx := context.Background()

	t.Run("admin reaches any donor", func(t *testing.T) {
		if !ev.CanAccessDonor(ctx, "admin@example.org", DonorID("DON-ORPHAN")) {
			t.Error("expected admin access to orphaned donor")
		}
	})

	t.Run("member reaches own linked donor", func(t *testing.T) {
		if !ev.CanAccessDonor(ctx, "member@example.org", DonorID("DON-1")) {
			t.Error("expected access through member link")
		}
	})

	t.Run("other member denied", func(t *testing.T) {
		if ev.CanAccessDonor(ctx, "other@example.org", DonorID("DON-1")) {
			t.Error("donor link must not leak across members")
		}
	})

	t.Run("account without member record denied", func(t *testing.T) {
		if ev.CanAccessDonor(ctx, "guest@example.org", DonorID("DON-1")) {
			t.Error("expected denial without a member record")
		}
	})

	t.Run("orphaned donor stays admin-only", func(t *testing.T) {
		if ev.CanAccessDonor(ctx, "member@example.org", DonorID("DON-ORPHAN")) {
			t.Error("unlinked donor must stay admin-only")
		}
	})

	t.Run("dangling member link grants nothing", func(t *testing.T) {
		if ev.CanAccessDonor(ctx, "member@example.org", DonorID("DON-STALE")) {
			t.Error("link to a vanished member must deny")
		}
	})

	t.Run("loaded record answers like an id", func(t *testing.T) {
		d, err := directory.NewStore(db).DonorByID(ctx, "DON-1")
		if err != nil {
			t.Fatalf("DonorByID: %v", err)
		}
		byID := ev.CanAccessDonor(ctx, "member@example.org", DonorID("DON-1"))
		byRecord := ev.CanAccessDonor(ctx, "member@example.org", DonorRecord(d))
		if byID != byRecord {
			t.Errorf("id and record forms disagree: %v vs %v", byID, byRecord)
		}
	})
}

func TestCanAccessAddress(t *testing.T) {
	db := directory.OpenTestDB(t)
	directory.SeedUser(t, db, "member@example.org")
	directory.SeedMember(t, db, "MEM-1", "member@example.org")
	directory.SeedUser(t, db, "other@example.org")
	directory.SeedMember(t, db, "MEM-2", "other@example.org")
	directory.SeedUser(t, db, "legacy@example.org")
	directory.SeedUser(t, db, "admin@example.org")
	directory.SeedRole(t, db, "admin@example.org", directory.RoleSystemManager)

	for _, stmt := range []string{
		`INSERT INTO addresses (id) VALUES ('ADR-1'), ('ADR-LEGACY'), ('ADR-NONE')`,
		`INSERT INTO contacts (id, user_email) VALUES ('CONTACT-1', 'legacy@example.org')`,
		`INSERT INTO address_links (address_id, link_type, link_id) VALUES ('ADR-1', 'member', 'MEM-1')`,
		`INSERT INTO address_links (address_id, link_type, link_id) VALUES ('ADR-LEGACY', 'contact', 'CONTACT-1')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	ev := newTestEvaluator(t, db)
	ctx := context.Background()

	t.Run("admin reaches any address", func(t *testing.T) {
		if !ev.CanAccessAddress(ctx, "admin@example.org", AddressID("ADR-NONE")) {
			t.Error("expected admin access")
		}
	})

	t.Run("member reaches linked address", func(t *testing.T) {
		if !ev.CanAccessAddress(ctx, "member@example.org", AddressID("ADR-1")) {
			t.Error("expected access through member link")
		}
	})

	t.Run("other member denied", func(t *testing.T) {
		if ev.CanAccessAddress(ctx, "other@example.org", AddressID("ADR-1")) {
			t.Error("address links must not leak across members")
		}
	})

	t.Run("contact fallback", func(t *testing.T) {
		if !ev.CanAccessAddress(ctx, "legacy@example.org", AddressID("ADR-LEGACY")) {
			t.Error("expected access through contact link")
		}
	})

	t.Run("unlinked address denied", func(t *testing.T) {
		if ev.CanAccessAddress(ctx, "member@example.org", AddressID("ADR-NONE")) {
			t.Error("address without links must deny")
		}
		if ev.CanAccessAddress(ctx, "member@example.org", AddressRef{}) {
			t.Error("empty ref must deny")
		}
	})
}

func TestCanAccessTermination(t *testing.T) {
	db := directory.OpenTestDB(t)
	directory.SeedBoardScenario(t, db, "board@example.org", "MEM-B", "VOL-B", "CH-NORTH", "ROLE-CHAIR", directory.LevelBasic)
	directory.SeedChapter(t, db, "CH-SOUTH")

	directory.SeedUser(t, db, "north@example.org")
	directory.SeedMember(t, db, "MEM-NORTH", "north@example.org")
	directory.SeedChapterMember(t, db, "CH-NORTH", "MEM-NORTH", true)

	directory.SeedUser(t, db, "south@example.org")
	directory.SeedMember(t, db, "MEM-SOUTH", "south@example.org")
	directory.SeedChapterMember(t, db, "CH-SOUTH", "MEM-SOUTH", true)

	directory.SeedTermination(t, db, "TRM-NORTH", "MEM-NORTH")
	directory.SeedTermination(t, db, "TRM-SOUTH", "MEM-SOUTH")

	directory.SeedUser(t, db, "admin@example.org")
	directory.SeedRole(t, db, "admin@example.org", directory.RoleAdministrator)

	ev := newTestEvaluator(t, db)
	ctx := context.Background()

	t.Run("termination admin", func(t *testing.T) {
		if !ev.CanAccessTermination(ctx, "admin@example.org", TerminationID("TRM-SOUTH")) {
			t.Error("expected admin access")
		}
	})

	t.Run("board member within chapter", func(t *testing.T) {
		if !ev.CanAccessTermination(ctx, "board@example.org", TerminationID("TRM-NORTH")) {
			t.Error("expected board access within chapter")
		}
	})

	t.Run("board member outside chapter denied", func(t *testing.T) {
		if ev.CanAccessTermination(ctx, "board@example.org", TerminationID("TRM-SOUTH")) {
			t.Error("board member must not reach other chapters")
		}
	})

	t.Run("affected member opens own request", func(t *testing.T) {
		if !ev.CanAccessTermination(ctx, "north@example.org", TerminationID("TRM-NORTH")) {
			t.Error("expected access to own termination request")
		}
	})

	t.Run("unrelated member denied", func(t *testing.T) {
		if ev.CanAccessTermination(ctx, "north@example.org", TerminationID("TRM-SOUTH")) {
			t.Error("plain member must not open other requests")
		}
	})

	t.Run("national board reaches all chapters", func(t *testing.T) {
		store := directory.NewStore(db)
		if err := store.SetSetting(ctx, directory.SettingNationalChapter, "CH-NORTH"); err != nil {
			t.Fatalf("SetSetting: %v", err)
		}
		// Fresh evaluator so the cached scopes pick up the setting.
		ev2 := newTestEvaluator(t, db)
		if !ev2.CanAccessTermination(ctx, "board@example.org", TerminationID("TRM-SOUTH")) {
			t.Error("expected national board access across chapters")
		}
	})

	t.Run("missing request denies", func(t *testing.T) {
		if ev.CanAccessTermination(ctx, "board@example.org", TerminationID("TRM-MISSING")) {
			t.Error("missing request must deny")
		}
	})
}
