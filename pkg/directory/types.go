package directory

import (
	"time"
)

// Role is a role label attached to a user account.
type Role string

const (
	RoleSystemManager      Role = "System Manager"
	RoleManager            Role = "Verenigingen Manager"
	RoleAdministrator      Role = "Verenigingen Administrator"
	RoleStaff              Role = "Verenigingen Staff"
	RoleMember             Role = "Verenigingen Member"
	RoleVolunteerManager   Role = "Volunteer Manager"
	RoleVolunteerCoord     Role = "Volunteer Coordinator"
	RoleChapterManager     Role = "Verenigingen Chapter Manager"
	RoleTeamLeader         Role = "Team Leader"
	RoleChapterBoardMember Role = "Chapter Board Member"
)

// AdminRoles grant unrestricted access to member data.
func AdminRoles() []Role {
	return []Role{RoleSystemManager, RoleManager, RoleAdministrator}
}

// TerminationAdminRoles grant termination and expense administration.
func TerminationAdminRoles() []Role {
	return []Role{RoleSystemManager, RoleAdministrator}
}

// VolunteerAdminRoles grant unrestricted volunteer access.
func VolunteerAdminRoles() []Role {
	return []Role{RoleSystemManager, RoleManager, RoleAdministrator, RoleVolunteerManager}
}

// ManagementRoles widen the volunteer list filter beyond self-access.
func ManagementRoles() []Role {
	return []Role{RoleVolunteerCoord, RoleChapterManager, RoleChapterBoardMember, RoleTeamLeader}
}

// PermissionCategory controls who may see a member's financial data.
type PermissionCategory string

const (
	CategoryPublic    PermissionCategory = "Public"
	CategoryBoardOnly PermissionCategory = "Board Only"
	CategoryAdminOnly PermissionCategory = "Admin Only"
)

// PermissionsLevel classifies a chapter role.
type PermissionsLevel string

const (
	LevelBasic     PermissionsLevel = "Basic"
	LevelFinancial PermissionsLevel = "Financial"
)

// MemberStatus values used by the permission layer.
const (
	MemberStatusActive     = "Active"
	MemberStatusTerminated = "Terminated"
)

// User is a login principal. Role labels live in user_roles and are
// mutated only by the role synchronizer.
type User struct {
	Email     string    `json:"email"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a person's association-membership record.
type Member struct {
	ID                 string             `json:"id"`
	FullName           string             `json:"full_name"`
	Email              string             `json:"email"`
	UserEmail          *string            `json:"user_email,omitempty"`
	Status             string             `json:"status"`
	PermissionCategory PermissionCategory `json:"permission_category"`
	Owner              string             `json:"owner,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Volunteer is a member's volunteering-capacity record. MemberID may be
// nil for incomplete registrations.
type Volunteer struct {
	ID        string    `json:"id"`
	MemberID  *string   `json:"member_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chapter is a geographic subdivision of the association.
type Chapter struct {
	ID        string    `json:"id"`
	Region    string    `json:"region"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
}

// ChapterMember links a member to a chapter.
type ChapterMember struct {
	ID        int64     `json:"id"`
	ChapterID string    `json:"chapter_id"`
	MemberID  string    `json:"member_id"`
	Enabled   bool      `json:"enabled"`
	JoinDate  time.Time `json:"join_date"`
}

// ChapterRole is a named board role definition.
type ChapterRole struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	PermissionsLevel PermissionsLevel `json:"permissions_level"`
	IsUnique         bool             `json:"is_unique"`
	IsActive         bool             `json:"is_active"`
}

// BoardPosition assigns a volunteer to a chapter role. A position
// confers access while is_active is set and the end date, if any, lies
// in the future.
type BoardPosition struct {
	ID          int64      `json:"id"`
	ChapterID   string     `json:"chapter_id"`
	VolunteerID string     `json:"volunteer_id"`
	RoleID      string     `json:"role_id"`
	IsActive    bool       `json:"is_active"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// BoardPositionSummary is a joined view used by the admin API and the
// treasurer checks.
type BoardPositionSummary struct {
	ChapterID        string           `json:"chapter_id"`
	RoleID           string           `json:"role_id"`
	RoleName         string           `json:"role_name"`
	PermissionsLevel PermissionsLevel `json:"permissions_level"`
	IsActive         bool             `json:"is_active"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
}

// Donor is optionally linked to a member; an orphaned donor is valid
// but access-restricted.
type Donor struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	MemberID *string `json:"member_id,omitempty"`
}

// Address plus its link rows. Links either reference a member directly
// or fall back to a contact for records not yet migrated.
type Address struct {
	ID   string `json:"id"`
	City string `json:"city,omitempty"`
}

// AddressLinkType discriminates address_links rows.
type AddressLinkType string

const (
	LinkMember  AddressLinkType = "member"
	LinkContact AddressLinkType = "contact"
)

// TerminationRequest asks for a member's membership to end.
type TerminationRequest struct {
	ID       string `json:"id"`
	MemberID string `json:"member_id"`
	Status   string `json:"status"`
}

// VolunteerExpense is a reimbursable expense filed by a volunteer
// against a chapter budget.
type VolunteerExpense struct {
	ID          string  `json:"id"`
	VolunteerID string  `json:"volunteer_id"`
	ChapterID   string  `json:"chapter_id"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
}

// Team and TeamMember feed the volunteer list filter's team-leader
// expansion.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TeamMember struct {
	ID           int64  `json:"id"`
	TeamID       string `json:"team_id"`
	VolunteerID  string `json:"volunteer_id"`
	IsTeamLeader bool   `json:"is_team_leader"`
	IsActive     bool   `json:"is_active"`
}

// RecordType names an entity category in the grant configuration.
type RecordType string

const (
	RecordMember       RecordType = "Member"
	RecordMembership   RecordType = "Membership"
	RecordChapter      RecordType = "Chapter"
	RecordTermination  RecordType = "Membership Termination Request"
	RecordExpense      RecordType = "Volunteer Expense"
	RecordVolunteer    RecordType = "Volunteer"
	RecordDonor        RecordType = "Donor"
	RecordAddress      RecordType = "Address"
	RecordTeamMember   RecordType = "Team Member"
	RecordChapterMember RecordType = "Chapter Member"
)

// Grant is one row of the effective access-grant configuration for a
// (record type, role) pair. The security validator audits these.
type Grant struct {
	ID         int64      `json:"id"`
	RecordType RecordType `json:"record_type"`
	Role       Role       `json:"role"`
	Read       bool       `json:"read"`
	Write      bool       `json:"write"`
	Create     bool       `json:"create"`
	Delete     bool       `json:"delete"`
	Cancel     bool       `json:"cancel"`
	Amend      bool       `json:"amend"`
	Submit     bool       `json:"submit"`
	Import     bool       `json:"import"`
	Export     bool       `json:"export"`
}

// Settings keys recognised by the permission layer.
const (
	SettingNationalChapter      = "national_chapter"
	SettingNationalBoardChapter = "national_board_chapter"
)
