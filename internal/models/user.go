package models

import "time"

// Role identifies a position in the vaccination-program hierarchy.
type Role string

const (
	RoleNational Role = "national"
	RoleRegional Role = "regional"
	RoleDistrict Role = "district"
	// RoleAgent is the legacy catch-all for facility-level staff. Records
	// created before the district role existed still carry it, distinguished
	// only by SubLevel.
	RoleAgent Role = "agent"
	// RoleUser is the terminal end-consumer role, outside the management
	// hierarchy.
	RoleUser Role = "user"
)

// SubLevel refines a legacy agent record into a concrete hierarchy position.
type SubLevel string

const (
	SubLevelNone          SubLevel = ""
	SubLevelDistrict      SubLevel = "district"
	SubLevelFacilityAdmin SubLevel = "facility_admin"
	SubLevelFacilityStaff SubLevel = "facility_staff"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         Role       `db:"role" json:"role"`
	SubLevel     SubLevel   `db:"sub_level" json:"sub_level,omitempty"`
	Region       string     `db:"region" json:"region,omitempty"`
	Facility     string     `db:"facility" json:"facility,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateUserRequest is the payload for creating a user. Role, sub-level,
// region and facility are requests, not guarantees: the delegation rules may
// force or reject them depending on who is asking.
type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	FullName string   `json:"full_name" validate:"required"`
	Role     Role     `json:"role" validate:"required"`
	SubLevel SubLevel `json:"sub_level,omitempty"`
	Region   string   `json:"region,omitempty"`
	Facility string   `json:"facility,omitempty"`
}

// UpdateUserRequest is the payload for updating a user.
type UpdateUserRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	ID         string
	Role       *Role
	SubLevel   *SubLevel
	Region     string
	Facility   string
	Facilities []string
	MatchNone  bool
	Active     *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
