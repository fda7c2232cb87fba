package models

import "time"

// Child represents a child enrolled in the vaccination program.
type Child struct {
	ID              string    `db:"id" json:"id"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	Sex             string    `db:"sex" json:"sex"`
	BirthDate       time.Time `db:"birth_date" json:"birth_date"`
	GuardianName    string    `db:"guardian_name" json:"guardian_name"`
	GuardianContact string    `db:"guardian_contact" json:"guardian_contact"`
	Region          string    `db:"region" json:"region"`
	Facility        string    `db:"facility" json:"facility"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CreateChildRequest is the payload for enrolling a child.
type CreateChildRequest struct {
	FirstName       string    `json:"first_name" validate:"required"`
	LastName        string    `json:"last_name" validate:"required"`
	Sex             string    `json:"sex" validate:"required,oneof=male female"`
	BirthDate       time.Time `json:"birth_date" validate:"required"`
	GuardianName    string    `json:"guardian_name" validate:"required"`
	GuardianContact string    `json:"guardian_contact,omitempty"`
	Region          string    `json:"region" validate:"required"`
	Facility        string    `json:"facility" validate:"required"`
}

// UpdateChildRequest is the payload for updating a child record.
type UpdateChildRequest struct {
	FirstName       *string    `json:"first_name,omitempty"`
	LastName        *string    `json:"last_name,omitempty"`
	Sex             *string    `json:"sex,omitempty"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	GuardianName    *string    `json:"guardian_name,omitempty"`
	GuardianContact *string    `json:"guardian_contact,omitempty"`
}

// CreateVaccinationRequest is the payload for recording an administered dose.
type CreateVaccinationRequest struct {
	Vaccine        string    `json:"vaccine" validate:"required"`
	DoseNumber     int       `json:"dose_number" validate:"required,min=1"`
	AdministeredAt time.Time `json:"administered_at" validate:"required"`
}

// ChildFilter captures filtering criteria for listing children.
type ChildFilter struct {
	Region     string
	Facility   string
	Facilities []string
	MatchNone  bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// VaccinationRecord represents one administered dose for a child.
type VaccinationRecord struct {
	ID             string    `db:"id" json:"id"`
	ChildID        string    `db:"child_id" json:"child_id"`
	Vaccine        string    `db:"vaccine" json:"vaccine"`
	DoseNumber     int       `db:"dose_number" json:"dose_number"`
	AdministeredAt time.Time `db:"administered_at" json:"administered_at"`
	AdministeredBy string    `db:"administered_by" json:"administered_by"`
	Facility       string    `db:"facility" json:"facility"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
