package models

import "time"

// FacilityType categorizes a health facility. The district type doubles as
// the supervising node for the other types via ParentDistrict.
type FacilityType string

const (
	FacilityTypeDistrict         FacilityType = "district"
	FacilityTypeHealthCenter     FacilityType = "health_center"
	FacilityTypeHealthPost       FacilityType = "health_post"
	FacilityTypeHealthCase       FacilityType = "health_case"
	FacilityTypeClinic           FacilityType = "clinic"
	FacilityTypeCompanyInfirmary FacilityType = "company_infirmary"
	FacilityTypeOther            FacilityType = "other"
)

// ValidFacilityType reports whether t is one of the known facility types.
func ValidFacilityType(t FacilityType) bool {
	switch t {
	case FacilityTypeDistrict, FacilityTypeHealthCenter, FacilityTypeHealthPost,
		FacilityTypeHealthCase, FacilityTypeClinic, FacilityTypeCompanyInfirmary,
		FacilityTypeOther:
		return true
	}
	return false
}

// HealthFacility represents a health-service location. Name is unique within
// a region. ParentDistrict names the supervising district facility and is
// empty when Type is district.
type HealthFacility struct {
	ID             string       `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Region         string       `db:"region" json:"region"`
	Type           FacilityType `db:"type" json:"type"`
	ParentDistrict string       `db:"parent_district" json:"parent_district,omitempty"`
	Address        string       `db:"address" json:"address,omitempty"`
	Phone          string       `db:"phone" json:"phone,omitempty"`
	Active         bool         `db:"active" json:"active"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// CreateFacilityRequest is the payload for creating a health facility. Region
// and parent district are forced to the caller's own when the caller is not
// national.
type CreateFacilityRequest struct {
	Name           string       `json:"name" validate:"required"`
	Region         string       `json:"region,omitempty"`
	Type           FacilityType `json:"type" validate:"required"`
	ParentDistrict string       `json:"parent_district,omitempty"`
	Address        string       `json:"address,omitempty"`
	Phone          string       `json:"phone,omitempty"`
}

// UpdateFacilityRequest is the payload for updating a health facility.
type UpdateFacilityRequest struct {
	Type           *FacilityType `json:"type,omitempty"`
	ParentDistrict *string       `json:"parent_district,omitempty"`
	Address        *string       `json:"address,omitempty"`
	Phone          *string       `json:"phone,omitempty"`
	Active         *bool         `json:"active,omitempty"`
}

// CreateRegionRequest is the payload for creating a region.
type CreateRegionRequest struct {
	Name string `json:"name" validate:"required"`
}

// FacilityFilter captures filtering criteria for listing facilities.
type FacilityFilter struct {
	Region         string
	Type           *FacilityType
	ParentDistrict string
	MatchNone      bool
	Active         *bool
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// Region represents an administrative region of the program.
type Region struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
