package models

import "time"

// StockItem tracks doses on hand for one vaccine at one facility.
type StockItem struct {
	ID          string    `db:"id" json:"id"`
	Facility    string    `db:"facility" json:"facility"`
	Region      string    `db:"region" json:"region"`
	Vaccine     string    `db:"vaccine" json:"vaccine"`
	DosesOnHand int       `db:"doses_on_hand" json:"doses_on_hand"`
	Threshold   int       `db:"threshold" json:"threshold"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// UpsertStockRequest is the payload for setting the stock level of one
// vaccine at one facility.
type UpsertStockRequest struct {
	Facility    string `json:"facility" validate:"required"`
	Vaccine     string `json:"vaccine" validate:"required"`
	DosesOnHand int    `json:"doses_on_hand" validate:"min=0"`
	Threshold   int    `json:"threshold" validate:"min=0"`
}

// StockFilter captures filtering criteria for listing stock items.
type StockFilter struct {
	Region         string
	Facility       string
	Facilities     []string
	MatchNone      bool
	Vaccine        string
	BelowThreshold bool
	Page           int
	PageSize       int
}
