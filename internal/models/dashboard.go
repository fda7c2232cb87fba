package models

import "time"

// DashboardSummary aggregates the counts shown on role-scoped dashboards.
// Which rows contribute is decided by the caller's scope filter, not here.
type DashboardSummary struct {
	Regions             int       `json:"regions"`
	Facilities          int       `json:"facilities"`
	Users               int       `json:"users"`
	Children            int       `json:"children"`
	DosesAdministered   int       `json:"doses_administered"`
	StockBelowThreshold int       `json:"stock_below_threshold"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// SystemMetrics represents system level metrics captured from instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AuthzDecisions           uint64    `json:"authz_decisions"`
	AuthzDenials             uint64    `json:"authz_denials"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// CoverageRow is one line of a vaccination coverage report.
type CoverageRow struct {
	Region        string `db:"region" json:"region"`
	Facility      string `db:"facility" json:"facility"`
	Vaccine       string `db:"vaccine" json:"vaccine"`
	ChildrenTotal int    `db:"children_total" json:"children_total"`
	DosesGiven    int    `db:"doses_given" json:"doses_given"`
}
