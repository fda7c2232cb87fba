package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	"github.com/modoudou1/vaxcare-api/internal/repository"
	"github.com/modoudou1/vaxcare-api/pkg/storage"
)

type mockReportRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.ReportJob
	seq  int
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{jobs: map[string]*models.ReportJob{}}
}

func (m *mockReportRepo) Create(_ context.Context, job *models.ReportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	job.ID = fmt.Sprintf("job-%d", m.seq)
	job.CreatedAt = time.Now().UTC()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockReportRepo) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	copied := *job
	return &copied, nil
}

func (m *mockReportRepo) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportRepo) ListQueued(_ context.Context, limit int) ([]models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued && len(out) < limit {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockReportRepo) ListFinishedBefore(_ context.Context, _ time.Time, _ int) ([]models.ReportJob, error) {
	return nil, nil
}

func (m *mockReportRepo) get(id string) models.ReportJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

type mockCoverageRepo struct {
	mu         sync.Mutex
	lastFilter models.ChildFilter
	rows       []models.CoverageRow
}

func (m *mockCoverageRepo) CoverageRows(_ context.Context, filter models.ChildFilter) ([]models.CoverageRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	return m.rows, nil
}

func (m *mockCoverageRepo) filter() models.ChildFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFilter
}

type mockReportStockRepo struct {
	items []models.StockItem
}

func (m *mockReportStockRepo) List(_ context.Context, filter models.StockFilter) ([]models.StockItem, int, error) {
	start := (filter.Page - 1) * filter.PageSize
	if start < 0 || start >= len(m.items) {
		return nil, len(m.items), nil
	}
	end := start + filter.PageSize
	if end > len(m.items) {
		end = len(m.items)
	}
	return m.items[start:end], len(m.items), nil
}

type staticFacilitySet struct {
	names map[string][]string
}

func (s *staticFacilitySet) NamesUnderDistrict(_ context.Context, district string) ([]string, error) {
	return s.names[district], nil
}

func newReportFixture(t *testing.T, facilitySets map[string][]string) (*ReportService, *mockReportRepo, *mockCoverageRepo, *mockReportStockRepo) {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	repo := newMockReportRepo()
	coverage := &mockCoverageRepo{rows: []models.CoverageRow{
		{Region: "Dakar", Facility: "Clinic X", Vaccine: "BCG", ChildrenTotal: 40, DosesGiven: 35},
		{Region: "Dakar", Facility: "Clinic X", Vaccine: "Polio", ChildrenTotal: 40, DosesGiven: 28},
	}}
	stock := &mockReportStockRepo{items: []models.StockItem{
		{Region: "Dakar", Facility: "Clinic X", Vaccine: "BCG", DosesOnHand: 12, Threshold: 20},
	}}
	resolver := NewScopeResolver(&staticFacilitySet{names: facilitySets}, nil, time.Minute, nil)

	svc := NewReportService(repo, coverage, stock, resolver, store, signer, nil, nil, nil, ReportConfig{
		WorkerConcurrency: 1,
		WorkerRetries:     1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		svc.Stop()
	})
	return svc, repo, coverage, stock
}

func waitFinished(t *testing.T, repo *mockReportRepo, jobID string) models.ReportJob {
	t.Helper()
	require.Eventually(t, func() bool {
		return repo.get(jobID).Status == models.ReportStatusFinished
	}, 3*time.Second, 10*time.Millisecond, "job %s never finished", jobID)
	return repo.get(jobID)
}

func downloadPayload(t *testing.T, svc *ReportService, resultURL string) string {
	t.Helper()
	token := strings.TrimPrefix(resultURL, "/reports/download/")
	path, err := svc.OpenDownload(token)
	require.NoError(t, err)
	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(payload)
}

func TestCreateFreezesDistrictScope(t *testing.T) {
	svc, repo, _, _ := newReportFixture(t, map[string][]string{
		"District A": {"District A", "Clinic X", "Health Post Y"},
	})

	actor := authz.Actor{ID: "u-district", Role: models.RoleDistrict, Region: "Dakar", Facility: "District A"}
	job, err := svc.Create(context.Background(), actor, models.CreateReportRequest{
		Type:   models.ReportTypeCoverage,
		Format: models.ReportFormatCSV,
	})
	require.NoError(t, err)

	stored := repo.get(job.ID)
	assert.Equal(t, []string{"District A", "Clinic X", "Health Post Y"}, stored.Params.Facilities)
	assert.Equal(t, "u-district", stored.CreatedBy)
}

func TestCreateEmptyDistrictScopeMatchesNothing(t *testing.T) {
	svc, repo, coverage, _ := newReportFixture(t, map[string][]string{})

	actor := authz.Actor{ID: "u-district", Role: models.RoleDistrict, Region: "Dakar", Facility: "District B"}
	job, err := svc.Create(context.Background(), actor, models.CreateReportRequest{
		Type:   models.ReportTypeCoverage,
		Format: models.ReportFormatCSV,
	})
	require.NoError(t, err)
	require.Equal(t, []string{""}, repo.get(job.ID).Params.Facilities)

	waitFinished(t, repo, job.ID)
	assert.Equal(t, []string{""}, coverage.filter().Facilities)
}

func TestProcessRendersAndSignsResult(t *testing.T) {
	svc, repo, _, _ := newReportFixture(t, map[string][]string{})

	actor := authz.Actor{ID: "u-nat", Role: models.RoleNational}
	job, err := svc.Create(context.Background(), actor, models.CreateReportRequest{
		Type:   models.ReportTypeCoverage,
		Format: models.ReportFormatCSV,
	})
	require.NoError(t, err)

	stored := waitFinished(t, repo, job.ID)
	require.NotNil(t, stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)
	require.True(t, strings.HasPrefix(*stored.ResultURL, "/reports/download/"))

	payload := downloadPayload(t, svc, *stored.ResultURL)
	assert.Contains(t, payload, "BCG")
}

func TestProcessVaccineFilterNarrowsCoverage(t *testing.T) {
	svc, repo, _, _ := newReportFixture(t, map[string][]string{})

	actor := authz.Actor{ID: "u-nat", Role: models.RoleNational}
	job, err := svc.Create(context.Background(), actor, models.CreateReportRequest{
		Type:    models.ReportTypeCoverage,
		Format:  models.ReportFormatCSV,
		Vaccine: "Polio",
	})
	require.NoError(t, err)

	stored := waitFinished(t, repo, job.ID)
	payload := downloadPayload(t, svc, *stored.ResultURL)
	assert.Contains(t, payload, "Polio")
	assert.NotContains(t, payload, "BCG")
}

func TestProcessStockExportSpansPages(t *testing.T) {
	svc, repo, _, stock := newReportFixture(t, map[string][]string{})

	items := make([]models.StockItem, 250)
	for i := range items {
		items[i] = models.StockItem{
			Region:      "Dakar",
			Facility:    "Clinic X",
			Vaccine:     fmt.Sprintf("VAX-%03d", i+1),
			DosesOnHand: i,
			Threshold:   20,
		}
	}
	stock.items = items

	actor := authz.Actor{ID: "u-nat", Role: models.RoleNational}
	job, err := svc.Create(context.Background(), actor, models.CreateReportRequest{
		Type:   models.ReportTypeStock,
		Format: models.ReportFormatCSV,
	})
	require.NoError(t, err)

	stored := waitFinished(t, repo, job.ID)
	payload := downloadPayload(t, svc, *stored.ResultURL)
	assert.Equal(t, 250, strings.Count(payload, "VAX-"))
	assert.Contains(t, payload, "VAX-250")
}

func TestGetHidesOtherUsersJobs(t *testing.T) {
	svc, _, _, _ := newReportFixture(t, map[string][]string{})

	creator := authz.Actor{ID: "u-regional", Role: models.RoleRegional, Region: "Dakar"}
	job, err := svc.Create(context.Background(), creator, models.CreateReportRequest{
		Type:   models.ReportTypeStock,
		Format: models.ReportFormatCSV,
	})
	require.NoError(t, err)

	other := authz.Actor{ID: "u-other", Role: models.RoleRegional, Region: "Thiès"}
	_, err = svc.Get(context.Background(), other, job.ID)
	require.Error(t, err)

	national := authz.Actor{ID: "u-nat", Role: models.RoleNational}
	got, err := svc.Get(context.Background(), national, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}
