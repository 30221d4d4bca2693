package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidsyncd/vidsyncd/internal/models"
)

// mockJobRepo implements repository.JobRepository for testing.
type mockJobRepo struct {
	jobs           map[models.ULID]*models.Job
	history        []*models.JobHistory
	acquireErr     error
	acquireReturns *models.Job
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{
		jobs: make(map[models.ULID]*models.Job),
	}
}

func (m *mockJobRepo) Create(ctx context.Context, job *models.Job) error {
	if job.ID.IsZero() {
		job.ID = models.NewULID()
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepo) GetByID(ctx context.Context, id models.ULID) (*models.Job, error) {
	return m.jobs[id], nil
}

func (m *mockJobRepo) GetAll(ctx context.Context) ([]*models.Job, error) {
	var jobs []*models.Job
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (m *mockJobRepo) GetPending(ctx context.Context) ([]*models.Job, error) {
	var jobs []*models.Job
	for _, j := range m.jobs {
		if j.Status == models.JobStatusPending || j.Status == models.JobStatusScheduled {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (m *mockJobRepo) GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	var jobs []*models.Job
	for _, j := range m.jobs {
		if j.Status == status {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (m *mockJobRepo) GetByType(ctx context.Context, jobType models.JobType) ([]*models.Job, error) {
	var jobs []*models.Job
	for _, j := range m.jobs {
		if j.Type == jobType {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (m *mockJobRepo) GetByTargetID(ctx context.Context, targetID models.ULID) ([]*models.Job, error) {
	var jobs []*models.Job
	for _, j := range m.jobs {
		if j.TargetID == targetID {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (m *mockJobRepo) GetRunning(ctx context.Context) ([]*models.Job, error) {
	var jobs []*models.Job
	for _, j := range m.jobs {
		if j.Status == models.JobStatusRunning {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (m *mockJobRepo) Update(ctx context.Context, job *models.Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepo) Delete(ctx context.Context, id models.ULID) error {
	delete(m.jobs, id)
	return nil
}

func (m *mockJobRepo) DeleteCompleted(ctx context.Context, before time.Time) (int64, error) {
	var count int64
	for id, j := range m.jobs {
		if j.IsFinished() && j.CompletedAt != nil && j.CompletedAt.Before(before) {
			delete(m.jobs, id)
			count++
		}
	}
	return count, nil
}

func (m *mockJobRepo) AcquireJob(ctx context.Context, workerID string) (*models.Job, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	if m.acquireReturns != nil {
		return m.acquireReturns, nil
	}
	for _, j := range m.jobs {
		if j.Status == models.JobStatusPending && j.LockedBy == "" {
			j.Status = models.JobStatusRunning
			j.LockedBy = workerID
			now := models.Now()
			j.LockedAt = &now
			j.AttemptCount++
			return j, nil
		}
	}
	return nil, nil
}

func (m *mockJobRepo) ReleaseJob(ctx context.Context, id models.ULID) error {
	if j, ok := m.jobs[id]; ok {
		j.LockedBy = ""
		j.LockedAt = nil
		j.Status = models.JobStatusPending
	}
	return nil
}

func (m *mockJobRepo) FindDuplicatePending(ctx context.Context, jobType models.JobType, targetID models.ULID) (*models.Job, error) {
	for _, j := range m.jobs {
		if j.Type == jobType && j.TargetID == targetID && j.IsPending() {
			return j, nil
		}
	}
	return nil, nil
}

func (m *mockJobRepo) CreateHistory(ctx context.Context, history *models.JobHistory) error {
	if history.ID.IsZero() {
		history.ID = models.NewULID()
	}
	m.history = append(m.history, history)
	return nil
}

func (m *mockJobRepo) GetHistory(ctx context.Context, jobType *models.JobType, offset, limit int) ([]*models.JobHistory, int64, error) {
	var filtered []*models.JobHistory
	for _, h := range m.history {
		if jobType == nil || h.Type == *jobType {
			filtered = append(filtered, h)
		}
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (m *mockJobRepo) DeleteHistory(ctx context.Context, before time.Time) (int64, error) {
	var remaining []*models.JobHistory
	var count int64
	for _, h := range m.history {
		if h.CompletedAt == nil || h.CompletedAt.After(before) {
			remaining = append(remaining, h)
		} else {
			count++
		}
	}
	m.history = remaining
	return count, nil
}

// mockFavoriteRepo implements repository.SourceFavoriteRepository for testing.
type mockFavoriteRepo struct {
	sources []*models.SourceFavorite
}

func (m *mockFavoriteRepo) Create(ctx context.Context, source *models.SourceFavorite) error { return nil }

func (m *mockFavoriteRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceFavorite, error) {
	for _, s := range m.sources {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockFavoriteRepo) GetAll(ctx context.Context) ([]*models.SourceFavorite, error) {
	return m.sources, nil
}

func (m *mockFavoriteRepo) GetEnabled(ctx context.Context) ([]*models.SourceFavorite, error) {
	var enabled []*models.SourceFavorite
	for _, s := range m.sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

func (m *mockFavoriteRepo) GetByFID(ctx context.Context, fid string) (*models.SourceFavorite, error) {
	return nil, nil
}

func (m *mockFavoriteRepo) Update(ctx context.Context, source *models.SourceFavorite) error { return nil }

func (m *mockFavoriteRepo) Delete(ctx context.Context, id models.ULID) error { return nil }

func (m *mockFavoriteRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	return nil
}

// mockCollectionRepo implements repository.SourceCollectionRepository for testing.
type mockCollectionRepo struct {
	sources []*models.SourceCollection
}

func (m *mockCollectionRepo) Create(ctx context.Context, source *models.SourceCollection) error {
	return nil
}

func (m *mockCollectionRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceCollection, error) {
	return nil, nil
}

func (m *mockCollectionRepo) GetAll(ctx context.Context) ([]*models.SourceCollection, error) {
	return m.sources, nil
}

func (m *mockCollectionRepo) GetEnabled(ctx context.Context) ([]*models.SourceCollection, error) {
	var enabled []*models.SourceCollection
	for _, s := range m.sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

func (m *mockCollectionRepo) GetByCollectionID(ctx context.Context, collectionID string, kind models.CollectionKind) (*models.SourceCollection, error) {
	return nil, nil
}

func (m *mockCollectionRepo) Update(ctx context.Context, source *models.SourceCollection) error {
	return nil
}

func (m *mockCollectionRepo) Delete(ctx context.Context, id models.ULID) error { return nil }

func (m *mockCollectionRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	return nil
}

// mockSubmissionRepo implements repository.SourceSubmissionRepository for testing.
type mockSubmissionRepo struct {
	sources []*models.SourceSubmission
}

func (m *mockSubmissionRepo) Create(ctx context.Context, source *models.SourceSubmission) error {
	return nil
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceSubmission, error) {
	return nil, nil
}

func (m *mockSubmissionRepo) GetAll(ctx context.Context) ([]*models.SourceSubmission, error) {
	return m.sources, nil
}

func (m *mockSubmissionRepo) GetEnabled(ctx context.Context) ([]*models.SourceSubmission, error) {
	var enabled []*models.SourceSubmission
	for _, s := range m.sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

func (m *mockSubmissionRepo) GetByMID(ctx context.Context, mid string) (*models.SourceSubmission, error) {
	return nil, nil
}

func (m *mockSubmissionRepo) Update(ctx context.Context, source *models.SourceSubmission) error {
	return nil
}

func (m *mockSubmissionRepo) Delete(ctx context.Context, id models.ULID) error { return nil }

func (m *mockSubmissionRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	return nil
}

// mockWatchLaterRepo implements repository.SourceWatchLaterRepository for testing.
type mockWatchLaterRepo struct {
	sources []*models.SourceWatchLater
}

func (m *mockWatchLaterRepo) Create(ctx context.Context, source *models.SourceWatchLater) error {
	return nil
}

func (m *mockWatchLaterRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceWatchLater, error) {
	return nil, nil
}

func (m *mockWatchLaterRepo) GetAll(ctx context.Context) ([]*models.SourceWatchLater, error) {
	return m.sources, nil
}

func (m *mockWatchLaterRepo) GetEnabled(ctx context.Context) ([]*models.SourceWatchLater, error) {
	var enabled []*models.SourceWatchLater
	for _, s := range m.sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

func (m *mockWatchLaterRepo) GetByOwnerKey(ctx context.Context, ownerKey string) (*models.SourceWatchLater, error) {
	return nil, nil
}

func (m *mockWatchLaterRepo) Update(ctx context.Context, source *models.SourceWatchLater) error {
	return nil
}

func (m *mockWatchLaterRepo) Delete(ctx context.Context, id models.ULID) error { return nil }

func (m *mockWatchLaterRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	return nil
}

// mockBangumiRepo implements repository.SourceBangumiRepository for testing.
type mockBangumiRepo struct {
	sources []*models.SourceBangumi
}

func (m *mockBangumiRepo) Create(ctx context.Context, source *models.SourceBangumi) error {
	return nil
}

func (m *mockBangumiRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceBangumi, error) {
	return nil, nil
}

func (m *mockBangumiRepo) GetAll(ctx context.Context) ([]*models.SourceBangumi, error) {
	return m.sources, nil
}

func (m *mockBangumiRepo) GetEnabled(ctx context.Context) ([]*models.SourceBangumi, error) {
	var enabled []*models.SourceBangumi
	for _, s := range m.sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled, nil
}

func (m *mockBangumiRepo) GetBySeasonID(ctx context.Context, seasonID string) (*models.SourceBangumi, error) {
	return nil, nil
}

func (m *mockBangumiRepo) Update(ctx context.Context, source *models.SourceBangumi) error {
	return nil
}

func (m *mockBangumiRepo) Delete(ctx context.Context, id models.ULID) error { return nil }

func (m *mockBangumiRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	return nil
}

func newTestScheduler(jobRepo *mockJobRepo, favoriteRepo *mockFavoriteRepo) *Scheduler {
	if favoriteRepo == nil {
		favoriteRepo = &mockFavoriteRepo{}
	}
	return NewScheduler(jobRepo, favoriteRepo, &mockCollectionRepo{}, &mockSubmissionRepo{}, &mockWatchLaterRepo{}, &mockBangumiRepo{})
}

func TestScheduler_ValidateCron(t *testing.T) {
	jobRepo := newMockJobRepo()
	scheduler := newTestScheduler(jobRepo, nil)

	tests := []struct {
		name    string
		cron    string
		wantErr bool
	}{
		// 6-field format (default)
		{"valid 6-field every 6 hours", "0 0 */6 * * *", false},
		{"valid 6-field every minute", "0 * * * * *", false},
		{"valid 6-field daily at midnight", "0 0 0 * * *", false},
		{"valid 6-field weekly", "0 0 0 * * 0", false},
		// 7-field format (legacy with year)
		{"valid 7-field with year wildcard", "0 0 */6 * * * *", false},
		{"valid 7-field daily with year", "0 0 0 * * * *", false},
		{"valid 7-field with specific year", "0 0 0 * * * 2024", false},
		{"valid 7-field with year range", "0 0 0 * * * 2024-2030", false},
		// Special descriptors
		{"valid @every descriptor", "@every 1h", false},
		{"valid @daily descriptor", "@daily", false},
		// Invalid formats
		{"invalid format", "invalid", true},
		{"too few fields", "* * *", true},
		{"too many fields", "0 0 0 * * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := scheduler.ValidateCron(tt.cron)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_ParseCron(t *testing.T) {
	jobRepo := newMockJobRepo()
	scheduler := newTestScheduler(jobRepo, nil)

	// Test 6-field cron (default)
	nextRun, err := scheduler.ParseCron("0 0 */6 * * *")
	require.NoError(t, err)
	assert.True(t, nextRun.After(time.Now()))

	// Test 7-field cron (legacy) - should also work
	nextRun7, err := scheduler.ParseCron("0 0 */6 * * * *")
	require.NoError(t, err)
	assert.True(t, nextRun7.After(time.Now()))
}

func TestNormalizeCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		// 6-field (pass through)
		{"6-field pass through", "0 0 */6 * * *", "0 0 */6 * * *", false},
		{"6-field every minute", "0 * * * * *", "0 * * * * *", false},
		// 7-field (strip year)
		{"7-field strip year wildcard", "0 0 */6 * * * *", "0 0 */6 * * *", false},
		{"7-field strip specific year", "0 0 0 * * * 2024", "0 0 0 * * *", false},
		{"7-field strip year range", "0 0 0 * * * 2024-2030", "0 0 0 * * *", false},
		// Special descriptors
		{"@every descriptor", "@every 1h", "@every 1h", false},
		{"@daily descriptor", "@daily", "@daily", false},
		// Invalid
		{"empty", "", "", true},
		{"5 fields", "0 0 * * *", "", true},
		{"8 fields", "0 0 0 * * * * *", "", true},
		{"invalid year field", "0 0 0 * * * invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCronExpression(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestScheduler_ScheduleImmediate(t *testing.T) {
	jobRepo := newMockJobRepo()
	scheduler := newTestScheduler(jobRepo, nil)
	ctx := context.Background()

	targetID := models.NewULID()

	// First call creates a new job
	job1, err := scheduler.ScheduleImmediate(ctx, models.SourceTypeFavorite, targetID, "Test Source")
	require.NoError(t, err)
	require.NotNil(t, job1)
	assert.Equal(t, models.JobTypeSourceScan, job1.Type)
	assert.Equal(t, models.SourceTypeFavorite, job1.TargetType)
	assert.Equal(t, targetID, job1.TargetID)
	assert.Equal(t, models.JobStatusPending, job1.Status)

	// Second call returns the existing job (deduplication)
	job2, err := scheduler.ScheduleImmediate(ctx, models.SourceTypeFavorite, targetID, "Test Source")
	require.NoError(t, err)
	require.NotNil(t, job2)
	assert.Equal(t, job1.ID, job2.ID)

	// A different target creates a new job
	job3, err := scheduler.ScheduleImmediate(ctx, models.SourceTypeBangumi, models.NewULID(), "Other Source")
	require.NoError(t, err)
	require.NotNil(t, job3)
	assert.NotEqual(t, job1.ID, job3.ID)
}

func TestScheduler_StartStop(t *testing.T) {
	jobRepo := newMockJobRepo()
	scheduler := newTestScheduler(jobRepo, nil).
		WithConfig(SchedulerConfig{SyncInterval: 100 * time.Millisecond})

	ctx := context.Background()

	// Start scheduler
	err := scheduler.Start(ctx)
	require.NoError(t, err)

	// Double start should error
	err = scheduler.Start(ctx)
	assert.Error(t, err)

	// Stop scheduler
	scheduler.Stop()

	// Can restart after stop
	err = scheduler.Start(ctx)
	require.NoError(t, err)
	scheduler.Stop()
}

func TestScheduler_LoadSchedules(t *testing.T) {
	jobRepo := newMockJobRepo()

	sourceID := models.NewULID()
	source := &models.SourceFavorite{
		SourceCommon: models.SourceCommon{
			DisplayName:  "Test Source",
			Enabled:      true,
			CronSchedule: "0 * * * * *", // Every minute (6-field with seconds)
		},
	}
	source.ID = sourceID

	favoriteRepo := &mockFavoriteRepo{sources: []*models.SourceFavorite{source}}
	scheduler := newTestScheduler(jobRepo, favoriteRepo).
		WithConfig(SchedulerConfig{SyncInterval: time.Minute})

	ctx := context.Background()

	// Load schedules (this registers cron entries but doesn't create jobs immediately)
	err := scheduler.ForceSync(ctx)
	require.NoError(t, err)

	// Should have registered the schedule
	assert.Equal(t, 1, scheduler.GetEntryCount())
}

func TestScheduler_CatchupMissedRuns(t *testing.T) {
	jobRepo := newMockJobRepo()

	sourceID := models.NewULID()
	past := models.Time(time.Now().Add(-48 * time.Hour))
	source := &models.SourceFavorite{
		SourceCommon: models.SourceCommon{
			DisplayName:  "Missed Source",
			Enabled:      true,
			CronSchedule: "0 0 * * * *", // hourly
			LatestRowAt:  &past,
		},
	}
	source.ID = sourceID

	favoriteRepo := &mockFavoriteRepo{sources: []*models.SourceFavorite{source}}
	scheduler := newTestScheduler(jobRepo, favoriteRepo)

	ctx := context.Background()
	caught, err := scheduler.CatchupMissedRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, caught)

	jobs, err := jobRepo.GetByTargetID(ctx, sourceID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.SourceTypeFavorite, jobs[0].TargetType)
}
