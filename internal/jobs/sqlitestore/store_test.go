package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/revenue-tracker/internal/jobs"
	"github.com/dvloznov/revenue-tracker/internal/jobs/sqlitestore"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

func openStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newJob(id, session string, created time.Time) *jobs.ConsolidateJob {
	return &jobs.ConsolidateJob{
		JobID:     id,
		SessionID: session,
		Window: source.Window{
			Start: civil.Date{Year: 2018, Month: 8, Day: 1},
			End:   civil.Date{Year: 2018, Month: 8, Day: 31},
		},
		Status:     jobs.JobStatusPending,
		CreatedAt:  created,
		MaxRetries: 3,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	created := time.Date(2018, 9, 1, 10, 0, 0, 0, time.UTC)

	job := newJob("job-1", "default", created)
	require.NoError(t, store.SaveJob(ctx, job))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job, got)

	started := created.Add(time.Second)
	completed := created.Add(3 * time.Second)
	job.Status = jobs.JobStatusCompleted
	job.StartedAt = &started
	job.CompletedAt = &completed
	job.Rows = 27
	job.RetryCount = 1
	require.NoError(t, store.SaveJob(ctx, job))

	got, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestStore_GetMissing(t *testing.T) {
	_, err := openStore(t).GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestStore_SaveRequiresID(t *testing.T) {
	err := openStore(t).SaveJob(context.Background(), &jobs.ConsolidateJob{})
	assert.Error(t, err)
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2018, 9, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveJob(ctx, newJob("a", "s1", base)))
	require.NoError(t, store.SaveJob(ctx, newJob("b", "s1", base.Add(500*time.Millisecond))))
	c := newJob("c", "s2", base.Add(time.Hour))
	c.Status = jobs.JobStatusFailed
	require.NoError(t, store.SaveJob(ctx, c))

	ids := func(list []*jobs.ConsolidateJob) []string {
		var out []string
		for _, j := range list {
			out = append(out, j.JobID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by session", jobs.JobFilter{SessionID: "s1"}, []string{"b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"c"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"c", "b"}},
		{"offset", jobs.JobFilter{Offset: 1}, []string{"b", "a"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	require.NoError(t, store.SaveJob(ctx, newJob("a", "s1", time.Date(2018, 9, 1, 0, 0, 0, 0, time.UTC))))

	require.NoError(t, store.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"))
	got, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	// An empty message keeps the previous one.
	require.NoError(t, store.UpdateJobStatus(ctx, "a", jobs.JobStatusRetrying, ""))
	got, err = store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusRetrying, got.Status)
	assert.Equal(t, "boom", got.Error)

	assert.ErrorIs(t, store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""), jobs.ErrJobNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	store, err := sqlitestore.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveJob(ctx, newJob("a", "s1", time.Date(2018, 9, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, store.Close())

	reopened, err := sqlitestore.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, civil.Date{Year: 2018, Month: 8, Day: 31}, got.Window.End)
}
