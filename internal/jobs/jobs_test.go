package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

const disableMember = `{"id":"job_1","name":"disable_readonly_mode","run_at":"2024-06-01T14:00:00Z"}`

func newTestQueue(t *testing.T) (*Queue, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	q := NewQueue(db, "test:jobs")
	q.newID = func() string { return "job_1" }
	return q, mock
}

func TestQueue_ScheduleReadonlyDisable(t *testing.T) {
	q, mock := newTestQueue(t)

	mock.ExpectZAdd("test:jobs", redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: disableMember,
	}).SetVal(1)

	require.NoError(t, q.ScheduleReadonlyDisable(context.Background(), runAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_ScheduleRedisError(t *testing.T) {
	q, mock := newTestQueue(t)

	mock.ExpectZAdd("test:jobs", redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: disableMember,
	}).SetErr(errors.New("connection refused"))

	_, err := q.Schedule(context.Background(), JobDisableReadonlyMode, nil, runAt)
	assert.Error(t, err)
}

func TestWorker_RunOnce(t *testing.T) {
	q, mock := newTestQueue(t)
	w := NewWorker(q, WorkerConfig{BatchSize: 10})
	now := runAt.Add(time.Second)
	w.now = func() time.Time { return now }

	var ran []string
	w.Register(JobDisableReadonlyMode, func(_ context.Context, job Job) error {
		ran = append(ran, job.ID)
		return nil
	})

	other := `{"id":"job_2","name":"disable_readonly_mode","run_at":"2024-06-01T14:00:00Z"}`
	mock.ExpectZRangeByScore("test:jobs", &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "1717250401000",
		Count: 10,
	}).SetVal([]string{disableMember, other})
	mock.ExpectZRem("test:jobs", disableMember).SetVal(1)
	mock.ExpectZRem("test:jobs", other).SetVal(0)

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []string{"job_1"}, ran, "job claimed by another worker is skipped")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_HandlerFailureIsNotRetried(t *testing.T) {
	q, mock := newTestQueue(t)
	w := NewWorker(q, WorkerConfig{BatchSize: 1})
	w.now = func() time.Time { return runAt }

	calls := 0
	w.Register(JobDisableReadonlyMode, func(context.Context, Job) error {
		calls++
		return errors.New("boom")
	})

	mock.ExpectZRangeByScore("test:jobs", &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "1717250400000",
		Count: 1,
	}).SetVal([]string{disableMember, "not-json"})
	mock.ExpectZRem("test:jobs", disableMember).SetVal(1)
	mock.ExpectZRem("test:jobs", "not-json").SetVal(1)

	processed, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeSettings struct {
	enabled   bool
	expiresAt *time.Time
	disabled  int
}

func (f *fakeSettings) ReadonlyStored(context.Context) (bool, *time.Time, error) {
	return f.enabled, f.expiresAt, nil
}

func (f *fakeSettings) DisableReadonly(context.Context) error {
	f.disabled++
	f.enabled = false
	f.expiresAt = nil
	return nil
}

func TestDisableReadonlyMode(t *testing.T) {
	later := runAt.Add(time.Hour)

	tests := []struct {
		name         string
		enabled      bool
		expiresAt    *time.Time
		wantDisabled bool
	}{
		{"expired", true, &runAt, true},
		{"already disabled", false, &runAt, false},
		{"expiry cleared", true, nil, false},
		{"extended", true, &later, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSettings{enabled: tt.enabled, expiresAt: tt.expiresAt}
			h := DisableReadonlyMode(s, func() time.Time { return runAt })

			require.NoError(t, h(context.Background(), Job{ID: "job_1", Name: JobDisableReadonlyMode}))
			assert.Equal(t, tt.wantDisabled, s.disabled == 1)
		})
	}
}
