package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citydirectory/directory-backend/pkg/logger"
	"github.com/citydirectory/directory-backend/pkg/metrics"
)

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

type stubLock struct {
	deny       bool
	acquireErr error
	releaseErr error
	released   int
}

func (s *stubLock) Acquire(context.Context) (bool, error) {
	if s.acquireErr != nil {
		return false, s.acquireErr
	}
	return !s.deny, nil
}

func (s *stubLock) Release(context.Context) error {
	s.released++
	return s.releaseErr
}

func newCronService(t *testing.T, lock Lock, reg prometheus.Registerer, jobs ...Job) *Service {
	t.Helper()
	registry := NewRegistry()
	for _, job := range jobs {
		require.NoError(t, registry.Register(job))
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(reg),
	})
	require.NoError(t, err)
	return svc
}

func TestRunCycleRunsEveryJobAndCombinesFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &countingJob{name: "ok"}
	failA := &countingJob{name: "fail-a", err: errors.New("boom a")}
	failB := &countingJob{name: "fail-b", err: errors.New("boom b")}
	lock := &stubLock{}
	svc := newCronService(t, lock, reg, failA, ok, failB)

	err := svc.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail-a: boom a")
	assert.Contains(t, err.Error(), "fail-b: boom b")
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failA.runs)
	assert.Equal(t, 1, failB.runs)
	assert.Equal(t, 1, lock.released)

	failures, err := testutil.GatherAndCount(reg, "directory_job_failure_total")
	require.NoError(t, err)
	assert.Equal(t, 2, failures)
}

func TestRunCycleSkipsWithoutLock(t *testing.T) {
	job := &countingJob{name: "ok"}
	lock := &stubLock{deny: true}
	svc := newCronService(t, lock, nil, job)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.released)
}

func TestRunCycleReportsLockErrors(t *testing.T) {
	job := &countingJob{name: "ok"}
	svc := newCronService(t, &stubLock{acquireErr: errors.New("redis down")}, nil, job)
	assert.Error(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)

	svc = newCronService(t, &stubLock{releaseErr: errors.New("redis down")}, nil, job)
	err := svc.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock release")
	assert.Equal(t, 1, job.runs)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &countingJob{name: "ok"}
	svc := newCronService(t, NewLocalLock(), nil, job)
	svc.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, job.runs, "the first cycle runs before waiting on the ticker")
}
