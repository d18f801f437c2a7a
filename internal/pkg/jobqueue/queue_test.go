package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greatplr/membersync/internal/pkg/cache"
)

type nopProcessor struct{}

func (nopProcessor) ProcessWebhookEvent(context.Context, *Job) error     { return nil }
func (nopProcessor) HandlePermanentFailure(context.Context, *Job, error) {}

type failingProcessor struct{}

func (failingProcessor) ProcessWebhookEvent(context.Context, *Job) error {
	return errors.New("downstream unavailable")
}
func (failingProcessor) HandlePermanentFailure(context.Context, *Job, error) {}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(client)
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client
}

func TestNewQueue_Defaults(t *testing.T) {
	// No live backend needed; the constructor only stores the client.
	cache.SetClient(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))

	q := NewQueue(nopProcessor{}, 0, -1, 0)
	assert.Equal(t, 3, q.workers)
	assert.Equal(t, DefaultMaxRetries, q.maxRetries)
	assert.Equal(t, time.Minute, q.retryDelay)
	assert.False(t, q.running)
}

func TestNewQueue_ExplicitValues(t *testing.T) {
	cache.SetClient(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))

	q := NewQueue(nopProcessor{}, 5, 10, 30*time.Second)
	assert.Equal(t, 5, q.workers)
	assert.Equal(t, 10, q.maxRetries)
	assert.Equal(t, 30*time.Second, q.retryDelay)
}

func TestQueueKeys(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_retry", JobRetryKey)
	assert.Equal(t, "job_failed", JobFailedKey)
}

func TestProcessJob_FailureParksRetryInRedis(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	q := NewQueue(failingProcessor{}, 1, 2, time.Minute)
	job, err := q.EnqueueWebhookEvent(WebhookEventJobPayload{InstallationID: 1, EventName: "accessAfterInsert"})
	require.NoError(t, err)

	// Simulate a worker picking the job up and failing it.
	_, err = client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	require.NoError(t, err)
	q.processJob(ctx, job)

	// The retry lives in Redis, not in an in-process timer: the job id must
	// sit on the retry set scored by its due time, off every list.
	score, err := client.ZScore(ctx, JobRetryKey, job.ID).Result()
	require.NoError(t, err)
	assert.InDelta(t, float64(time.Now().Add(time.Minute).Unix()), score, 5)

	pending, _ := client.LLen(ctx, JobQueueKey).Result()
	assert.Zero(t, pending)
	processing, _ := client.LLen(ctx, JobProcessingKey).Result()
	assert.Zero(t, processing)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
}

func TestPromoteDueRetries_RecoversJobAfterRestart(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	// A job scheduled for retry by a previous process: record says retrying,
	// the id sits on the retry set with a past-due score, no timer exists.
	job := &Job{
		ID:         "restart-survivor",
		Type:       JobTypeWebhookEvent,
		Status:     JobStatusRetrying,
		RetryCount: 1,
		MaxRetries: 3,
		CreatedAt:  time.Now().Add(-2 * time.Minute),
		UpdatedAt:  time.Now().Add(-2 * time.Minute),
	}
	data, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err())
	require.NoError(t, client.ZAdd(ctx, JobRetryKey, redis.Z{
		Score:  float64(time.Now().Add(-time.Minute).Unix()),
		Member: job.ID,
	}).Err())

	// A freshly constructed queue must find and re-enqueue it.
	q := NewQueue(nopProcessor{}, 1, 3, time.Minute)
	require.NoError(t, q.promoteDueRetries(ctx, time.Now()))

	ids, err := client.LRange(ctx, JobQueueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, ids)

	remaining, err := client.ZCard(ctx, JobRetryKey).Result()
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestPromoteDueRetries_LeavesFutureRetriesParked(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.ZAdd(ctx, JobRetryKey, redis.Z{
		Score:  float64(time.Now().Add(time.Minute).Unix()),
		Member: "not-due-yet",
	}).Err())

	q := NewQueue(nopProcessor{}, 1, 3, time.Minute)
	require.NoError(t, q.promoteDueRetries(ctx, time.Now()))

	pending, _ := client.LLen(ctx, JobQueueKey).Result()
	assert.Zero(t, pending)
	size, err := q.GetRetrySize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}
