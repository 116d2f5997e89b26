// Package queue carries render job ids from the API to the workers over Redis lists.
//
// A dequeued job moves atomically to a processing list and stays there until the
// worker acks it, so jobs held by a crashed worker can be put back with Recover.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	QueueRender      = "queue:render"
	QueueRenderInUse = "queue:render:processing"
)

type Queue struct {
	client *redis.Client
}

// Job is the queue payload. The render request itself lives in render_jobs.
type Job struct {
	ID         uuid.UUID `json:"id"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	raw string
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueRender pushes a job id. Jobs are served oldest first.
func (q *Queue) EnqueueRender(ctx context.Context, jobID uuid.UUID) error {
	data, err := json.Marshal(Job{ID: jobID, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.LPush(ctx, QueueRender, data).Err()
}

// DequeueRender blocks up to timeout and returns nil, nil when no job arrived.
// The job must be passed to Ack once it has been handled.
func (q *Queue) DequeueRender(ctx context.Context, timeout time.Duration) (*Job, error) {
	raw, err := q.client.BRPopLPush(ctx, QueueRender, QueueRenderInUse, timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}
	job, err := decodeJob(raw)
	if err != nil {
		// Unreadable payloads would be recovered forever.
		q.client.LRem(ctx, QueueRenderInUse, 1, raw)
		return nil, err
	}
	return job, nil
}

// Ack removes a handled job from the processing list.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	if err := q.client.LRem(ctx, QueueRenderInUse, 1, job.raw).Err(); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", job.ID, err)
	}
	return nil
}

// Recover moves every unacked job back onto the render queue and returns how many
// moved. Call it before workers start; jobs held by live workers would be moved too.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.RPopLPush(ctx, QueueRenderInUse, QueueRender).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to recover jobs: %w", err)
		}
		n++
	}
}

// Lengths reports the waiting and in-flight job counts.
func (q *Queue) Lengths(ctx context.Context) (waiting, inFlight int64, err error) {
	pipe := q.client.Pipeline()
	w := pipe.LLen(ctx, QueueRender)
	p := pipe.LLen(ctx, QueueRenderInUse)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to read queue lengths: %w", err)
	}
	return w.Val(), p.Val(), nil
}

func decodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.ID == uuid.Nil {
		return nil, fmt.Errorf("job without id")
	}
	job.raw = raw
	return &job, nil
}
