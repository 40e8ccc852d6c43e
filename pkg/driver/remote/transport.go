package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/qscript-dev/qscript-runner/pkg/core"
)

// DefaultRPCWait bounds how long we wait for a worker response.
const DefaultRPCWait = 60 * time.Second

const keyPrefix = "qscript:"

// task is the JSON payload pushed to the worker queue.
type task struct {
	TaskID    string                 `json:"task_id"`
	ContextID string                 `json:"context_id,omitempty"`
	Action    string                 `json:"action"`
	Args      map[string]interface{} `json:"args,omitempty"`
	ResultKey string                 `json:"result_key"`
}

// response is the JSON payload popped from the result key.
type response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// transport speaks the browser-worker RPC protocol: RPUSH a task onto the
// worker queue, BLPOP its dedicated result key.
type transport struct {
	rdb   *redis.Client
	queue string
	wait  time.Duration
}

func newTransport(rdb *redis.Client, queue string, wait time.Duration) *transport {
	if wait <= 0 {
		wait = DefaultRPCWait
	}
	return &transport{rdb: rdb, queue: keyPrefix + queue + ":tasks", wait: wait}
}

// send performs one RPC round trip. Redis hiccups are retried with
// exponential backoff; worker-reported failures are returned as driver
// errors.
func (t *transport) send(ctx context.Context, contextID, action string, args map[string]interface{}) (*response, error) {
	taskID := uuid.NewString()
	resultKey := fmt.Sprintf("%sresult:%s", keyPrefix, taskID)

	payload, err := json.Marshal(task{
		TaskID:    taskID,
		ContextID: contextID,
		Action:    action,
		Args:      args,
		ResultKey: resultKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}

	push := func() error {
		return t.rdb.RPush(ctx, t.queue, payload).Err()
	}
	if err := backoff.Retry(push, t.policy(ctx)); err != nil {
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.wait)
	defer cancel()

	var raw []string
	pop := func() error {
		var popErr error
		raw, popErr = t.rdb.BLPop(waitCtx, t.wait, resultKey).Result()
		if errors.Is(popErr, redis.Nil) || errors.Is(popErr, context.DeadlineExceeded) {
			return backoff.Permanent(popErr)
		}
		return popErr
	}
	if err := backoff.Retry(pop, t.policy(waitCtx)); err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return nil, core.ErrDriverUnavailable.WithMessagef("timeout waiting for worker response to %s", action)
		}
		return nil, core.ErrDriverUnavailable.WithCause(err)
	}
	if len(raw) < 2 {
		return nil, core.ErrDriverUnavailable.WithMessage("malformed worker response")
	}

	var resp response
	if err := json.Unmarshal([]byte(raw[1]), &resp); err != nil {
		return nil, core.ErrDriverUnavailable.WithMessagef("unparseable worker response: %v", err)
	}
	if resp.Status != "ok" {
		return nil, core.NewExecError(core.ErrKindDriver, "worker_error", resp.Error)
	}
	return &resp, nil
}

func (t *transport) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx)
}

// decode unmarshals the response data into out.
func (r *response) decode(out interface{}) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("worker response carried no data")
	}
	return json.Unmarshal(r.Data, out)
}
