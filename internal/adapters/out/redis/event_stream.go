package redis

import (
	"context"
	"fmt"
	"time"

	"routeopt/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultStatusStream = "routeopt:job-status"

var _ ports.StatusEventSink = (*StatusEventStream)(nil)

// StatusEventStream appends job status events to a Redis stream that
// downstream consumers read with consumer groups.
type StatusEventStream struct {
	client goredis.UniversalClient
	stream string
	maxLen int64
}

func NewStatusEventStream(client goredis.UniversalClient, stream string, maxLen int64) *StatusEventStream {
	if stream == "" {
		stream = DefaultStatusStream
	}
	return &StatusEventStream{client: client, stream: stream, maxLen: maxLen}
}

func (s *StatusEventStream) Publish(ctx context.Context, events []ports.JobStatusEvent) error {
	if len(events) == 0 {
		return nil
	}
	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, e := range events {
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: s.stream,
				MaxLen: s.maxLen,
				Approx: s.maxLen > 0,
				Values: map[string]any{
					"job_id":     e.JobID.String(),
					"status":     string(e.Status),
					"changed_at": e.ChangedAt.UTC().Format(time.RFC3339Nano),
				},
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish %d status events: %w", len(events), err)
	}
	return nil
}
