package redis

import (
	"testing"
	"time"

	"routeopt/internal/core/domain/model/fleet"
	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusEventStream_Publish(t *testing.T) {
	// Arrange
	_, client := newClient(t)
	sink := NewStatusEventStream(client, "", 0)
	at := time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)
	jobA, jobB := kernel.NewUUID(), kernel.NewUUID()

	// Act
	err := sink.Publish(t.Context(), []ports.JobStatusEvent{
		{JobID: jobA, Status: fleet.Assigned, ChangedAt: at},
		{JobID: jobB, Status: fleet.NotAssigned, ChangedAt: at},
	})

	// Assert
	require.NoError(t, err)
	entries, err := client.XRange(t.Context(), DefaultStatusStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, jobA.String(), entries[0].Values["job_id"])
	assert.Equal(t, "assigned", entries[0].Values["status"])
	assert.Equal(t, "2030-03-04T09:00:00Z", entries[0].Values["changed_at"])
	assert.Equal(t, "not_assigned", entries[1].Values["status"])
}

func TestStatusEventStream_PublishNothing(t *testing.T) {
	mr, client := newClient(t)

	require.NoError(t, NewStatusEventStream(client, "s", 10).Publish(t.Context(), nil))
	assert.False(t, mr.Exists("s"))
}
