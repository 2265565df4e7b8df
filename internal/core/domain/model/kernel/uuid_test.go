package kernel_test

import (
	"encoding/json"
	"slices"
	"testing"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUUID(t *testing.T) {
	t.Run("should create unique valid UUIDs", func(t *testing.T) {
		id1 := kernel.NewUUID()
		id2 := kernel.NewUUID()

		require.NoError(t, id1.Validate())
		assert.False(t, id1.IsEqual(id2))
	})
}

func TestUUIDFromString(t *testing.T) {
	t.Run("should parse canonical form", func(t *testing.T) {
		id, err := kernel.UUIDFromString("550e8400-e29b-41d4-a716-446655440000")

		require.NoError(t, err)
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())
	})

	t.Run("should reject malformed input", func(t *testing.T) {
		_, err := kernel.UUIDFromString("not-a-uuid")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid UUID format")
	})

	t.Run("should reject nil UUID", func(t *testing.T) {
		_, err := kernel.UUIDFromString(uuid.Nil.String())

		require.ErrorIs(t, err, errs.ErrValueIsRequired)
	})
}

func TestUUIDFromBytes(t *testing.T) {
	raw := uuid.New()

	id, err := kernel.UUIDFromBytes(raw[:])
	require.NoError(t, err)
	assert.Equal(t, raw, id.Bytes())

	_, err = kernel.UUIDFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestUUIDsFromStrings(t *testing.T) {
	ids, err := kernel.UUIDsFromStrings([]string{
		"550e8400-e29b-41d4-a716-446655440000",
		"650e8400-e29b-41d4-a716-446655440000",
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	_, err = kernel.UUIDsFromStrings([]string{"550e8400-e29b-41d4-a716-446655440000", "bad"})
	require.Error(t, err)
}

func TestUUID_Less(t *testing.T) {
	a, _ := kernel.UUIDFromString("00000000-0000-0000-0000-000000000001")
	b, _ := kernel.UUIDFromString("00000000-0000-0000-0000-000000000002")

	ids := []kernel.UUID{b, a}
	slices.SortFunc(ids, func(x, y kernel.UUID) int {
		if x.Less(y) {
			return -1
		}
		return 1
	})

	assert.True(t, ids[0].IsEqual(a))
	assert.False(t, b.Less(a))
}

func TestUUID_Validate(t *testing.T) {
	var id kernel.UUID

	require.ErrorIs(t, id.Validate(), kernel.ErrUUIDIsNotConstructed)
}

func TestUUID_JSON(t *testing.T) {
	type payload struct {
		ID kernel.UUID `json:"id"`
	}
	in := payload{ID: kernel.NewUUID()}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+in.ID.String()+`"}`, string(raw))

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, in.ID.IsEqual(out.ID))

	require.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &out))
}
