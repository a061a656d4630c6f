package game

import (
	"context"
	"testing"
	"time"

	"example.com/tripleclaim/internal/board"
	"github.com/stretchr/testify/require"
)

func TestNewClaimSnapshotsSelection(t *testing.T) {
	c := newClaim(2, []board.Mark{{Slot: 1, Item: 7}, {Slot: 4, Item: 3}, {Slot: 9, Item: 0}})
	require.Equal(t, 2, c.Player)
	require.Equal(t, []int{1, 4, 9}, c.Slots)
	require.Equal(t, []int{7, 3, 0}, c.Items)
	require.False(t, c.Submitted.IsZero())
}

func TestClaimQueueIsFIFO(t *testing.T) {
	q := newClaimQueue(3)
	ctx := context.Background()
	for i := range 3 {
		require.NoError(t, q.put(ctx, Claim{Player: i}))
	}
	require.Equal(t, 3, q.len())

	first, ok := q.poll()
	require.True(t, ok)
	require.Equal(t, 0, first.Player)
	require.Equal(t, 1, (<-q.next()).Player)

	rest := q.drain()
	require.Len(t, rest, 1)
	require.Equal(t, 2, rest[0].Player)

	_, ok = q.poll()
	require.False(t, ok)
}

func TestClaimQueuePutHonoursContext(t *testing.T) {
	q := newClaimQueue(1)
	require.NoError(t, q.put(context.Background(), Claim{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.put(ctx, Claim{Player: 1}), context.DeadlineExceeded)
}

func TestVerdictString(t *testing.T) {
	require.Equal(t, "pending", Pending.String())
	require.Equal(t, "accepted", Accepted.String())
	require.Equal(t, "rejected", Rejected.String())
	require.Equal(t, "stale", Stale.String())
}
