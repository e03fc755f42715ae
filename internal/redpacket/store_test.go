package redpacket

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"social-engine/internal/model"
)

var ctx = context.Background()

func newPacket(id string, allocations []int64, createdAt time.Time) *model.RedPacket {
	var total int64
	for _, a := range allocations {
		total += a
	}
	return &model.RedPacket{
		ID:          id,
		Channel:     "general",
		Sender:      "alice",
		TotalAmount: total,
		ShareCount:  len(allocations),
		Allocations: allocations,
		Message:     "Good luck!",
		Status:      model.StatusActive,
		CreatedAt:   createdAt,
	}
}

func TestClaimSequenceThenExhausted(t *testing.T) {
	s := NewStore(0)
	now := time.Now()
	require.NoError(t, s.Put(newPacket("p1", []int64{500, 300, 200}, now)))

	var total int64
	for i, user := range []string{"a", "b", "c"} {
		res, err := s.Claim(ctx, "p1", user, now)
		require.NoError(t, err)
		assert.Equal(t, i+1, res.ClaimedCount)
		assert.Equal(t, 3, res.ShareCount)
		total += res.Claim.Amount
	}
	assert.Equal(t, int64(1000), total)

	_, err := s.Claim(ctx, "p1", "d", now)
	assert.ErrorIs(t, err, ErrExhausted)

	snap, err := s.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, snap.Status)
	assert.Equal(t, 3, snap.ClaimedCount)
	assert.Equal(t, int64(1000), snap.ClaimedAmount())
}

func TestClaimConsumesAllocationsInOrder(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Put(newPacket("p1", []int64{7, 2, 1}, time.Now())))

	for i, want := range []int64{7, 2, 1} {
		res, err := s.Claim(ctx, "p1", fmt.Sprintf("u%d", i), time.Now())
		require.NoError(t, err)
		assert.Equal(t, want, res.Claim.Amount)
	}
}

func TestClaimTwiceIsRejected(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Put(newPacket("p1", []int64{5, 5}, time.Now())))

	_, err := s.Claim(ctx, "p1", "x", time.Now())
	require.NoError(t, err)

	_, err = s.Claim(ctx, "p1", "x", time.Now())
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	snap, err := s.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ClaimedCount)
	assert.Equal(t, model.StatusActive, snap.Status)
}

func TestClaimUnknownPacket(t *testing.T) {
	s := NewStore(0)
	_, err := s.Claim(ctx, "missing", "x", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredPacketRejectsClaims(t *testing.T) {
	s := NewStore(0)
	created := time.Now().Add(-25 * time.Hour)
	require.NoError(t, s.Put(newPacket("old", []int64{5, 5}, created)))
	require.NoError(t, s.Put(newPacket("fresh", []int64{5, 5}, time.Now())))

	expired := s.ExpireOlderThan(time.Now().Add(-24 * time.Hour))
	assert.Equal(t, []string{"old"}, expired)

	_, err := s.Claim(ctx, "old", "x", time.Now())
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = s.Claim(ctx, "fresh", "x", time.Now())
	assert.NoError(t, err)
}

func TestCompletedPacketIsNotExpired(t *testing.T) {
	s := NewStore(0)
	created := time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Put(newPacket("done", []int64{5}, created)))
	_, err := s.Claim(ctx, "done", "x", time.Now())
	require.NoError(t, err)

	assert.Empty(t, s.ExpireOlderThan(time.Now()))

	snap, err := s.Get("done")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, snap.Status)
}

func TestClaimWithCancelledContextHasNoEffect(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Put(newPacket("p", []int64{5, 5}, time.Now())))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Claim(cancelled, "x", "a", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Claim(cancelled, "p", "a", time.Now())
	assert.ErrorIs(t, err, context.Canceled)

	snap, err := s.Get("p")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.ClaimedCount)
	assert.Empty(t, snap.Claims)

	res, err := s.Claim(ctx, "p", "a", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ClaimedCount)
}

func TestClaimGivesUpOnBusyPacket(t *testing.T) {
	s := NewStore(20 * time.Millisecond)
	require.NoError(t, s.Put(newPacket("p", []int64{5, 5}, time.Now())))

	s.locks.Lock("p")
	_, err := s.Claim(ctx, "p", "a", time.Now())
	s.locks.Unlock("p")
	assert.ErrorIs(t, err, ErrBusy)

	require.Eventually(t, func() bool {
		_, err := s.Claim(ctx, "p", "a", time.Now())
		return err == nil
	}, time.Second, 5*time.Millisecond)

	snap, err := s.Get("p")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ClaimedCount)
}

func TestPutDuplicate(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Put(newPacket("p", []int64{1}, time.Now())))
	assert.ErrorIs(t, s.Put(newPacket("p", []int64{1}, time.Now())), ErrDuplicateID)
	assert.Equal(t, 1, s.Len())
}

func TestGetReturnsIndependentSnapshot(t *testing.T) {
	s := NewStore(0)
	require.NoError(t, s.Put(newPacket("p", []int64{3, 4}, time.Now())))
	_, err := s.Claim(ctx, "p", "a", time.Now())
	require.NoError(t, err)

	snap, err := s.Get("p")
	require.NoError(t, err)
	snap.Claims[0].User = "mutated"
	snap.Allocations[0] = 0

	again, err := s.Get("p")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Claims[0].User)
	assert.Equal(t, int64(3), again.Allocations[0])
}

// TestConcurrentClaimsProperty races many claimants, some repeated, against one
// packet. Successful claims never exceed the share count, no claimant wins
// twice, and the claimed amounts are exactly the allocations handed out in order.
func TestConcurrentClaimsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 30).Draw(t, "count")
		total := rapid.Int64Range(int64(count), 100_000).Draw(t, "total")
		claimants := rapid.IntRange(1, 60).Draw(t, "claimants")
		repeats := rapid.IntRange(1, 3).Draw(t, "repeats")
		seed := rapid.Int64().Draw(t, "seed")

		allocations, err := NewAllocator(AllocatorConfig{}, rand.New(rand.NewSource(seed))).Partition(total, count)
		if err != nil {
			t.Fatalf("partition: %v", err)
		}

		s := NewStore(0)
		if err := s.Put(newPacket("p", allocations, time.Now())); err != nil {
			t.Fatalf("put: %v", err)
		}

		var (
			mu      sync.Mutex
			won     = map[string]int{}
			amounts []int64
			wg      sync.WaitGroup
		)
		start := make(chan struct{})
		for i := 0; i < claimants; i++ {
			for r := 0; r < repeats; r++ {
				wg.Add(1)
				go func(user string) {
					defer wg.Done()
					<-start
					res, err := s.Claim(ctx, "p", user, time.Now())
					if err != nil {
						return
					}
					mu.Lock()
					won[user]++
					amounts = append(amounts, res.Claim.Amount)
					mu.Unlock()
				}(fmt.Sprintf("user-%d", i))
			}
		}
		close(start)
		wg.Wait()

		expectedWins := count
		if claimants < count {
			expectedWins = claimants
		}
		if len(amounts) != expectedWins {
			t.Fatalf("expected %d successful claims, got %d", expectedWins, len(amounts))
		}
		for user, n := range won {
			if n != 1 {
				t.Fatalf("%s claimed %d times", user, n)
			}
		}

		want := append([]int64(nil), allocations[:expectedWins]...)
		got := append([]int64(nil), amounts...)
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		for i := range want {
			if want[i] != got[i] {
				t.Fatalf("claimed amounts %v do not match allocations %v", got, want)
			}
		}

		snap, err := s.Get("p")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if snap.ClaimedCount != len(snap.Claims) || snap.ClaimedCount > snap.ShareCount {
			t.Fatalf("inconsistent snapshot: claimed=%d claims=%d shares=%d", snap.ClaimedCount, len(snap.Claims), snap.ShareCount)
		}
		if (snap.ClaimedCount == snap.ShareCount) != (snap.Status == model.StatusCompleted) {
			t.Fatalf("status %s with %d/%d claimed", snap.Status, snap.ClaimedCount, snap.ShareCount)
		}
	})
}
