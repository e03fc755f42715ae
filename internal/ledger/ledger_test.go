package ledger

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"social-engine/internal/model"
)

func TestIncrementAccumulates(t *testing.T) {
	l := New()

	score, err := l.Increment("points", "admin", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), score)

	score, err = l.Increment("points", "admin", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), score)

	got, err := l.Score("points", "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(15), got)

	top, err := l.TopN("points", 10)
	require.NoError(t, err)
	assert.Equal(t, []model.ScoreEntry{{Member: "admin", Score: 15}}, top)
}

func TestAbsentMemberAndKey(t *testing.T) {
	l := New()

	score, err := l.Score("points", "nobody")
	require.NoError(t, err)
	assert.Zero(t, score)

	_, ok, err := l.Rank("points", "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	top, err := l.TopN("points", 5)
	require.NoError(t, err)
	assert.Empty(t, top)
	assert.Equal(t, 0, l.Len("points"))
}

func TestEmptyKeyOrMember(t *testing.T) {
	l := New()

	_, err := l.Increment("", "a", 1)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = l.Increment("points", "", 1)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = l.Score("", "a")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, _, err = l.Rank("points", "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = l.TopN("", 3)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestTiesKeepInsertionOrder(t *testing.T) {
	l := New()
	_, _ = l.Increment("k", "first", 5)
	_, _ = l.Increment("k", "second", 3)
	_, _ = l.Increment("k", "second", 2)
	_, _ = l.Increment("k", "third", 5)

	top, err := l.TopN("k", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, members(top))

	rank, ok, err := l.Rank("k", "third")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rank)
}

func TestNegativeDeltaMovesDown(t *testing.T) {
	l := New()
	_, _ = l.Increment("k", "a", 10)
	_, _ = l.Increment("k", "b", 5)
	_, _ = l.Increment("k", "a", -8)

	top, err := l.TopN("k", 2)
	require.NoError(t, err)
	assert.Equal(t, []model.ScoreEntry{{Member: "b", Score: 5}, {Member: "a", Score: 2}}, top)
}

func TestKeysAndDelete(t *testing.T) {
	l := New()
	_, _ = l.Increment("steps:2024-01-02", "a", 1)
	_, _ = l.Increment("points", "a", 1)

	assert.Equal(t, []string{"points", "steps:2024-01-02"}, l.Keys())
	assert.True(t, l.DeleteKey("steps:2024-01-02"))
	assert.False(t, l.DeleteKey("steps:2024-01-02"))
	assert.Equal(t, []string{"points"}, l.Keys())
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	l := New()
	const workers, perWorker = 16, 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, _ = l.Increment("points", "shared", 1)
				_, _ = l.Increment("points", fmt.Sprintf("user-%d", w), 2)
			}
		}(w)
	}
	wg.Wait()

	score, err := l.Score("points", "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), score)
	assert.Equal(t, workers+1, l.Len("points"))
}

// TestLedgerMatchesReferenceProperty checks a random sequence of increments
// against a straightforward model: every score is the sum of its deltas and
// the order is score descending with first-insertion tie-break.
func TestLedgerMatchesReferenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := New()
		scores := map[string]int64{}
		firstSeen := map[string]int{}

		numOps := rapid.IntRange(1, 80).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			member := rapid.SampledFrom([]string{"a", "b", "c", "d", "e", "f"}).Draw(t, "member")
			delta := rapid.Int64Range(-20, 20).Draw(t, "delta")

			got, err := l.Increment("k", member, delta)
			if err != nil {
				t.Fatalf("increment: %v", err)
			}
			if _, ok := firstSeen[member]; !ok {
				firstSeen[member] = i
			}
			scores[member] += delta
			if got != scores[member] {
				t.Fatalf("member %s: expected %d, got %d", member, scores[member], got)
			}
		}

		expected := make([]string, 0, len(scores))
		for m := range scores {
			expected = append(expected, m)
		}
		sort.Slice(expected, func(i, j int) bool {
			a, b := expected[i], expected[j]
			if scores[a] != scores[b] {
				return scores[a] > scores[b]
			}
			return firstSeen[a] < firstSeen[b]
		})

		top, err := l.TopN("k", len(expected)+3)
		if err != nil {
			t.Fatalf("top: %v", err)
		}
		if len(top) != len(expected) {
			t.Fatalf("expected %d entries, got %d", len(expected), len(top))
		}
		for i, e := range top {
			if e.Member != expected[i] || e.Score != scores[e.Member] {
				t.Fatalf("position %d: expected %s=%d, got %s=%d", i, expected[i], scores[expected[i]], e.Member, e.Score)
			}
			rank, ok, err := l.Rank("k", e.Member)
			if err != nil || !ok || rank != i {
				t.Fatalf("rank of %s: expected %d, got %d (ok=%v err=%v)", e.Member, i, rank, ok, err)
			}
		}
	})
}

func members(entries []model.ScoreEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Member
	}
	return out
}

// TestIncrementRacingDeleteKey checks that every increment is counted either
// in the set DeleteKey dropped, as it stood when dropped, or in the key's
// new set.
func TestIncrementRacingDeleteKey(t *testing.T) {
	for round := 0; round < 50; round++ {
		l := New()
		const workers, perWorker = 8, 200
		_, err := l.Increment("steps:2024-03-01", "alice", 1)
		require.NoError(t, err)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < perWorker; i++ {
					_, _ = l.Increment("steps:2024-03-01", "alice", 1)
				}
			}()
		}

		var (
			removed *sortedSet
			dropped int64
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if removed = l.remove("steps:2024-03-01"); removed != nil {
				dropped, _ = removed.score("alice")
			}
		}()
		close(start)
		wg.Wait()
		require.NotNil(t, removed)

		remaining, err := l.Score("steps:2024-03-01", "alice")
		require.NoError(t, err)
		require.Equal(t, int64(workers*perWorker+1), dropped+remaining, "round %d", round)
	}
}
