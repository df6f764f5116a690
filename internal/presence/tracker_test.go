package presence

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestTracker_MarkOnline_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker()

	// When the same user joins three times
	req.True(tracker.MarkOnline("alice"))
	req.False(tracker.MarkOnline("alice"))
	req.False(tracker.MarkOnline("alice"))

	// Then the snapshot holds a single entry
	req.Equal([]domain.UserID{"alice"}, tracker.Snapshot())
}

func TestTracker_MarkOffline_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker()
	tracker.MarkOnline("alice")
	tracker.MarkOnline("bob")

	// When alice leaves twice
	req.True(tracker.MarkOffline("alice"))
	req.False(tracker.MarkOffline("alice"))

	// Then only bob is online
	req.Equal([]domain.UserID{"bob"}, tracker.Snapshot())
	req.NotContains(tracker.Snapshot(), domain.UserID("alice"))
}

func TestTracker_MarkOffline_Unknown_User(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker()

	req.False(tracker.MarkOffline("ghost"))
	req.Zero(tracker.Len())
}

func TestTracker_Empty_Snapshot_Encodes_As_Array(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker()

	bytes, err := json.Marshal(tracker.Snapshot())

	req.NoError(err)
	req.JSONEq(`[]`, string(bytes))
}

func TestTracker_Snapshot_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker()
	tracker.MarkOnline("alice")

	snapshot := tracker.Snapshot()
	snapshot[0] = "mallory"

	req.Equal([]domain.UserID{"alice"}, tracker.Snapshot())
}

func TestTracker_Concurrent_Marks(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.UserID(fmt.Sprintf("user-%d", i%10))
			tracker.MarkOnline(id)
			_ = tracker.Snapshot()
		}(i)
	}
	wg.Wait()

	req.Equal(10, tracker.Len())
}
