package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferKeepsNewest(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish(RowInserted, map[string]int{"n": i})
	}

	evs := h.Since(0, nil)
	require.Len(t, evs, 3)
	assert.Equal(t, int64(3), evs[0].ID)
	assert.Equal(t, int64(5), evs[2].ID)

	var data map[string]int
	require.NoError(t, json.Unmarshal(evs[2].Data, &data))
	assert.Equal(t, 4, data["n"])

	assert.Len(t, h.Since(4, nil), 1)
}

func TestSinceBeforeRingFills(t *testing.T) {
	h := NewHub(8)
	assert.Empty(t, h.Since(0, nil))

	h.Publish(RowInserted, nil)
	h.Publish(RowDestroyed, nil)
	evs := h.Since(0, nil)
	require.Len(t, evs, 2)
	assert.Equal(t, RowInserted, evs[0].Type)
}

func TestSubscribeReceivesAndCancels(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe(nil)
	assert.Equal(t, 1, h.Subscribers())

	h.Publish(RowDestroyed, nil)
	ev := <-ch
	assert.Equal(t, RowDestroyed, ev.Type)
	assert.Equal(t, "{}", string(ev.Data))

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())
	cancel()
}

func TestSubscribeFiltersTypes(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe(ParseFilter("row.*, command.blocked"))
	defer cancel()

	h.Publish(SegmentCreated, nil)
	h.Publish(RowInserted, nil)
	h.Publish(CellsLinked, nil)
	h.Publish(CommandBlocked, nil)

	assert.Equal(t, RowInserted, (<-ch).Type)
	assert.Equal(t, CommandBlocked, (<-ch).Type)
	assert.Empty(t, ch)

	replay := h.Since(0, Filter{CellsLinked})
	require.Len(t, replay, 1)
	assert.Equal(t, int64(3), replay[0].ID)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(10)
	_, cancel := h.Subscribe(nil)
	defer cancel()

	for i := 0; i < 130; i++ {
		h.Publish(RowUpdated, nil)
	}
	assert.Equal(t, int64(2), h.Dropped())
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		filter Filter
		typ    string
		want   bool
	}{
		{nil, RowInserted, true},
		{Filter{"row.*"}, RowDestroyed, true},
		{Filter{"row.*"}, "rows.inserted", false},
		{Filter{"cells.linked"}, CellsAdded, false},
		{ParseFilter(" , cells.added,"), CellsAdded, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.filter.Match(tt.typ), "%v %s", tt.filter, tt.typ)
	}
}

func TestTypes(t *testing.T) {
	h := NewHub(0)
	h.Publish(SegmentCreated, nil)
	h.Publish(CellsLinked, nil)
	assert.Equal(t, []string{SegmentCreated, CellsLinked}, h.Types())
}
