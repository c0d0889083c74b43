package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gridlink/internal/bus"
	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/grid"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/storage"
)

func TestMain(m *testing.M) {
	log.SetupWith("error", "text", &bytes.Buffer{})
	os.Exit(m.Run())
}

func openJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil)
}

func TestRecordAndList(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cmds := []struct {
		cmd     command.Command
		outcome command.Outcome
	}{
		{command.Command{Kind: command.KindRow, Name: command.Destroy, TargetID: "r1", Timestamp: at}, command.Blocked},
		{command.Command{Kind: command.KindCell, Name: command.Edit, TargetID: "c1", Origin: "audit",
			Payload: command.EditPayload{Value: "x"}, Timestamp: at}, command.Delivered},
		{command.Command{Kind: command.KindRow, Name: command.Update, TargetID: "r1", Timestamp: at}, command.Rejected},
	}
	for _, c := range cmds {
		require.NoError(t, j.Record(ctx, c.cmd, c.outcome))
	}

	all, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].Seq)
	assert.Equal(t, command.Blocked, all[0].Outcome)
	assert.True(t, at.Equal(all[0].DispatchedAt))
	assert.Nil(t, all[0].Payload)

	assert.Equal(t, "audit", all[1].Origin)
	var edit command.EditPayload
	require.NoError(t, json.Unmarshal(all[1].Payload, &edit))
	assert.Equal(t, "x", edit.Value)

	byTarget, err := j.List(ctx, Filter{Target: "r1"})
	require.NoError(t, err)
	assert.Len(t, byTarget, 2)

	byOutcome, err := j.List(ctx, Filter{Kind: command.KindRow, Outcome: command.Rejected})
	require.NoError(t, err)
	require.Len(t, byOutcome, 1)
	assert.Equal(t, command.Update, byOutcome[0].Name)

	after, err := j.List(ctx, Filter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(2), after[0].Seq)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUnmarshalablePayloadStillJournaled(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	cmd := command.Command{Kind: command.KindCell, Name: command.Click, TargetID: "c1", Payload: func() {}}
	require.NoError(t, j.Record(ctx, cmd, command.Unhandled))

	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Payload)
	assert.False(t, entries[0].DispatchedAt.IsZero())
}

func TestPrune(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, command.Command{Kind: command.KindRow, Name: command.Select, TargetID: "r"}, command.Unhandled))
	}

	removed, err := j.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	entries, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(4), entries[0].Seq)

	_, err = j.Prune(ctx, -1)
	assert.Error(t, err)
}

func TestObserveRecordsGridDispatches(t *testing.T) {
	j := openJournal(t)
	g, err := grid.New[string](grid.Options{Observers: []bus.Observer{j.Observe}})
	require.NoError(t, err)

	row, err := g.Insert(g.TableSegment(), "hello", command.Bottom)
	require.NoError(t, err)
	require.NoError(t, g.DestroyRow(row))
	require.Error(t, g.DestroyRow(row))

	entries, err := j.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, command.Insert, entries[0].Name)
	assert.Equal(t, command.Unhandled, entries[0].Outcome)
	assert.Contains(t, string(entries[0].Payload), `"hello"`)
	assert.Equal(t, command.Destroy, entries[1].Name)
	assert.Equal(t, row, entries[1].Target)
	assert.Equal(t, command.Rejected, entries[2].Outcome)
	assert.Zero(t, j.Failures())
}

func TestObserveCountsFailures(t *testing.T) {
	j := openJournal(t)
	require.NoError(t, j.db.Close())

	j.Observe(command.Command{Kind: command.KindRow, Name: command.Select, TargetID: "r"}, command.Unhandled)
	assert.Equal(t, 1, j.Failures())
}
