package scope_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/scope"
)

type staticReader struct {
	ids []string
	err error
}

func (s staticReader) ConfigurationIDs(ctx context.Context, kind models.EntityKind, entityIDs ...string) ([]string, error) {
	return s.ids, s.err
}

func TestCollector_Snapshot(t *testing.T) {
	collector := scope.NewCollector(staticReader{ids: []string{"3", "1", "2", "1", "3"}})

	sc, err := collector.Snapshot(context.Background(), models.EntityKindArtist, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, models.EntityKindArtist, sc.Kind)
	assert.Equal(t, []string{"1", "2", "3"}, sc.ConfigurationIDs)
	assert.False(t, sc.Empty())

	empty, err := scope.NewCollector(staticReader{}).Snapshot(context.Background(), models.EntityKindSong, "a")
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	_, err = scope.NewCollector(staticReader{err: errors.New("db down")}).Snapshot(context.Background(), models.EntityKindSong, "a")
	assert.Error(t, err)
}

func TestScheduler_Schedule(t *testing.T) {
	q := &testutil.RecordingQueue{}
	scheduler := scope.NewScheduler(q, 10*time.Second, testutil.Logger())

	err := scheduler.Schedule(context.Background(), scope.Scope{Kind: models.EntityKindAlbum, ConfigurationIDs: []string{"c1", "c2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"recalculate_ranking_configuration:c1:weights",
		"recalculate_ranking_configuration:c1:rankings",
		"recalculate_ranking_configuration:c2:weights",
		"recalculate_ranking_configuration:c2:rankings",
	}, q.Keys())

	jobs := q.Jobs()
	assert.Zero(t, jobs[0].Delay)
	assert.Equal(t, 10*time.Second, jobs[1].Delay)
}

func TestScheduler_ScheduleEmptyScope(t *testing.T) {
	q := &testutil.RecordingQueue{}
	require.NoError(t, scope.NewScheduler(q, 0, testutil.Logger()).Schedule(context.Background(), scope.Scope{}))
	assert.Empty(t, q.Jobs())
}

func TestScheduler_DefaultDelay(t *testing.T) {
	q := &testutil.RecordingQueue{}
	scheduler := scope.NewScheduler(q, 0, testutil.Logger())
	require.NoError(t, scheduler.Schedule(context.Background(), scope.Scope{ConfigurationIDs: []string{"c1"}}))
	assert.Equal(t, scope.DefaultRecalculationDelay, q.Jobs()[1].Delay)
}

func TestScheduler_JoinsFailures(t *testing.T) {
	q := &testutil.RecordingQueue{Err: errors.New("queue down")}
	scheduler := scope.NewScheduler(q, time.Second, testutil.Logger())

	err := scheduler.Schedule(context.Background(), scope.Scope{ConfigurationIDs: []string{"c1", "c2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration c1 weights")
	assert.Contains(t, err.Error(), "configuration c2 rankings")
}

func TestScheduler_ReindexTarget(t *testing.T) {
	q := &testutil.RecordingQueue{}
	scheduler := scope.NewScheduler(q, time.Second, testutil.Logger())

	require.NoError(t, scheduler.ReindexTarget(context.Background(), models.EntityRef{Kind: models.EntityKindSong, ID: "s1"}))
	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, queue.JobReindexEntity, jobs[0].Job.Type)
	assert.Equal(t, map[string]any{"id": "s1", "kind": "song"}, jobs[0].Job.Payload)

	q.Err = errors.New("queue down")
	err := scheduler.ReindexTarget(context.Background(), models.EntityRef{Kind: models.EntityKindSong, ID: "s1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "song:s1")
}
