package startup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/startup"
)

type recorder struct {
	events []string
}

func (r *recorder) dependency(name string, requires ...string) *startup.Dependency {
	return &startup.Dependency{
		Name:     name,
		Requires: requires,
		OnStart: func(context.Context) error {
			r.events = append(r.events, "start "+name)
			return nil
		},
		OnStop: func(context.Context) error {
			r.events = append(r.events, "stop "+name)
			return nil
		},
	}
}

func newStartup(maxAttempts int) *startup.Startup {
	return startup.NewStartup(logging.Silent(), maxAttempts).WithBackoffUnit(time.Millisecond)
}

func TestStartup_Order(t *testing.T) {
	rec := &recorder{}
	s := newStartup(1)
	s.AddDependency(rec.dependency("server", "engine"))
	s.AddDependency(rec.dependency("database"))
	s.AddDependency(rec.dependency("engine", "database", "queue"))
	s.AddDependency(rec.dependency("queue"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "start queue", "start engine", "start server"}, rec.events)
	assert.Equal(t, startup.StartupStatusStarted, s.Status("server"))

	rec.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop server", "stop engine", "stop queue", "stop database"}, rec.events)
	assert.Equal(t, startup.StartupStatusStopped, s.Status("database"))
}

func TestStartup_Errors(t *testing.T) {
	t.Run("unknown dependency", func(t *testing.T) {
		s := newStartup(1)
		s.AddDependency(&startup.Dependency{Name: "engine", Requires: []string{"database"}})

		err := s.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown startup dependency 'database'")
	})

	t.Run("cycle", func(t *testing.T) {
		s := newStartup(1)
		s.AddDependency(&startup.Dependency{Name: "a", Requires: []string{"b"}})
		s.AddDependency(&startup.Dependency{Name: "b", Requires: []string{"a"}})

		err := s.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})
}

func TestStartup_Retry(t *testing.T) {
	calls := 0
	s := newStartup(3)
	s.AddDependency(&startup.Dependency{
		Name: "database",
		OnStart: func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	refused := errors.New("connection refused")
	s := newStartup(2)
	s.AddDependency(&startup.Dependency{
		Name:    "database",
		OnStart: func(context.Context) error { return refused },
	})

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, refused)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, startup.StartupStatusFailed, s.Status("database"))
}

func TestStartup_StopKeepsGoing(t *testing.T) {
	rec := &recorder{}
	broken := errors.New("close failed")
	s := newStartup(1)
	s.AddDependency(rec.dependency("database"))
	s.AddDependency(&startup.Dependency{
		Name:   "queue",
		OnStop: func(context.Context) error { return broken },
	})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Stop(context.Background()), broken)
	assert.Equal(t, []string{"start database", "stop database"}, rec.events)
}
