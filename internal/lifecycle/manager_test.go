package lifecycle

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComponent records start/stop calls into a shared event slice.
type fakeComponent struct {
	name     string
	events   *[]string
	startErr error
}

func (f *fakeComponent) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.events = append(*f.events, "start:"+f.name)
	return nil
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return nil
}

func (f *fakeComponent) Name() string { return f.name }

func TestStartStopOrdering(t *testing.T) {
	var events []string
	pool := &fakeComponent{name: "pool", events: &events}
	server := &fakeComponent{name: "server", events: &events}

	m := NewManager()
	require.NoError(t, m.Register(pool))
	require.NoError(t, m.Register(server, pool))

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{
		"start:pool",
		"start:server",
		"stop:server",
		"stop:pool",
	}, events)
}

func TestStartFailureRollsBack(t *testing.T) {
	var events []string
	pool := &fakeComponent{name: "pool", events: &events}
	server := &fakeComponent{name: "server", events: &events, startErr: fmt.Errorf("port in use")}

	m := NewManager()
	require.NoError(t, m.Register(pool))
	require.NoError(t, m.Register(server, pool))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server")

	// Pool started, then was rolled back after the server failed.
	assert.Equal(t, []string{"start:pool", "stop:pool"}, events)
	assert.False(t, m.IsRunning(pool))
}

func TestRegisterValidation(t *testing.T) {
	var events []string
	a := &fakeComponent{name: "a", events: &events}
	b := &fakeComponent{name: "b", events: &events}

	m := NewManager()
	require.NoError(t, m.Register(a))

	assert.Error(t, m.Register(nil), "nil component")
	assert.Error(t, m.Register(a), "duplicate registration")
	assert.Error(t, m.Register(b, &fakeComponent{name: "ghost", events: &events}), "unknown dependency")
}

func TestRegisterRejectsUnnamed(t *testing.T) {
	var events []string
	m := NewManager()
	err := m.Register(&fakeComponent{name: "", events: &events})
	assert.Error(t, err)
}
