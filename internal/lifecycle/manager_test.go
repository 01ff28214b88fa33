package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	name        string
	startErr    error
	startOrder  *[]string
	stopOrder   *[]string
	started     bool
}

func (f *fakeComponent) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	if f.startOrder != nil {
		*f.startOrder = append(*f.startOrder, f.name)
	}
	return nil
}

func (f *fakeComponent) Stop(ctx context.Context) error {
	f.started = false
	if f.stopOrder != nil {
		*f.stopOrder = append(*f.stopOrder, f.name)
	}
	return nil
}

func (f *fakeComponent) Name() string { return f.name }

func TestManager_StartsInDependencyOrder(t *testing.T) {
	var order []string
	store := &fakeComponent{name: "incident-store", startOrder: &order}
	obs := &fakeComponent{name: "observability-client", startOrder: &order}
	scheduler := &fakeComponent{name: "tick-scheduler", startOrder: &order}

	m := NewManager()
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Register(obs))
	require.NoError(t, m.Register(scheduler, store, obs))

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []string{"incident-store", "observability-client", "tick-scheduler"}, order)
}

func TestManager_StopsInReverseOrder(t *testing.T) {
	var stopOrder []string
	store := &fakeComponent{name: "incident-store", stopOrder: &stopOrder}
	scheduler := &fakeComponent{name: "tick-scheduler", stopOrder: &stopOrder}

	m := NewManager()
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Register(scheduler, store))
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"tick-scheduler", "incident-store"}, stopOrder)
}

func TestManager_RejectsCircularDependency(t *testing.T) {
	a := &fakeComponent{name: "a"}
	b := &fakeComponent{name: "b"}

	m := NewManager()
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b, a))

	err := m.Register(a, b)
	assert.Error(t, err)
}

func TestManager_RollsBackOnStartFailure(t *testing.T) {
	var startOrder, stopOrder []string
	store := &fakeComponent{name: "incident-store", startOrder: &startOrder, stopOrder: &stopOrder}
	scheduler := &fakeComponent{
		name:       "tick-scheduler",
		startErr:   errors.New("observability backend unreachable"),
		startOrder: &startOrder,
	}

	m := NewManager()
	require.NoError(t, m.Register(store))
	require.NoError(t, m.Register(scheduler, store))

	err := m.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, store.started, "dependency should be rolled back when a dependent fails to start")
}

func TestManager_RejectsDuplicateRegistration(t *testing.T) {
	store := &fakeComponent{name: "incident-store"}
	m := NewManager()
	require.NoError(t, m.Register(store))
	assert.Error(t, m.Register(store))
}
