package draft

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cv-builder/internal/form"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAutoSaverCoalescesBursts(t *testing.T) {
	var saves atomic.Int32
	a := NewAutoSaver(func() { saves.Add(1) }, 40*time.Millisecond, 20*time.Millisecond)
	defer a.Stop()

	for i := 0; i < 10; i++ {
		a.Input()
		time.Sleep(5 * time.Millisecond)
	}
	a.Change()

	require.Eventually(t, func() bool { return saves.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), saves.Load())
	assert.False(t, a.Pending())
}

func TestAutoSaverFlushSavesImmediately(t *testing.T) {
	var saves atomic.Int32
	a := NewAutoSaver(func() { saves.Add(1) }, time.Hour, time.Hour)
	defer a.Stop()

	a.Input()
	assert.True(t, a.Pending())
	a.Flush()
	assert.Equal(t, int32(1), saves.Load())
	assert.False(t, a.Pending())
}

func TestAutoSaverStopDropsPendingSave(t *testing.T) {
	var saves atomic.Int32
	a := NewAutoSaver(func() { saves.Add(1) }, 10*time.Millisecond, 10*time.Millisecond)

	a.Change()
	a.Stop()
	a.Input()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), saves.Load())
}

func TestForModelSavesForCurrentUser(t *testing.T) {
	ctx := context.Background()
	d := New(NewMemoryStore(), nil)
	m := form.New()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Dana"))

	user := "u1"
	a := d.ForModel(m, func() string { return user }, 10*time.Millisecond, 10*time.Millisecond)
	defer a.Stop()
	a.Change()

	require.Eventually(t, func() bool {
		rec, ok := d.Restore(ctx, "u1")
		return ok && rec.FullName == "Dana"
	}, time.Second, 5*time.Millisecond)
}

func TestAutoSaverSettle(t *testing.T) {
	var saves atomic.Int32
	a := NewAutoSaver(func() { saves.Add(1) }, time.Hour, time.Hour)
	defer a.Stop()

	// nothing pending: no save, fn still runs
	ran := false
	a.Settle(true, func() { ran = true })
	assert.True(t, ran)
	assert.Equal(t, int32(0), saves.Load())

	a.Input()
	a.Settle(true, func() { assert.Equal(t, int32(1), saves.Load()) })
	assert.False(t, a.Pending())

	a.Change()
	a.Settle(false, func() {})
	assert.Equal(t, int32(1), saves.Load())
	assert.False(t, a.Pending())
}

func TestAutoSaverSettleSavesForPreviousUser(t *testing.T) {
	ctx := context.Background()
	d := New(NewMemoryStore(), nil)
	m := form.New()
	require.NoError(t, m.SetPersonal(form.PersonalFullName, "Alice"))

	user := "u1"
	a := d.ForModel(m, func() string { return user }, time.Hour, time.Hour)
	defer a.Stop()
	a.Input()

	a.Settle(true, func() {
		user = "u2"
		m.Replay(form.New().Collect())
	})

	rec, ok := d.Restore(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "Alice", rec.FullName)
	_, ok = d.Restore(ctx, "u2")
	assert.False(t, ok)
}
