package data

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regform/internal/form"
	"regform/internal/jsonlog"
)

func testLogger() *jsonlog.Logger {
	return jsonlog.New(&bytes.Buffer{}, jsonlog.LevelError, "production")
}

func TestSessionStore_CreateGetDelete(t *testing.T) {
	store := NewSessionStore(time.Minute, testLogger())

	session := store.Create()
	require.NotEmpty(t, session.ID)
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)

	assert.True(t, store.Delete(session.ID))
	assert.False(t, store.Delete(session.ID))

	_, err = store.Get(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_CreateWithValues(t *testing.T) {
	store := NewSessionStore(time.Minute, testLogger())

	session := store.Create(form.WithValues(form.FormValues{Email: "a@b.com"}))

	session.Do(func(fv *form.FormValidator) {
		assert.Equal(t, "a@b.com", fv.Values().Email)
	})
}

func TestSessionStore_Expiry(t *testing.T) {
	clock := &manualClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewSessionStore(time.Minute, testLogger())
	store.now = clock.Now

	idle := store.Create()
	active := store.Create()

	clock.Advance(50 * time.Second)
	_, err := store.Get(active.ID)
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	_, err = store.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound, "idle session expired on lookup")
	assert.Equal(t, 1, store.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestSessionStore_NoExpiry(t *testing.T) {
	clock := &manualClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewSessionStore(0, testLogger())
	store.now = clock.Now

	session := store.Create()
	clock.Advance(24 * time.Hour)

	_, err := store.Get(session.ID)
	assert.NoError(t, err)
	assert.Zero(t, store.Sweep())
}

func TestSessionStore_CleanupShutdown(t *testing.T) {
	store := NewSessionStore(time.Millisecond, testLogger())
	store.Create()
	store.StartCleanup(5 * time.Millisecond)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	store.Shutdown()
	store.Shutdown()
	store.WaitForShutdown()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSessionStore_CleanupDisabled(t *testing.T) {
	store := NewSessionStore(0, testLogger())
	store.StartCleanup(time.Second)

	store.Shutdown()
	store.WaitForShutdown()
}

func TestSessionStore_StartCleanupTwice(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		store := NewSessionStore(0, testLogger())
		require.NotPanics(t, func() {
			store.StartCleanup(time.Second)
			store.StartCleanup(time.Second)
		})
		store.Shutdown()
		store.WaitForShutdown()
	})

	t.Run("running", func(t *testing.T) {
		store := NewSessionStore(time.Millisecond, testLogger())
		store.Create()
		require.NotPanics(t, func() {
			store.StartCleanup(5 * time.Millisecond)
			store.StartCleanup(5 * time.Millisecond)
		})

		assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

		store.Shutdown()
		store.WaitForShutdown()
	})
}

func TestSession_DoSerializesEvents(t *testing.T) {
	store := NewSessionStore(time.Minute, testLogger())
	session := store.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.Do(func(fv *form.FormValidator) {
				fv.HandleInput(form.Email, "a@b.com")
				fv.ValidateForm()
			})
		}()
	}
	wg.Wait()

	session.Do(func(fv *form.FormValidator) {
		assert.True(t, fv.Field(form.Email).IsValid)
	})
}
