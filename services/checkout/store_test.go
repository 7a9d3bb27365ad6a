package checkout

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateGet(t *testing.T) {
	store := NewSessionStore(10, 5*time.Minute)

	assert.Nil(t, store.Get(uuid.NewString()))

	sess := store.Create(true)
	require.NotNil(t, sess)
	_, err := uuid.Parse(sess.ID)
	assert.NoError(t, err)

	got := store.Get(sess.ID)
	assert.Same(t, sess, got)

	stats := store.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestSessionStore_SlidingTTL(t *testing.T) {
	store := NewSessionStore(10, time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess := store.Create(false)

	now = now.Add(50 * time.Second)
	require.NotNil(t, store.Get(sess.ID), "access within ttl")

	now = now.Add(50 * time.Second)
	require.NotNil(t, store.Get(sess.ID), "ttl restarts on access")

	now = now.Add(2 * time.Minute)
	assert.Nil(t, store.Get(sess.ID))
	assert.Equal(t, 0, store.Len())
}

func TestSessionStore_LRUEviction(t *testing.T) {
	store := NewSessionStore(2, time.Hour)

	a := store.Create(true)
	b := store.Create(true)
	require.NotNil(t, store.Get(a.ID)) // b is now least recently used

	c := store.Create(true)

	assert.NotNil(t, store.Get(a.ID))
	assert.Nil(t, store.Get(b.ID))
	assert.NotNil(t, store.Get(c.ID))
	assert.Equal(t, uint64(1), store.Stats().Evictions)
}

func TestSessionStore_DeleteAndCleanup(t *testing.T) {
	store := NewSessionStore(10, time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	a := store.Create(true)
	store.Create(true)
	store.Delete(a.ID)
	assert.Equal(t, 1, store.Len())

	now = now.Add(2 * time.Minute)
	store.Create(true)
	assert.Equal(t, 1, store.CleanupExpired())
	assert.Equal(t, 1, store.Len())
}

func TestSessionStore_CleanupWorker(t *testing.T) {
	store := NewSessionStore(10, time.Millisecond)
	store.Create(true)

	stop := make(chan struct{})
	done := make(chan struct{})
	var once sync.Once
	go func() {
		store.StartCleanupWorker(5*time.Millisecond, stop, func(removed, remaining int) {
			if remaining == 0 {
				once.Do(func() { close(done) })
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup worker did not remove the expired session")
	}
	close(stop)
}

func TestSessionCart(t *testing.T) {
	store := NewSessionStore(10, time.Hour)
	sess := store.Create(true)

	require.NoError(t, sess.SetItem(CartItem{ProductID: "p1", Name: "Martillo", Quantity: 2, UnitPrice: 12.5}))
	require.NoError(t, sess.SetItem(CartItem{ProductID: "p2", Name: "Clavos", Quantity: 1, UnitPrice: 3}))
	require.NoError(t, sess.SetItem(CartItem{ProductID: "p1", Name: "Martillo", Quantity: 3, UnitPrice: 12.5}))
	assert.Len(t, sess.Items(), 2)
	assert.InDelta(t, 40.5, sess.Subtotal(), 1e-9)

	require.NoError(t, sess.SetItem(CartItem{ProductID: "p2", Quantity: 0}))
	assert.Len(t, sess.Items(), 1)

	assert.Error(t, sess.SetItem(CartItem{ProductID: " "}))
	assert.Error(t, sess.SetItem(CartItem{ProductID: "p3", Quantity: -1}))

	sess.Wizard.SetContact(validContact())
	sess.ClearCart()
	assert.Empty(t, sess.Items())
	assert.Empty(t, sess.Wizard.Snapshot().Contact.Name, "clearing the cart discards the wizard")
}
