package issuer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/violet-hub/keygate/database/models"
	"github.com/violet-hub/keygate/database/repo/bindings"
	"github.com/violet-hub/keygate/internal/keygen"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testWindow = 24 * time.Hour

func setupRepo(t *testing.T) *bindings.Repository {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.KeyBinding{}))
	return bindings.NewRepository(db)
}

// scriptedGen returns a fixed sequence of keys.
type scriptedGen struct {
	mu   sync.Mutex
	keys []string
	next int
}

func (g *scriptedGen) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := g.keys[g.next%len(g.keys)]
	g.next++
	return key, nil
}

func strptr(s string) *string {
	return &s
}

func TestIssueOrGet_EmptyIdentity(t *testing.T) {
	svc := NewService(setupRepo(t), keygen.New("", 0), testWindow)

	_, err := svc.IssueOrGet(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
}

// TestIssueOrGet_NewIdentity checks a fresh record is created with a
// generated key and no hardware binding.
func TestIssueOrGet_NewIdentity(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, keygen.New("Violet-Hub-", 32), testWindow)

	key, err := svc.IssueOrGet(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "Violet-Hub-"))

	binding, err := repo.GetByIdentity(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, binding)
	assert.Equal(t, key, binding.Key)
	assert.False(t, binding.Bound())
	assert.False(t, binding.Notified)
}

// TestIssueOrGet_Idempotent checks repeated calls inside one window return
// the same key and never create duplicates.
func TestIssueOrGet_Idempotent(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, keygen.New("", 0), testWindow)
	ctx := context.Background()

	first, err := svc.IssueOrGet(ctx, "user-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := svc.IssueOrGet(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestIssueOrGet_DistinctIdentities checks two identities never share a key.
func TestIssueOrGet_DistinctIdentities(t *testing.T) {
	svc := NewService(setupRepo(t), keygen.New("", 0), testWindow)
	ctx := context.Background()

	key1, err := svc.IssueOrGet(ctx, "user-1")
	require.NoError(t, err)
	key2, err := svc.IssueOrGet(ctx, "user-2")
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

// TestIssueOrGet_CollisionRetry checks a generated key that is already taken
// is discarded and a fresh one is used.
func TestIssueOrGet_CollisionRetry(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.CreateIgnoreConflict(ctx, &models.KeyBinding{
		Identity:    "user-2",
		Key:         "Violet-Hub-taken",
		ActivatedAt: time.Now(),
	})
	require.NoError(t, err)

	gen := &scriptedGen{keys: []string{"Violet-Hub-taken", "Violet-Hub-fresh"}}
	svc := NewService(repo, gen, testWindow)

	key, err := svc.IssueOrGet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Violet-Hub-fresh", key)
}

// TestIssueOrGet_KeySpaceExhausted checks the retry bound.
func TestIssueOrGet_KeySpaceExhausted(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.CreateIgnoreConflict(ctx, &models.KeyBinding{
		Identity:    "user-2",
		Key:         "Violet-Hub-taken",
		ActivatedAt: time.Now(),
	})
	require.NoError(t, err)

	gen := &scriptedGen{keys: []string{"Violet-Hub-taken"}}
	svc := NewService(repo, gen, testWindow)

	_, err = svc.IssueOrGet(ctx, "user-1")
	assert.ErrorIs(t, err, ErrKeySpaceExhausted)
}

// TestIssueOrGet_Reactivation checks an expired record is refreshed in place:
// new window, notified re-armed, key and hardware binding preserved.
func TestIssueOrGet_Reactivation(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, keygen.New("", 0), testWindow)
	ctx := context.Background()

	_, err := repo.CreateIgnoreConflict(ctx, &models.KeyBinding{
		Identity:    "user-1",
		Key:         "Violet-Hub-old",
		HardwareID:  strptr("HW-1"),
		ActivatedAt: time.Now().Add(-25 * time.Hour),
		Notified:    true,
	})
	require.NoError(t, err)

	key, err := svc.IssueOrGet(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Violet-Hub-old", key)

	binding, err := repo.GetByIdentity(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, binding.Expired(testWindow, time.Now()))
	assert.False(t, binding.Notified)
	require.True(t, binding.Bound())
	assert.Equal(t, "HW-1", *binding.HardwareID)
}

// TestIssueOrGet_LiveNotReactivated checks a live record keeps its window.
func TestIssueOrGet_LiveNotReactivated(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, keygen.New("", 0), testWindow)
	ctx := context.Background()

	activated := time.Now().Add(-2 * time.Hour)
	_, err := repo.CreateIgnoreConflict(ctx, &models.KeyBinding{
		Identity:    "user-1",
		Key:         "Violet-Hub-live",
		ActivatedAt: activated,
	})
	require.NoError(t, err)

	_, err = svc.IssueOrGet(ctx, "user-1")
	require.NoError(t, err)

	binding, err := repo.GetByIdentity(ctx, "user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, activated, binding.ActivatedAt, time.Minute)
}

// TestIssueOrGet_ConcurrentSameIdentity checks concurrent issuance converges
// on exactly one record and one key.
func TestIssueOrGet_ConcurrentSameIdentity(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, keygen.New("", 0), testWindow)

	const numGoroutines = 10
	var wg sync.WaitGroup
	results := make(chan string, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := svc.IssueOrGet(context.Background(), "user-1")
			if err != nil {
				t.Errorf("IssueOrGet failed: %v", err)
				return
			}
			results <- key
		}()
	}

	wg.Wait()
	close(results)

	keys := make(map[string]bool)
	for key := range results {
		keys[key] = true
	}
	assert.Equal(t, 1, len(keys), "all concurrent calls should converge on one key")

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
