package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeshare/pkg/models"
	"codeshare/pkg/store"
)

func TestHotnessGrowsWithLikes(t *testing.T) {
	now := time.Now().UnixMilli()
	created := now - time.Hour.Milliseconds()

	prev := Hotness(0, created, now)
	for likes := 1; likes <= 100; likes *= 10 {
		h := Hotness(likes, created, now)
		assert.Greater(t, h, prev, "hotness should grow with likes at %d", likes)
		prev = h
	}
}

func TestHotnessDecaysWithAge(t *testing.T) {
	now := time.Now().UnixMilli()
	fresh := Hotness(10, now-time.Hour.Milliseconds(), now)
	stale := Hotness(10, now-24*time.Hour.Milliseconds(), now)
	assert.Greater(t, fresh, stale)
}

func TestHotnessFiniteForBrandNewProgram(t *testing.T) {
	now := time.Now().UnixMilli()
	h := Hotness(5, now, now)
	assert.False(t, h != h, "hotness must not be NaN")
	assert.Greater(t, h, 0.0)
}

func prog(id string, likes int, created int64) *models.Program {
	l := make([]string, likes)
	for i := range l {
		l[i] = "u"
	}
	return &models.Program{ID: id, Title: id, Type: "pjs", Likes: l, Created: created}
}

func TestPageBounds(t *testing.T) {
	e := New(2)
	now := time.Now().UnixMilli()
	e.hot = []*models.Program{prog("a", 3, now), prog("b", 2, now), prog("c", 1, now)}

	p0 := e.Page(ViewHot, 0)
	require.Len(t, p0, 2)
	assert.Equal(t, "a", p0[0].ID)

	p1 := e.Page(ViewHot, 1)
	require.Len(t, p1, 1)
	assert.Equal(t, "c", p1[0].ID)

	p2 := e.Page(ViewHot, 2)
	assert.NotNil(t, p2)
	assert.Empty(t, p2)

	assert.Len(t, e.Page(ViewHot, -1), 2, "negative pages clamp to the first page")
}

func TestPageUnknownViewFallsBackToHot(t *testing.T) {
	e := New(16)
	e.hot = []*models.Program{prog("a", 0, 0)}
	e.recent = []*models.Program{prog("b", 0, 0)}

	got := e.Page("sideways", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestRebuildSortsAllViews(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now().UnixMilli()
	hour := time.Hour.Milliseconds()
	// old but loved, new with none, recent with some
	require.NoError(t, store.SaveProgram(prog("old-top", 50, now-100*hour)))
	require.NoError(t, store.SaveProgram(prog("new-quiet", 0, now-hour)))
	require.NoError(t, store.SaveProgram(prog("fresh-liked", 10, now-2*hour)))

	e := New(16)
	require.NoError(t, e.Rebuild())

	top := e.Page(ViewTop, 0)
	require.Len(t, top, 3)
	assert.Equal(t, "old-top", top[0].ID)

	recent := e.Page(ViewRecent, 0)
	assert.Equal(t, "new-quiet", recent[0].ID)

	hot := e.Page(ViewHot, 0)
	assert.Equal(t, "fresh-liked", hot[0].ID, "recent likes should outrank stale popularity")
}

func TestStartRejectsBadCron(t *testing.T) {
	e := New(16)
	err := e.Start(context.Background(), "not a cron")
	assert.ErrorIs(t, err, ErrInvalidCron)
}
