// Package ranking maintains the browse lists. Programs are scored with a
// Wilson lower-bound interval decayed by age and kept sorted three ways;
// the lists rebuild on a cron schedule rather than per request.
package ranking

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"codeshare/pkg/logger"
	"codeshare/pkg/models"
	"codeshare/pkg/store"
)

// ErrInvalidCron is returned by Start for a malformed schedule.
var ErrInvalidCron = errors.New("ranking: invalid cron expression")

// Views accepted by Page. An unknown view falls back to ViewHot.
const (
	ViewHot    = "hot"
	ViewRecent = "recent"
	ViewTop    = "top"
)

const (
	// z is the 95% confidence interval constant.
	z = 1.96
	// minElapsedHours floors the age divisor so brand-new programs do not
	// produce infinite scores.
	minElapsedHours = 1e-6
)

// Hotness scores a program by its Wilson lower bound divided by elapsed
// hours, so confidence in the like ratio decays with age.
func Hotness(likeCount int, created, now int64) float64 {
	n := float64(likeCount) + 1
	p := float64(likeCount) / n

	score := (p + z*z/(2*n) - z*math.Sqrt((p*(1-p)+z*z/(4*n))/n)) / (1 + z*z/n)

	elapsed := float64(now-created) / float64(time.Hour.Milliseconds())
	if elapsed < minElapsedHours {
		elapsed = minElapsedHours
	}
	return score / elapsed
}

// Engine holds the three sorted browse lists. Reads serve stale data
// until the next rebuild.
type Engine struct {
	mu       sync.RWMutex
	hot      []*models.Program
	recent   []*models.Program
	top      []*models.Program
	pageSize int
}

// New returns an engine with empty lists; call Rebuild to populate them.
func New(pageSize int) *Engine {
	return &Engine{pageSize: pageSize}
}

// Rebuild loads every program and re-sorts the three lists. The swap is
// atomic with respect to Page.
func (e *Engine) Rebuild() error {
	programs, err := store.ListPrograms()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()

	hot := make([]*models.Program, len(programs))
	recent := make([]*models.Program, len(programs))
	top := make([]*models.Program, len(programs))
	copy(hot, programs)
	copy(recent, programs)
	copy(top, programs)

	// sorting only reads the summary projection, never the full document
	sort.SliceStable(hot, func(i, j int) bool {
		a, b := hot[i].Summary(), hot[j].Summary()
		return Hotness(a.LikeCount, a.Created, now) > Hotness(b.LikeCount, b.Created, now)
	})
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Summary().Created > recent[j].Summary().Created
	})
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Summary().LikeCount > top[j].Summary().LikeCount
	})

	e.mu.Lock()
	e.hot, e.recent, e.top = hot, recent, top
	e.mu.Unlock()
	logger.Info("ranking_rebuilt", "programs", len(programs))
	return nil
}

// Page returns one page of the named view. Out-of-range pages return an
// empty, non-nil slice so callers always serialize a JSON array.
func (e *Engine) Page(view string, page int) []*models.Program {
	e.mu.RLock()
	var list []*models.Program
	switch view {
	case ViewRecent:
		list = e.recent
	case ViewTop:
		list = e.top
	default:
		list = e.hot
	}
	e.mu.RUnlock()

	if page < 0 {
		page = 0
	}
	start := page * e.pageSize
	if start >= len(list) {
		return []*models.Program{}
	}
	end := start + e.pageSize
	if end > len(list) {
		end = len(list)
	}
	out := make([]*models.Program, end-start)
	copy(out, list[start:end])
	return out
}

// Start runs the rebuild schedule until ctx is canceled. The cron
// expression is checked once a minute.
func (e *Engine) Start(ctx context.Context, cronExpr string) error {
	gron := gronx.New()
	if !gron.IsValid(cronExpr) {
		logger.Error("ranking_cron_invalid", "cron", cronExpr)
		return ErrInvalidCron
	}
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				due, err := gron.IsDue(cronExpr, time.Now())
				if err != nil || !due {
					continue
				}
				if err := e.Rebuild(); err != nil {
					logger.Error("ranking_rebuild_failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
