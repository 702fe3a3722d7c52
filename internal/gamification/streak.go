package gamification

import (
	"context"
	"time"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

const msPerDay = 24 * 60 * 60 * 1000

// dayIndex buckets t into whole UTC days since the epoch.
func dayIndex(t time.Time) int64 {
	ms := t.UnixMilli()
	d := ms / msPerDay
	if ms%msPerDay < 0 {
		d--
	}
	return d
}

// StreakTracker maintains consecutive-day login streaks.
type StreakTracker struct {
	ledger *Ledger
	now    func() time.Time
}

func NewStreakTracker(ledger *Ledger) *StreakTracker {
	return &StreakTracker{ledger: ledger, now: time.Now}
}

// RecordLogin registers a login at the current time. The streak fields and
// the login points land in the same aggregate write. A second login on the
// same UTC day keeps the streak and is awarded by the same rule.
func (s *StreakTracker) RecordLogin(ctx context.Context, uid string) (*models.LoginResult, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}
	now := s.now().UTC()
	today := dayIndex(now)

	var awarded int64
	g, err := s.ledger.apply(ctx, uid, func(g *models.UserGamification) (int64, models.PointReason) {
		awarded = 0
		if g.LastLoginDate == nil {
			g.CurrentStreak = 1
		} else {
			switch today - dayIndex(*g.LastLoginDate) {
			case 0:
			case 1:
				g.CurrentStreak++
			default:
				g.CurrentStreak = 1
			}
		}
		g.LongestStreak = max(g.LongestStreak, g.CurrentStreak)
		g.LastLoginDate = &now

		if g.CurrentStreak > 1 {
			awarded = int64(g.CurrentStreak)
			return awarded, models.ReasonStreakBonus
		}
		awarded = 1
		return awarded, models.ReasonDailyLogin
	})
	if err != nil {
		return nil, err
	}

	return &models.LoginResult{
		CurrentStreak: g.CurrentStreak,
		LongestStreak: g.LongestStreak,
		PointsAwarded: awarded,
		TotalPoints:   g.TotalPoints,
		Level:         g.Level,
	}, nil
}
