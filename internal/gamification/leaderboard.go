package gamification

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/logger"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/metrics"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

const (
	DefaultLeaderboardLimit = 20
	MaxLeaderboardLimit     = 100

	anonymousName = "Anonymous"
	// profileFanOut bounds concurrent profile lookups per leaderboard read.
	profileFanOut = 8
)

// LeaderboardService ranks users by total points. Ties are broken by uid
// ascending so the same data always produces the same order.
type LeaderboardService struct {
	store        Store
	profiles     Profiles
	defaultLimit int
}

func NewLeaderboardService(store Store, profiles Profiles, defaultLimit int) *LeaderboardService {
	if defaultLimit <= 0 || defaultLimit > MaxLeaderboardLimit {
		defaultLimit = DefaultLeaderboardLimit
	}
	return &LeaderboardService{store: store, profiles: profiles, defaultLimit: defaultLimit}
}

func (s *LeaderboardService) normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}

func compareRanked(a, b models.UserGamification) int {
	if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
		return c
	}
	return cmp.Compare(a.UID, b.UID)
}

// TopN returns up to limit entries with ordinal ranks 1..k. A user whose
// profile cannot be loaded keeps their entry under a placeholder name.
func (s *LeaderboardService) TopN(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	start := time.Now()
	defer func() { metrics.LeaderboardLatency.Observe(time.Since(start).Seconds()) }()

	aggs, err := s.store.TopAggregates(ctx, s.normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(aggs, compareRanked)

	entries := make([]models.LeaderboardEntry, len(aggs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(profileFanOut)
	for i := range aggs {
		entries[i] = s.entry(aggs[i], i+1)
		g.Go(func() error {
			s.fillProfile(gctx, &entries[i])
			return nil
		})
	}
	_ = g.Wait()
	return entries, nil
}

// RankOf returns uid's own leaderboard entry, wherever it falls. A user
// without an aggregate is ranked as 0 points and no row is created.
func (s *LeaderboardService) RankOf(ctx context.Context, uid string) (*models.LeaderboardEntry, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}
	agg, err := s.store.GetAggregate(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		agg = &models.UserGamification{UID: uid, Level: 1, Badges: []string{}}
	} else if err != nil {
		return nil, err
	}
	ahead, err := s.store.CountAhead(ctx, agg.TotalPoints, agg.UID)
	if err != nil {
		return nil, err
	}
	e := s.entry(*agg, ahead+1)
	s.fillProfile(ctx, &e)
	return &e, nil
}

func (s *LeaderboardService) entry(g models.UserGamification, rank int) models.LeaderboardEntry {
	badges := g.Badges
	if badges == nil {
		badges = []string{}
	}
	return models.LeaderboardEntry{
		Rank:        rank,
		UID:         g.UID,
		DisplayName: anonymousName,
		TotalPoints: g.TotalPoints,
		Level:       g.Level,
		Badges:      badges,
	}
}

func (s *LeaderboardService) fillProfile(ctx context.Context, e *models.LeaderboardEntry) {
	if s.profiles == nil {
		return
	}
	p, err := s.profiles.Profile(ctx, e.UID)
	if err != nil {
		logger.Debug("[gamification] no profile for %s: %v", e.UID, err)
		return
	}
	if name := p.DisplayName(); name != "" {
		e.DisplayName = name
	}
	e.ProfilePhotoURL = p.PhotoURL
}
