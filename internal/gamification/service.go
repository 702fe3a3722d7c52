package gamification

import (
	"context"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

// Options tune the engine at construction time.
type Options struct {
	// ReclaimVotePoints makes upvote awards follow the vote: removing or
	// flipping an upvote takes the award back.
	ReclaimVotePoints       bool
	LeaderboardDefaultLimit int
	Levels                  *LevelSystem
	Catalog                 *BadgeCatalog
}

// Service bundles the engine components behind the operations the HTTP layer
// exposes.
type Service struct {
	store       Store
	levels      *LevelSystem
	catalog     *BadgeCatalog
	ledger      *Ledger
	votes       *VotingEngine
	streaks     *StreakTracker
	leaderboard *LeaderboardService
}

func NewService(store Store, forum Forum, profiles Profiles, notifier Notifier, opts Options) *Service {
	levels := opts.Levels
	if levels == nil {
		levels = MustLevelSystem(DefaultLevelThresholds)
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = MustBadgeCatalog(DefaultBadges)
	}
	ledger := NewLedger(store, forum, levels, catalog, notifier)
	return &Service{
		store:       store,
		levels:      levels,
		catalog:     catalog,
		ledger:      ledger,
		votes:       NewVotingEngine(store, forum, ledger, opts.ReclaimVotePoints),
		streaks:     NewStreakTracker(ledger),
		leaderboard: NewLeaderboardService(store, profiles, opts.LeaderboardDefaultLimit),
	}
}

func (s *Service) Ledger() *Ledger { return s.ledger }

func (s *Service) Streaks() *StreakTracker { return s.streaks }

// Badges lists every badge definition in catalog order.
func (s *Service) Badges() []Badge { return s.catalog.Definitions() }

func (s *Service) CastVote(ctx context.Context, voterID string, req models.CastVoteRequest) (*models.VoteResult, error) {
	return s.votes.CastVote(ctx, voterID, req.TargetID, req.TargetType, req.Value)
}

// GetGamification returns the user's aggregate with level progress,
// creating it on first read.
func (s *Service) GetGamification(ctx context.Context, uid string) (*models.GamificationResponse, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}
	g, err := s.store.GetOrCreateAggregate(ctx, uid)
	if err != nil {
		return nil, err
	}
	if g.Badges == nil {
		g.Badges = []string{}
	}
	return &models.GamificationResponse{
		UserGamification: *g,
		NextLevelPoints:  s.levels.PointsForNextLevel(g.Level),
		LevelProgress:    s.levels.ProgressToNextLevel(g.TotalPoints, g.Level),
	}, nil
}

// GetLeaderboard returns the top entries and, when uid is set, the caller's
// own entry, flagged wherever it appears.
func (s *Service) GetLeaderboard(ctx context.Context, uid string, limit int) (*models.LeaderboardResponse, error) {
	entries, err := s.leaderboard.TopN(ctx, limit)
	if err != nil {
		return nil, err
	}
	resp := &models.LeaderboardResponse{Entries: entries}
	if uid == "" {
		return resp, nil
	}
	for i := range entries {
		if entries[i].UID == uid {
			entries[i].IsCurrentUser = true
			me := entries[i]
			resp.CurrentUser = &me
			return resp, nil
		}
	}
	me, err := s.leaderboard.RankOf(ctx, uid)
	if err != nil {
		return nil, err
	}
	me.IsCurrentUser = true
	resp.CurrentUser = me
	return resp, nil
}
