package gamification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/logger"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/metrics"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

// maxCASAttempts bounds how often a lost compare-and-set is re-read and retried.
const maxCASAttempts = 5

type Activity string

const (
	ActivityPostCreated   Activity = "post_created"
	ActivityReplyCreated  Activity = "reply_created"
	ActivityHelpfulAnswer Activity = "helpful_answer"
)

type activityReward struct {
	points int64
	reason models.PointReason
	bump   func(g *models.UserGamification)

	// evidence is the forum record the credited user must have authored.
	evidence models.TargetType
	// helpful additionally requires the reply to carry the helpful mark.
	helpful  bool
}

var activityRewards = map[Activity]activityReward{
	ActivityPostCreated: {
		points:   10,
		reason:   models.ReasonCreatePost,
		bump:     func(g *models.UserGamification) { g.PostCount++ },
		evidence: models.TargetPost,
	},
	ActivityReplyCreated: {
		points:   5,
		reason:   models.ReasonCreateReply,
		bump:     func(g *models.UserGamification) { g.ReplyCount++ },
		evidence: models.TargetReply,
	},
	ActivityHelpfulAnswer: {
		points:   15,
		reason:   models.ReasonHelpfulAnswer,
		bump:     func(g *models.UserGamification) { g.HelpfulAnswerCount++ },
		evidence: models.TargetReply,
		helpful:  true,
	},
}

// mutation edits a freshly loaded aggregate and returns the point delta to
// apply with its reason. It may run more than once when a CAS is lost, so it
// must only touch g.
type mutation func(g *models.UserGamification) (int64, models.PointReason)

// Ledger owns every write to the per-user aggregate.
type Ledger struct {
	store    Store
	forum    Forum
	levels   *LevelSystem
	catalog  *BadgeCatalog
	notifier Notifier
	locks    *keyedMutex
	now      func() time.Time
}

func NewLedger(store Store, forum Forum, levels *LevelSystem, catalog *BadgeCatalog, notifier Notifier) *Ledger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Ledger{
		store:    store,
		forum:    forum,
		levels:   levels,
		catalog:  catalog,
		notifier: notifier,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// AwardPoints applies delta (clamped so the total never drops below zero),
// recomputes the level, then logs the transaction and evaluates badges on a
// best-effort basis. Only the aggregate write can fail the call.
func (l *Ledger) AwardPoints(ctx context.Context, uid string, delta int64, reason models.PointReason) (*models.UserGamification, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}
	if reason == "" {
		return nil, validationf("point reason is required")
	}
	return l.apply(ctx, uid, func(*models.UserGamification) (int64, models.PointReason) {
		return delta, reason
	})
}

// RecordActivity bumps the matching contribution counter and awards its
// points in the same aggregate write.
func (l *Ledger) RecordActivity(ctx context.Context, uid string, a Activity) (*models.UserGamification, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}
	reward, ok := activityRewards[a]
	if !ok {
		return nil, validationf("unknown activity %q", a)
	}
	return l.apply(ctx, uid, func(g *models.UserGamification) (int64, models.PointReason) {
		reward.bump(g)
		return reward.points, reward.reason
	})
}

// CreditContribution is the entry point for contributions reported from
// outside the process. The forum must show uid as the author of targetID
// (and, for helpful answers, the helpful mark on the reply), and each
// (activity, target) pair is credited at most once.
func (l *Ledger) CreditContribution(ctx context.Context, uid string, a Activity, targetID string) (*models.UserGamification, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}
	reward, ok := activityRewards[a]
	if !ok {
		return nil, validationf("unknown activity %q", a)
	}
	if targetID == "" {
		return nil, validationf("target_id is required")
	}
	if l.forum == nil {
		return nil, fmt.Errorf("verify %s %s: no forum configured", a, targetID)
	}

	author, err := l.forum.AuthorOf(ctx, targetID, reward.evidence)
	if err != nil {
		return nil, err
	}
	if author != uid {
		return nil, validationf("%s %s was not authored by the caller", reward.evidence, targetID)
	}
	if reward.helpful {
		helpful, err := l.forum.IsHelpful(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if !helpful {
			return nil, validationf("reply %s is not marked helpful", targetID)
		}
	}

	claimed, err := l.store.ClaimActivity(ctx, a, targetID, uid)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, validationf("%s for %s already credited", a, targetID)
	}

	g, err := l.RecordActivity(ctx, uid, a)
	if err != nil {
		if rerr := l.store.ReleaseActivity(context.WithoutCancel(ctx), a, targetID); rerr != nil {
			logger.Warn("[gamification] failed to release %s claim on %s: %v", a, targetID, rerr)
		}
		return nil, err
	}
	return g, nil
}

// Transactions returns the user's most recent point transactions, newest first.
func (l *Ledger) Transactions(ctx context.Context, uid string, limit int) ([]models.PointTransaction, error) {
	if uid == "" {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txs, err := l.store.ListTransactions(ctx, uid, limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.PointTransaction{}
	}
	return txs, nil
}

func (l *Ledger) apply(ctx context.Context, uid string, m mutation) (*models.UserGamification, error) {
	g, prevPoints, prevLevel, reason, err := l.save(ctx, uid, m)
	if err != nil {
		return nil, err
	}

	// The aggregate is committed; nothing below may fail the call or be
	// cut short by the caller going away.
	ctx = context.WithoutCancel(ctx)

	applied := g.TotalPoints - prevPoints
	if applied != 0 {
		l.logTransaction(ctx, uid, applied, reason)
		l.notifier.Notify(ctx, models.Notification{
			Type:      models.NotifyPointsAwarded,
			UID:       uid,
			Data:      map[string]any{"points": applied, "reason": reason, "total_points": g.TotalPoints},
			CreatedAt: l.now().UTC(),
		})
	}
	if g.Level > prevLevel {
		l.notifier.Notify(ctx, models.Notification{
			Type:      models.NotifyLevelUp,
			UID:       uid,
			Data:      map[string]any{"level": g.Level},
			CreatedAt: l.now().UTC(),
		})
	}

	if _, err := l.EvaluateBadges(ctx, uid, g); err != nil {
		metrics.SecondaryFailures.WithLabelValues("badges").Inc()
		logger.Warn("[gamification] badge evaluation failed for %s: %v", uid, err)
	}
	return g, nil
}

// save runs the read-modify-write cycle under the user's lock, retrying on
// lost compare-and-set races.
func (l *Ledger) save(ctx context.Context, uid string, m mutation) (*models.UserGamification, int64, int, models.PointReason, error) {
	unlock := l.locks.Lock(uid)
	defer unlock()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		g, err := l.store.GetOrCreateAggregate(ctx, uid)
		if err != nil {
			return nil, 0, 0, "", err
		}
		prevPoints, prevLevel := g.TotalPoints, g.Level

		delta, reason := m(g)
		g.TotalPoints = max(0, g.TotalPoints+delta)
		g.Level = l.levels.LevelFor(g.TotalPoints)

		err = l.store.SaveAggregate(ctx, g)
		if errors.Is(err, ErrConflict) {
			metrics.CASConflicts.WithLabelValues("aggregate").Inc()
			continue
		}
		if err != nil {
			return nil, 0, 0, "", err
		}
		return g, prevPoints, prevLevel, reason, nil
	}
	return nil, 0, 0, "", fmt.Errorf("save gamification for %s: %w", uid, ErrConflict)
}

func (l *Ledger) logTransaction(ctx context.Context, uid string, points int64, reason models.PointReason) {
	if points > 0 {
		metrics.PointsAwarded.WithLabelValues(string(reason)).Add(float64(points))
	} else {
		metrics.PointsReclaimed.WithLabelValues(string(reason)).Add(float64(-points))
	}
	err := l.store.AppendTransaction(ctx, models.PointTransaction{
		ID:        uuid.NewString(),
		UID:       uid,
		Points:    points,
		Reason:    reason,
		CreatedAt: l.now().UTC(),
	})
	if err != nil {
		metrics.SecondaryFailures.WithLabelValues("transaction").Inc()
		logger.Warn("[gamification] failed to log %d points (%s) for %s: %v", points, reason, uid, err)
	}
}

// EvaluateBadges awards every catalog badge g newly satisfies in one write
// and records them on g. Badges already held are never touched.
func (l *Ledger) EvaluateBadges(ctx context.Context, uid string, g *models.UserGamification) ([]Badge, error) {
	imagePosts := -1
	if l.forum != nil && l.catalog.NeedsImageCount(g) {
		n, err := l.forum.ImagePostCount(ctx, uid)
		if err != nil {
			logger.Debug("[gamification] image post count unavailable for %s: %v", uid, err)
		} else {
			imagePosts = n
		}
	}

	earned := l.catalog.NewlyEarned(g, imagePosts)
	if len(earned) == 0 {
		return nil, nil
	}
	ids := make([]string, len(earned))
	for i, b := range earned {
		ids[i] = b.ID
	}
	if err := l.store.AddBadges(ctx, uid, ids); err != nil {
		return nil, err
	}
	g.AddBadges(ids...)

	for _, b := range earned {
		metrics.BadgesEarned.WithLabelValues(b.ID).Inc()
		l.notifier.Notify(ctx, models.Notification{
			Type:      models.NotifyBadgeEarned,
			UID:       uid,
			Data:      map[string]any{"badge": b.ID, "name": b.Name, "icon": b.Icon},
			CreatedAt: l.now().UTC(),
		})
	}
	return earned, nil
}
