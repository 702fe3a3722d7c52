package gamification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/logger"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/metrics"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

// upvoteAwards is what a target's author earns per upvote.
var upvoteAwards = map[models.TargetType]int64{
	models.TargetPost:  3,
	models.TargetReply: 2,
}

// VotingEngine records one vote per (voter, target) with toggle semantics and
// keeps the target's counters and its author's points in step.
type VotingEngine struct {
	store   Store
	forum   Forum
	ledger  *Ledger
	locks   *keyedMutex
	reclaim bool
	now     func() time.Time
}

// NewVotingEngine builds the engine. With reclaim set, an upvote that goes
// away (toggled off or flipped down) takes its award back, and a flip up
// awards like a fresh upvote; otherwise only first-time upvotes award points.
func NewVotingEngine(store Store, forum Forum, ledger *Ledger, reclaim bool) *VotingEngine {
	return &VotingEngine{
		store:   store,
		forum:   forum,
		ledger:  ledger,
		locks:   newKeyedMutex(),
		reclaim: reclaim,
		now:     time.Now,
	}
}

type votePlan struct {
	action   models.VoteAction
	existing *models.Vote
	vote     models.Vote
	prev     int
	next     int
}

func planVote(existing *models.Vote, voterID, targetID string, t models.TargetType, value int, now time.Time) votePlan {
	switch {
	case existing == nil:
		return votePlan{
			action: models.VoteCreated,
			vote: models.Vote{
				ID:         uuid.NewString(),
				TargetID:   targetID,
				TargetType: t,
				VoterID:    voterID,
				Value:      value,
				CreatedAt:  now,
			},
			next: value,
		}
	case existing.Value == value:
		return votePlan{action: models.VoteRemoved, existing: existing, vote: *existing, prev: value}
	default:
		v := *existing
		v.Value = value
		return votePlan{action: models.VoteChanged, existing: existing, vote: v, prev: existing.Value, next: value}
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// deltas returns the counter change implied by moving from prev to next.
// A flip yields -1/+1 across the two counters.
func (p votePlan) deltas() (dUp, dDown int) {
	dUp = b2i(p.next == models.VoteUp) - b2i(p.prev == models.VoteUp)
	dDown = b2i(p.next == models.VoteDown) - b2i(p.prev == models.VoteDown)
	return dUp, dDown
}

// CastVote creates, toggles off or flips the voter's vote on a target.
// The vote record and the counters are the primary effect and fail the call;
// the author's point award is best-effort.
func (e *VotingEngine) CastVote(ctx context.Context, voterID, targetID string, t models.TargetType, value int) (*models.VoteResult, error) {
	if voterID == "" {
		return nil, ErrUnauthenticated
	}
	if targetID == "" {
		return nil, validationf("target id is required")
	}
	if !t.Valid() {
		return nil, validationf("target type must be POST or REPLY, got %q", t)
	}
	if value != models.VoteUp && value != models.VoteDown {
		return nil, validationf("vote value must be 1 or -1, got %d", value)
	}

	// Held through the award so one voter's awards and reclaims reach the
	// author in vote order. The ledger has its own lock set.
	unlock := e.locks.Lock(voterID)
	defer unlock()

	plan, counters, err := e.record(ctx, voterID, targetID, t, value)
	if err != nil {
		return nil, err
	}
	metrics.VotesCast.WithLabelValues(string(plan.action), string(t)).Inc()

	e.awardAuthor(context.WithoutCancel(ctx), plan)

	return &models.VoteResult{
		Action:   plan.action,
		Value:    plan.next,
		Counters: counters,
	}, nil
}

func (e *VotingEngine) record(ctx context.Context, voterID, targetID string, t models.TargetType, value int) (votePlan, models.VoteCounters, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		existing, err := e.store.FindVote(ctx, voterID, targetID)
		if err != nil {
			return votePlan{}, models.VoteCounters{}, err
		}
		plan := planVote(existing, voterID, targetID, t, value, e.now().UTC())

		ok, err := e.applyPlan(ctx, plan)
		if err != nil {
			return votePlan{}, models.VoteCounters{}, err
		}
		if !ok {
			// Someone else changed the record between read and write; re-plan.
			metrics.CASConflicts.WithLabelValues("vote").Inc()
			continue
		}

		dUp, dDown := plan.deltas()
		counters, err := e.store.AdjustCounters(ctx, targetID, plan.vote.TargetType, dUp, dDown)
		if err != nil {
			e.revertPlan(context.WithoutCancel(ctx), plan)
			return votePlan{}, models.VoteCounters{}, err
		}
		return plan, counters, nil
	}
	return votePlan{}, models.VoteCounters{}, ErrConflict
}

func (e *VotingEngine) applyPlan(ctx context.Context, p votePlan) (bool, error) {
	switch p.action {
	case models.VoteCreated:
		return e.store.InsertVote(ctx, p.vote)
	case models.VoteRemoved:
		return e.store.DeleteVote(ctx, p.existing.ID, p.prev)
	default:
		return e.store.UpdateVoteValue(ctx, p.existing.ID, p.prev, p.next)
	}
}

// revertPlan undoes a vote record change whose counter update failed, so the
// record and the counters do not drift apart.
func (e *VotingEngine) revertPlan(ctx context.Context, p votePlan) {
	var err error
	switch p.action {
	case models.VoteCreated:
		_, err = e.store.DeleteVote(ctx, p.vote.ID, p.next)
	case models.VoteRemoved:
		_, err = e.store.InsertVote(ctx, *p.existing)
	default:
		_, err = e.store.UpdateVoteValue(ctx, p.existing.ID, p.next, p.prev)
	}
	if err != nil {
		metrics.SecondaryFailures.WithLabelValues("vote_revert").Inc()
		logger.Error("[gamification] failed to revert vote %s after counter failure: %v", p.vote.ID, err)
	}
}

func (e *VotingEngine) awardAuthor(ctx context.Context, p votePlan) {
	dUp, _ := p.deltas()
	points := upvoteAwards[p.vote.TargetType]

	var delta int64
	var reason models.PointReason
	switch {
	case dUp > 0 && (e.reclaim || p.action == models.VoteCreated):
		delta, reason = points, models.ReasonUpvoteReceived
	case dUp < 0 && e.reclaim:
		delta, reason = -points, models.ReasonUpvoteRetracted
	default:
		return
	}

	author, err := e.forum.AuthorOf(ctx, p.vote.TargetID, p.vote.TargetType)
	if err != nil || author == "" {
		if err != nil && !errors.Is(err, ErrNotFound) {
			metrics.SecondaryFailures.WithLabelValues("author_lookup").Inc()
			logger.Warn("[gamification] author lookup for %s failed: %v", p.vote.TargetID, err)
		}
		return
	}
	if _, err := e.ledger.AwardPoints(ctx, author, delta, reason); err != nil {
		metrics.SecondaryFailures.WithLabelValues("vote_award").Inc()
		logger.Warn("[gamification] failed to award %d points to %s: %v", delta, author, err)
	}
}
