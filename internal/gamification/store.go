package gamification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

// Store is the narrow record contract the engine needs from the backing store.
// Implementations must make SaveAggregate a compare-and-set on Version and
// the vote mutations conditional on the value they expect to replace.
type Store interface {
	// GetAggregate reads without creating. ErrNotFound if uid has no row.
	GetAggregate(ctx context.Context, uid string) (*models.UserGamification, error)
	GetOrCreateAggregate(ctx context.Context, uid string) (*models.UserGamification, error)
	// SaveAggregate writes every counter except Badges if the stored version
	// still equals g.Version, then bumps g.Version. Returns ErrConflict otherwise.
	SaveAggregate(ctx context.Context, g *models.UserGamification) error
	// AddBadges unions ids into the stored badge set in a single write.
	AddBadges(ctx context.Context, uid string, ids []string) error
	AppendTransaction(ctx context.Context, tx models.PointTransaction) error
	ListTransactions(ctx context.Context, uid string, limit int) ([]models.PointTransaction, error)
	// TopAggregates orders by total points descending, then uid ascending.
	TopAggregates(ctx context.Context, limit int) ([]models.UserGamification, error)
	// CountAhead counts aggregates ranked before (points, uid) in TopAggregates order.
	CountAhead(ctx context.Context, points int64, uid string) (int, error)

	// FindVote returns nil, nil when the voter has no vote on the target.
	FindVote(ctx context.Context, voterID, targetID string) (*models.Vote, error)
	// InsertVote reports false if a vote for (voter, target) already exists.
	InsertVote(ctx context.Context, v models.Vote) (bool, error)
	// DeleteVote reports false unless a vote with id and value was deleted.
	DeleteVote(ctx context.Context, id string, value int) (bool, error)
	// UpdateVoteValue reports false unless the vote still had value from.
	UpdateVoteValue(ctx context.Context, id string, from, to int) (bool, error)
	// AdjustCounters applies the deltas clamped at zero. ErrNotFound if the target is gone.
	AdjustCounters(ctx context.Context, targetID string, t models.TargetType, dUp, dDown int) (models.VoteCounters, error)

	// ClaimActivity records that (a, targetID) was credited to uid. It reports
	// false if the pair was already claimed by anyone.
	ClaimActivity(ctx context.Context, a Activity, targetID, uid string) (bool, error)
	ReleaseActivity(ctx context.Context, a Activity, targetID string) error
}

// PostgresStore implements Store over the tables created by database.Migrate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ── Aggregate CRUD ──────────────────────────────────────

const aggregateColumns = `user_id, total_points, level, post_count, reply_count,
	helpful_answer_count, current_streak, longest_streak, last_login_date,
	badges, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAggregate(row rowScanner) (*models.UserGamification, error) {
	var g models.UserGamification
	var badges pq.StringArray
	if err := row.Scan(&g.UID, &g.TotalPoints, &g.Level, &g.PostCount, &g.ReplyCount,
		&g.HelpfulAnswerCount, &g.CurrentStreak, &g.LongestStreak, &g.LastLoginDate,
		&badges, &g.Version, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.Badges = []string(badges)
	if g.Badges == nil {
		g.Badges = []string{}
	}
	return &g, nil
}

func (s *PostgresStore) GetAggregate(ctx context.Context, uid string) (*models.UserGamification, error) {
	g, err := scanAggregate(s.db.QueryRowContext(ctx,
		`SELECT `+aggregateColumns+` FROM user_gamification WHERE user_id = $1`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("gamification for %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get gamification: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) GetOrCreateAggregate(ctx context.Context, uid string) (*models.UserGamification, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_gamification (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert gamification: %w", err)
	}

	g, err := scanAggregate(s.db.QueryRowContext(ctx,
		`SELECT `+aggregateColumns+` FROM user_gamification WHERE user_id = $1`, uid))
	if err != nil {
		return nil, fmt.Errorf("get gamification: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) SaveAggregate(ctx context.Context, g *models.UserGamification) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_gamification SET
		    total_points = $3, level = $4,
		    post_count = $5, reply_count = $6, helpful_answer_count = $7,
		    current_streak = $8, longest_streak = $9, last_login_date = $10,
		    version = version + 1, updated_at = NOW()
		 WHERE user_id = $1 AND version = $2`,
		g.UID, g.Version,
		g.TotalPoints, g.Level,
		g.PostCount, g.ReplyCount, g.HelpfulAnswerCount,
		g.CurrentStreak, g.LongestStreak, g.LastLoginDate,
	)
	if err != nil {
		return fmt.Errorf("update gamification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update gamification: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	g.Version++
	return nil
}

func (s *PostgresStore) AddBadges(ctx context.Context, uid string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_gamification SET
		    badges = ARRAY(SELECT DISTINCT b FROM unnest(badges || $2::text[]) AS b ORDER BY b),
		    updated_at = NOW()
		 WHERE user_id = $1`,
		uid, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("add badges: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("add badges for %s: %w", uid, ErrNotFound)
	}
	return nil
}

// ── Point Transactions ──────────────────────────────────

func (s *PostgresStore) AppendTransaction(ctx context.Context, tx models.PointTransaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO point_transactions (id, user_id, points, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		tx.ID, tx.UID, tx.Points, string(tx.Reason), tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, uid string, limit int) ([]models.PointTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, points, reason, created_at
		 FROM point_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		uid, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.PointTransaction
	for rows.Next() {
		var tx models.PointTransaction
		var reason string
		if err := rows.Scan(&tx.ID, &tx.UID, &tx.Points, &reason, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Reason = models.PointReason(reason)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ── Leaderboard ─────────────────────────────────────────

func (s *PostgresStore) TopAggregates(ctx context.Context, limit int) ([]models.UserGamification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+aggregateColumns+`
		 FROM user_gamification
		 ORDER BY total_points DESC, user_id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get top aggregates: %w", err)
	}
	defer rows.Close()

	var out []models.UserGamification
	for rows.Next() {
		g, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountAhead(ctx context.Context, points int64, uid string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_gamification
		 WHERE total_points > $1 OR (total_points = $1 AND user_id < $2)`,
		points, uid,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ahead: %w", err)
	}
	return n, nil
}

// ── Votes ───────────────────────────────────────────────

func (s *PostgresStore) FindVote(ctx context.Context, voterID, targetID string) (*models.Vote, error) {
	var v models.Vote
	var targetType string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, target_id, target_type, voter_id, value, created_at
		 FROM votes WHERE voter_id = $1 AND target_id = $2`,
		voterID, targetID,
	).Scan(&v.ID, &v.TargetID, &targetType, &v.VoterID, &v.Value, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	v.TargetType = models.TargetType(targetType)
	return &v, nil
}

func (s *PostgresStore) InsertVote(ctx context.Context, v models.Vote) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO votes (id, target_id, target_type, voter_id, value, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (voter_id, target_id) DO NOTHING`,
		v.ID, v.TargetID, string(v.TargetType), v.VoterID, v.Value, v.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert vote: %w", err)
	}
	return affectedOne(res, "insert vote")
}

func (s *PostgresStore) DeleteVote(ctx context.Context, id string, value int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM votes WHERE id = $1 AND value = $2`,
		id, value,
	)
	if err != nil {
		return false, fmt.Errorf("delete vote: %w", err)
	}
	return affectedOne(res, "delete vote")
}

func (s *PostgresStore) UpdateVoteValue(ctx context.Context, id string, from, to int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE votes SET value = $3, created_at = $4 WHERE id = $1 AND value = $2`,
		id, from, to, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("update vote: %w", err)
	}
	return affectedOne(res, "update vote")
}

func affectedOne(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// counterTables maps a vote target to the forum table holding its counters.
var counterTables = map[models.TargetType]string{
	models.TargetPost:  "posts",
	models.TargetReply: "replies",
}

func (s *PostgresStore) AdjustCounters(ctx context.Context, targetID string, t models.TargetType, dUp, dDown int) (models.VoteCounters, error) {
	var c models.VoteCounters
	table, ok := counterTables[t]
	if !ok {
		return c, validationf("unknown target type %q", t)
	}
	err := s.db.QueryRowContext(ctx,
		`UPDATE `+table+` SET
		    upvotes = GREATEST(0, upvotes + $2),
		    downvotes = GREATEST(0, downvotes + $3)
		 WHERE id = $1
		 RETURNING upvotes, downvotes`,
		targetID, dUp, dDown,
	).Scan(&c.Upvotes, &c.Downvotes)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%s %s: %w", t, targetID, ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("adjust counters: %w", err)
	}
	return c, nil
}

// ── Activity Credits ────────────────────────────────────

func (s *PostgresStore) ClaimActivity(ctx context.Context, a Activity, targetID, uid string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_credits (kind, target_id, user_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (kind, target_id) DO NOTHING`,
		string(a), targetID, uid,
	)
	if err != nil {
		return false, fmt.Errorf("claim activity: %w", err)
	}
	return affectedOne(res, "claim activity")
}

func (s *PostgresStore) ReleaseActivity(ctx context.Context, a Activity, targetID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM activity_credits WHERE kind = $1 AND target_id = $2`,
		string(a), targetID,
	)
	if err != nil {
		return fmt.Errorf("release activity: %w", err)
	}
	return nil
}
