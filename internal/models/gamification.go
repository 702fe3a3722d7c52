package models

import (
	"slices"
	"time"
)

// ── Core Gamification Structs ─────────────────────────────

type TargetType string

const (
	TargetPost  TargetType = "POST"
	TargetReply TargetType = "REPLY"
)

func (t TargetType) Valid() bool {
	return t == TargetPost || t == TargetReply
}

const (
	VoteUp   = 1
	VoteDown = -1
)

// UserGamification is the single mutable aggregate kept per user.
type UserGamification struct {
	UID                string     `json:"uid"`
	TotalPoints        int64      `json:"total_points"`
	Level              int        `json:"level"`
	PostCount          int        `json:"post_count"`
	ReplyCount         int        `json:"reply_count"`
	HelpfulAnswerCount int        `json:"helpful_answer_count"`
	CurrentStreak      int        `json:"current_streak"`
	LongestStreak      int        `json:"longest_streak"`
	LastLoginDate      *time.Time `json:"last_login_date"`
	Badges             []string   `json:"badges"`
	Version            int64      `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasBadge reports whether id is already in the badge set.
func (g *UserGamification) HasBadge(id string) bool {
	return slices.Contains(g.Badges, id)
}

// AddBadges merges ids into the badge set, keeping it sorted and unique.
func (g *UserGamification) AddBadges(ids ...string) {
	for _, id := range ids {
		if !g.HasBadge(id) {
			g.Badges = append(g.Badges, id)
		}
	}
	slices.Sort(g.Badges)
}

// Clone returns a deep copy so callers can mutate without aliasing the badge slice.
func (g *UserGamification) Clone() *UserGamification {
	c := *g
	c.Badges = slices.Clone(g.Badges)
	if g.LastLoginDate != nil {
		t := *g.LastLoginDate
		c.LastLoginDate = &t
	}
	return &c
}

type Vote struct {
	ID         string     `json:"id"`
	TargetID   string     `json:"target_id"`
	TargetType TargetType `json:"target_type"`
	VoterID    string     `json:"voter_id"`
	Value      int        `json:"value"`
	CreatedAt  time.Time  `json:"created_at"`
}

type PointReason string

const (
	ReasonCreatePost      PointReason = "create_post"
	ReasonCreateReply     PointReason = "create_reply"
	ReasonHelpfulAnswer   PointReason = "helpful_answer"
	ReasonUpvoteReceived  PointReason = "upvote_received"
	ReasonUpvoteRetracted PointReason = "upvote_retracted"
	ReasonDailyLogin      PointReason = "daily_login"
	ReasonStreakBonus     PointReason = "streak_bonus"
	ReasonManual          PointReason = "manual_adjustment"
)

type PointTransaction struct {
	ID        string      `json:"id"`
	UID       string      `json:"uid"`
	Points    int64       `json:"points"`
	Reason    PointReason `json:"reason"`
	CreatedAt time.Time   `json:"created_at"`
}

type VoteCounters struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

type LeaderboardEntry struct {
	Rank            int      `json:"rank"`
	UID             string   `json:"uid"`
	DisplayName     string   `json:"display_name"`
	ProfilePhotoURL string   `json:"profile_photo_url"`
	TotalPoints     int64    `json:"total_points"`
	Level           int      `json:"level"`
	Badges          []string `json:"badges"`
	IsCurrentUser   bool     `json:"is_current_user"`
}

// Notification is what the engine fires into the notification sink.
type Notification struct {
	Type      string         `json:"type"`
	UID       string         `json:"uid"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

const (
	NotifyPointsAwarded = "points_awarded"
	NotifyLevelUp       = "level_up"
	NotifyBadgeEarned   = "badge_earned"
)

// ── Request Types ─────────────────────────────────────────

type CastVoteRequest struct {
	TargetID   string     `json:"target_id"`
	TargetType TargetType `json:"target_type"`
	Value      int        `json:"value"`
}

type RecordActivityRequest struct {
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
}

// ── Response Types ────────────────────────────────────────

type VoteAction string

const (
	VoteCreated VoteAction = "created"
	VoteRemoved VoteAction = "removed"
	VoteChanged VoteAction = "changed"
)

type VoteResult struct {
	Action   VoteAction   `json:"action"`
	Value    int          `json:"value"` // 0 once removed
	Counters VoteCounters `json:"counters"`
}

type LoginResult struct {
	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
	PointsAwarded int64 `json:"points_awarded"`
	TotalPoints   int64 `json:"total_points"`
	Level         int   `json:"level"`
}

type GamificationResponse struct {
	UserGamification
	NextLevelPoints int64   `json:"next_level_points"`
	LevelProgress   float64 `json:"level_progress"`
}

type LeaderboardResponse struct {
	Entries     []LeaderboardEntry `json:"entries"`
	CurrentUser *LeaderboardEntry  `json:"current_user,omitempty"`
}

type TransactionsResponse struct {
	Transactions []PointTransaction `json:"transactions"`
}
