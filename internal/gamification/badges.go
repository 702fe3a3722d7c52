package gamification

import "github.com/RafliAndy/bank-sampah-app-sub000/internal/models"

type RequirementKind string

const (
	RequireFirstPost      RequirementKind = "first_post"
	RequireTotalReplies   RequirementKind = "total_replies"
	RequireTotalPoints    RequirementKind = "total_points"
	RequireHelpfulAnswers RequirementKind = "helpful_answers"
	RequireLoginStreak    RequirementKind = "login_streak"
	RequireImagePosts     RequirementKind = "posts_with_image"
)

type Requirement struct {
	Kind      RequirementKind `json:"kind"`
	Threshold int64           `json:"threshold"`
}

// Badge defines a single achievement.
type Badge struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	Requirement Requirement `json:"requirement"`
}

// DefaultBadges is the catalog shipped with the app.
var DefaultBadges = []Badge{
	{ID: "first_post", Name: "First Steps", Description: "Publish your first post", Icon: "🌱",
		Requirement: Requirement{Kind: RequireFirstPost, Threshold: 1}},
	{ID: "conversation_starter", Name: "Conversation Starter", Description: "Write 10 replies", Icon: "💬",
		Requirement: Requirement{Kind: RequireTotalReplies, Threshold: 10}},
	{ID: "helping_hand", Name: "Helping Hand", Description: "Have 5 answers marked helpful", Icon: "🤝",
		Requirement: Requirement{Kind: RequireHelpfulAnswers, Threshold: 5}},
	{ID: "rising_star", Name: "Rising Star", Description: "Earn 100 points", Icon: "⭐",
		Requirement: Requirement{Kind: RequireTotalPoints, Threshold: 100}},
	{ID: "community_pillar", Name: "Community Pillar", Description: "Earn 1,000 points", Icon: "🏛️",
		Requirement: Requirement{Kind: RequireTotalPoints, Threshold: 1000}},
	{ID: "week_streak", Name: "Week Warrior", Description: "7-day login streak", Icon: "🔥",
		Requirement: Requirement{Kind: RequireLoginStreak, Threshold: 7}},
	{ID: "month_streak", Name: "Monthly Regular", Description: "30-day login streak", Icon: "📅",
		Requirement: Requirement{Kind: RequireLoginStreak, Threshold: 30}},
	{ID: "visual_storyteller", Name: "Visual Storyteller", Description: "Publish 5 posts with an image", Icon: "📷",
		Requirement: Requirement{Kind: RequireImagePosts, Threshold: 5}},
}

// BadgeCatalog is the immutable set of badge definitions.
type BadgeCatalog struct {
	badges []Badge
	byID   map[string]Badge
}

func NewBadgeCatalog(badges []Badge) (*BadgeCatalog, error) {
	c := &BadgeCatalog{
		badges: make([]Badge, 0, len(badges)),
		byID:   make(map[string]Badge, len(badges)),
	}
	for _, b := range badges {
		if b.ID == "" {
			return nil, validationf("badge without id")
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, validationf("duplicate badge %q", b.ID)
		}
		c.badges = append(c.badges, b)
		c.byID[b.ID] = b
	}
	return c, nil
}

func MustBadgeCatalog(badges []Badge) *BadgeCatalog {
	c, err := NewBadgeCatalog(badges)
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns the catalog in display order.
func (c *BadgeCatalog) Definitions() []Badge {
	out := make([]Badge, len(c.badges))
	copy(out, c.badges)
	return out
}

func (c *BadgeCatalog) Lookup(id string) (Badge, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// NeedsImageCount reports whether any unearned badge depends on the image-post count.
func (c *BadgeCatalog) NeedsImageCount(g *models.UserGamification) bool {
	for _, b := range c.badges {
		if b.Requirement.Kind == RequireImagePosts && !g.HasBadge(b.ID) {
			return true
		}
	}
	return false
}

// Qualifies is the pure earning predicate. imagePosts < 0 means the count is
// unknown, in which case image-based badges never qualify.
func Qualifies(r Requirement, g *models.UserGamification, imagePosts int) bool {
	switch r.Kind {
	case RequireFirstPost:
		return g.PostCount >= 1
	case RequireTotalReplies:
		return int64(g.ReplyCount) >= r.Threshold
	case RequireTotalPoints:
		return g.TotalPoints >= r.Threshold
	case RequireHelpfulAnswers:
		return int64(g.HelpfulAnswerCount) >= r.Threshold
	case RequireLoginStreak:
		return int64(max(g.LongestStreak, g.CurrentStreak)) >= r.Threshold
	case RequireImagePosts:
		return imagePosts >= 0 && int64(imagePosts) >= r.Threshold
	}
	return false
}

// NewlyEarned returns badges not yet held that the snapshot now satisfies.
// Already-held badges are skipped, so repeated calls are no-ops.
func (c *BadgeCatalog) NewlyEarned(g *models.UserGamification, imagePosts int) []Badge {
	var earned []Badge
	for _, b := range c.badges {
		if g.HasBadge(b.ID) {
			continue
		}
		if Qualifies(b.Requirement, g, imagePosts) {
			earned = append(earned, b)
		}
	}
	return earned
}
