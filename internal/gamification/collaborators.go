package gamification

import (
	"context"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

// Forum is the slice of the forum subsystem the engine reads from.
type Forum interface {
	// AuthorOf returns the author uid of a post or reply, ErrNotFound if unknown.
	AuthorOf(ctx context.Context, targetID string, t models.TargetType) (string, error)
	// IsHelpful reports whether a reply has been marked as the helpful answer.
	// ErrNotFound if the reply is unknown.
	IsHelpful(ctx context.Context, replyID string) (bool, error)
	// ImagePostCount counts the user's posts that carry an image.
	ImagePostCount(ctx context.Context, uid string) (int, error)
}

// Profiles supplies display data for the leaderboard.
type Profiles interface {
	Profile(ctx context.Context, uid string) (models.Profile, error)
}

// Notifier is a fire-and-forget sink. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, models.Notification) {}
