// Package forum reads the forum tables the reputation engine depends on.
package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/gamification"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

// Directory implements gamification.Forum and gamification.Profiles.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

var authorQueries = map[models.TargetType]string{
	models.TargetPost:  `SELECT COALESCE(author_id, '') FROM posts WHERE id = $1`,
	models.TargetReply: `SELECT COALESCE(author_id, '') FROM replies WHERE id = $1`,
}

func (d *Directory) AuthorOf(ctx context.Context, targetID string, t models.TargetType) (string, error) {
	q, ok := authorQueries[t]
	if !ok {
		return "", fmt.Errorf("unknown target type %q: %w", t, gamification.ErrValidation)
	}
	var author string
	err := d.db.QueryRowContext(ctx, q, targetID).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && author == "") {
		return "", fmt.Errorf("author of %s %s: %w", t, targetID, gamification.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("author lookup: %w", err)
	}
	return author, nil
}

func (d *Directory) IsHelpful(ctx context.Context, replyID string) (bool, error) {
	var helpful bool
	err := d.db.QueryRowContext(ctx,
		`SELECT is_helpful FROM replies WHERE id = $1`, replyID,
	).Scan(&helpful)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("reply %s: %w", replyID, gamification.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("helpful lookup: %w", err)
	}
	return helpful, nil
}

func (d *Directory) ImagePostCount(ctx context.Context, uid string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE author_id = $1 AND has_image`, uid,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count image posts: %w", err)
	}
	return n, nil
}

func (d *Directory) Profile(ctx context.Context, uid string) (models.Profile, error) {
	p := models.Profile{UID: uid}
	err := d.db.QueryRowContext(ctx,
		`SELECT name, photo_url FROM users WHERE id = $1`, uid,
	).Scan(&p.Name, &p.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("profile %s: %w", uid, gamification.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

var (
	_ gamification.Forum    = (*Directory)(nil)
	_ gamification.Profiles = (*Directory)(nil)
)
