package profile

import (
	"context"
	"errors"
	"time"

	"backend-localgems/internal/cache"
	"backend-localgems/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPfp      = "person"
	profileCacheTTL = 30 * time.Minute
)

var ErrNotFound = errors.New("user not found")

type Service struct {
	db  db.Querier
	rdb *redis.Client
}

func NewService(q db.Querier, rdb *redis.Client) *Service {
	return &Service{db: q, rdb: rdb}
}

func cacheKey(userID string) string {
	return "users:profile:" + userID
}

// Public returns the merged public profile for a user. Profiles are created
// lazily, so a missing user_profiles row falls back to defaults.
func (s *Service) Public(ctx context.Context, userID string) (Profile, error) {
	return cache.Fetch(ctx, s.rdb, cacheKey(userID), profileCacheTTL, func(ctx context.Context) (Profile, error) {
		return s.load(ctx, userID)
	})
}

func (s *Service) load(ctx context.Context, userID string) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT u.id, u.username, u.full_name, u.avatar_url, COALESCE(p.bio, ''), COALESCE(p.pfp, $2)
		FROM users u
		LEFT JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id = $1
	`, userID, defaultPfp)

	var p Profile
	err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarURL, &p.Bio, &p.Pfp)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) Me(ctx context.Context, userID string) (Me, error) {
	row := s.db.QueryRow(ctx, `
		SELECT u.id, u.username, u.full_name, u.avatar_url, COALESCE(p.bio, ''), COALESCE(p.pfp, $2),
		       u.email, u.created_at
		FROM users u
		LEFT JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id = $1
	`, userID, defaultPfp)

	var me Me
	err := row.Scan(&me.ID, &me.Username, &me.FullName, &me.AvatarURL, &me.Bio, &me.Pfp, &me.Email, &me.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Me{}, ErrNotFound
	}
	if err != nil {
		return Me{}, err
	}
	return me, nil
}

// Update applies the provided fields, creating the profile row on first
// write, and drops the cached projection. The merge happens in the upsert
// itself, so concurrent edits to different fields both land.
func (s *Service) Update(ctx context.Context, userID string, bio, pfp *string) (Profile, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists); err != nil {
		return Profile{}, err
	}
	if !exists {
		return Profile{}, ErrNotFound
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO user_profiles (user_id, bio, pfp, updated_at)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, $4), now())
		ON CONFLICT (user_id) DO UPDATE
		SET bio=COALESCE($2, user_profiles.bio),
		    pfp=COALESCE($3, user_profiles.pfp),
		    updated_at=now()
	`, userID, bio, pfp, defaultPfp)
	if err != nil {
		return Profile{}, err
	}

	cache.Invalidate(ctx, s.rdb, cacheKey(userID))
	return s.load(ctx, userID)
}
