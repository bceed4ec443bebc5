package post

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"backend-localgems/internal/cache"
	"backend-localgems/internal/config"
	"backend-localgems/internal/db"
	"backend-localgems/internal/geo"
	"backend-localgems/internal/image"
	"backend-localgems/internal/storage"
	"backend-localgems/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const maxNearbyResults = 50

// The bounding box admits corner points outside the radius, so with the
// exact filter on the query over-fetches and truncates after filtering;
// otherwise an in-radius post could be displaced by a corner false positive.
const nearbyOverfetch = 2

const nearbyKeyPrefix = "posts:nearby:"

var (
	ErrInvalidCoordinates = errors.New("invalid latitude or longitude")
	ErrNotFound           = errors.New("post not found")
)

type Service struct {
	db     db.Querier
	rdb    *redis.Client
	images storage.ImageStore
	hub    *stream.Hub
	log    *zap.Logger

	maxRadiusM  float64
	cacheTTL    time.Duration
	exactFilter bool
}

func NewService(q db.Querier, rdb *redis.Client, images storage.ImageStore, hub *stream.Hub, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:          q,
		rdb:         rdb,
		images:      images,
		hub:         hub,
		log:         log,
		maxRadiusM:  cfg.NearbyMaxRadiusM,
		cacheTTL:    time.Duration(cfg.NearbyCacheTTLS) * time.Second,
		exactFilter: cfg.NearbyExactFilter,
	}
}

// Create processes the uploaded photo, stores the full image and a thumbnail,
// and inserts the post. New posts are announced on the stream hub but do not
// invalidate cached nearby results; those age out with the TTL.
func (s *Service) Create(ctx context.Context, userID string, photo []byte, filename string, lat, lng float64, description string) (Post, error) {
	if !geo.Valid(lat, lng) {
		return Post{}, ErrInvalidCoordinates
	}

	processed, err := image.Process(photo)
	if err != nil {
		return Post{}, err
	}

	imageURL, err := s.images.Put(ctx, storage.ObjectKey("img", filename), "image/jpeg", processed.Full)
	if err != nil {
		s.log.Error("upload image", zap.Error(err))
		return Post{}, err
	}
	thumbURL, err := s.images.Put(ctx, storage.ObjectKey("thumb", filename), "image/jpeg", processed.Thumb)
	if err != nil {
		s.log.Error("upload thumbnail", zap.Error(err))
		return Post{}, err
	}

	p := Post{
		ID:          uuid.NewString(),
		Lat:         lat,
		Lng:         lng,
		Description: description,
		ImageURL:    imageURL,
		ThumbURL:    thumbURL,
		CreatedBy:   userID,
		TakenAt:     processed.TakenAt,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO posts (id, lat, lng, description, image_url, thumb_url, created_by, taken_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, p.ID, p.Lat, p.Lng, p.Description, p.ImageURL, p.ThumbURL, p.CreatedBy, p.TakenAt)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return Post{}, err
	}

	s.announce(p)
	return p, nil
}

func (s *Service) announce(p Post) {
	if s.hub == nil {
		return
	}
	gem := Gem{
		ID:          p.ID,
		Lat:         p.Lat,
		Lng:         p.Lng,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		ThumbURL:    p.ThumbURL,
		CreatedBy:   p.CreatedBy,
		TakenAt:     p.TakenAt,
		CreatedAt:   p.CreatedAt,
	}
	payload, err := json.Marshal(gem)
	if err != nil {
		return
	}
	s.hub.Broadcast(geo.CellKey(p.Lat, p.Lng), payload)
}

// Get returns one post with its like count and the viewer's like state.
func (s *Service) Get(ctx context.Context, id, viewerID string) (Detail, error) {
	row := s.db.QueryRow(ctx, `
		SELECT p.id, p.lat, p.lng, p.description, p.image_url, p.thumb_url, p.created_by, p.taken_at, p.created_at,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id),
		       EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $2)
		FROM posts p WHERE p.id = $1
	`, id, viewerID)

	var d Detail
	err := row.Scan(&d.ID, &d.Lat, &d.Lng, &d.Description, &d.ImageURL, &d.ThumbURL,
		&d.CreatedBy, &d.TakenAt, &d.CreatedAt, &d.LikeCount, &d.IsLiked)
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, ErrNotFound
	}
	if err != nil {
		return Detail{}, err
	}
	return d, nil
}

// ToggleLike flips the caller's like on a post. The flip is atomic at the
// store: the insert and delete race cleanly under concurrent likes, so rapid
// double toggles net out instead of double counting.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (likes int, isLiked bool, err error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id=$1)`, postID).Scan(&exists); err != nil {
		return 0, false, err
	}
	if !exists {
		return 0, false, ErrNotFound
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO post_likes (post_id, user_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, postID, userID)
	if err != nil {
		return 0, false, err
	}

	if tag.RowsAffected() == 1 {
		isLiked = true
	} else {
		if _, err := s.db.Exec(ctx, `DELETE FROM post_likes WHERE post_id=$1 AND user_id=$2`, postID, userID); err != nil {
			return 0, false, err
		}
	}

	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id=$1`, postID).Scan(&likes); err != nil {
		return 0, false, err
	}
	return likes, isLiked, nil
}

// Nearby returns gems within radiusM of (lat, lng), newest first, capped at
// 50. Answers are memoized per ~111m coordinate cell; requests rounding to
// the same cell share one cached result until it expires.
func (s *Service) Nearby(ctx context.Context, lat, lng, radiusM float64) ([]Gem, error) {
	if !geo.Valid(lat, lng) {
		return nil, ErrInvalidCoordinates
	}
	if radiusM <= 0 || radiusM > s.maxRadiusM {
		radiusM = s.maxRadiusM
	}

	key := nearbyKeyPrefix + geo.CellKey(lat, lng)
	return cache.Fetch(ctx, s.rdb, key, s.cacheTTL, func(ctx context.Context) ([]Gem, error) {
		return s.queryNearby(ctx, lat, lng, radiusM)
	})
}

func (s *Service) queryNearby(ctx context.Context, lat, lng, radiusM float64) ([]Gem, error) {
	limit := maxNearbyResults
	if s.exactFilter {
		limit = maxNearbyResults * nearbyOverfetch
	}

	box := geo.BoundingBox(lat, lng, radiusM)
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.lat, p.lng, p.description, p.image_url, p.thumb_url, p.created_by, p.taken_at, p.created_at,
		       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id)
		FROM posts p
		WHERE p.lat BETWEEN $1 AND $2 AND p.lng BETWEEN $3 AND $4
		ORDER BY p.created_at DESC
		LIMIT $5
	`, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gems := []Gem{}
	for rows.Next() {
		var g Gem
		if err := rows.Scan(&g.ID, &g.Lat, &g.Lng, &g.Description, &g.ImageURL, &g.ThumbURL,
			&g.CreatedBy, &g.TakenAt, &g.CreatedAt, &g.LikeCount); err != nil {
			return nil, err
		}
		if s.exactFilter && geo.HaversineM(lat, lng, g.Lat, g.Lng) > radiusM {
			continue
		}
		gems = append(gems, g)
	}
	if len(gems) > maxNearbyResults {
		gems = gems[:maxNearbyResults]
	}
	return gems, rows.Err()
}
