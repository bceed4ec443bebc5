package post

import "time"

type Post struct {
	ID          string     `json:"id"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	ThumbURL    string     `json:"thumb_url"`
	CreatedBy   string     `json:"created_by"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Gem is the projection served by nearby queries and stream broadcasts.
type Gem struct {
	ID          string     `json:"id"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	ThumbURL    string     `json:"thumb_url"`
	LikeCount   int        `json:"like_count"`
	CreatedBy   string     `json:"created_by"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Detail is a Gem plus the caller's like state.
type Detail struct {
	Gem
	IsLiked bool `json:"is_liked"`
}
