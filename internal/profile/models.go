package profile

import "time"

// Profile is the public projection: identity fields merged with the
// separately stored profile record at read time.
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	Bio       string `json:"bio"`
	Pfp       string `json:"pfp"`
}

// Me adds the private fields the owner may see.
type Me struct {
	Profile
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
