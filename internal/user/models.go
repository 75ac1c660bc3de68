package user

import "time"

type User struct {
	ID            string    `json:"id"`
	SubjectID     string    `json:"subject_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	ProfilePhoto  *string   `json:"profile_photo"`
	Bio           *string   `json:"bio"`
	FavoriteSpots []string  `json:"favorite_spots"`
	CreatedSpots  []string  `json:"created_spots"`
	IsPremium     bool      `json:"is_premium"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProfilePatch carries the only two fields mutable through the profile
// endpoint.
type ProfilePatch struct {
	Username *string `json:"username"`
	Bio      *string `json:"bio"`
}
