package review

import "time"

// Rating holds the four input axes plus the derived overall score.
// Overall is always recomputed from the raw axes, never carried forward.
type Rating struct {
	View          float64 `json:"view"`
	Comfort       float64 `json:"comfort"`
	Accessibility float64 `json:"accessibility"`
	Privacy       float64 `json:"privacy"`
	Overall       float64 `json:"overall"`
}

type Review struct {
	ID        string    `json:"id"`
	SpotID    string    `json:"spot_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Rating    Rating    `json:"rating"`
	Comment   *string   `json:"comment"`
	Photos    []string  `json:"photos"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateInput struct {
	View          float64
	Comfort       float64
	Accessibility float64
	Privacy       float64
	Comment       *string
}

type Patch struct {
	Rating  *RatingPatch `json:"rating"`
	Comment *string      `json:"comment"`
}

type RatingPatch struct {
	View          *float64 `json:"view"`
	Comfort       *float64 `json:"comfort"`
	Accessibility *float64 `json:"accessibility"`
	Privacy       *float64 `json:"privacy"`
}

type PhotoUpload struct {
	Data        []byte
	ContentType string
}
