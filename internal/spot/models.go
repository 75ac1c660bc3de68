package spot

import "time"

// Tree types a spot may be tagged with. "structure" covers non-tree
// anchors (posts, pergolas).
const (
	TreePine      = "pine"
	TreeOlive     = "olive"
	TreePalm      = "palm"
	TreeCarob     = "carob"
	TreeCypress   = "cypress"
	TreeOther     = "other"
	TreeStructure = "structure"
)

var validTreeTypes = map[string]bool{
	TreePine:      true,
	TreeOlive:     true,
	TreePalm:      true,
	TreeCarob:     true,
	TreeCypress:   true,
	TreeOther:     true,
	TreeStructure: true,
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Amenities struct {
	Restrooms   bool `json:"restrooms"`
	WaterSource bool `json:"water_source"`
	Shade       bool `json:"shade"`
	Parking     bool `json:"parking"`
	FoodNearby  bool `json:"food_nearby"`
	Swimming    bool `json:"swimming"`
}

type Spot struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Description          *string     `json:"description"`
	Coordinates          Coordinates `json:"coordinates"`
	TreeTypes            []string    `json:"tree_types"`
	DistanceBetweenTrees *float64    `json:"distance_between_trees"`
	Amenities            Amenities   `json:"amenities"`
	Photos               []string    `json:"photos"`
	CreatorID            string      `json:"creator_id"`
	IsPrivate            bool        `json:"is_private"`
	IsVerified           bool        `json:"is_verified"`
	AvgRating            float64     `json:"avg_rating"`
	ReviewIDs            []string    `json:"reviews,omitempty"`
	DistanceM            *float64    `json:"distance_m,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Filter fields are conjunctive. Lat and Lng must be set together for the
// radius filter and nearest-first ordering to apply.
type Filter struct {
	Lat       *float64
	Lng       *float64
	RadiusM   float64
	TreeType  string
	MinRating *float64
	Amenities []string
	Limit     int
}

type CreateInput struct {
	Name                 string
	Description          *string
	Latitude             float64
	Longitude            float64
	TreeTypes            []string
	DistanceBetweenTrees *float64
	Amenities            Amenities
	IsPrivate            bool
}

// Patch carries the creator-editable fields. Nil means "leave unchanged";
// nested coordinates and amenities merge field by field.
type Patch struct {
	Name                 *string          `json:"name"`
	Description          *string          `json:"description"`
	Coordinates          *CoordinatesPatch `json:"coordinates"`
	TreeTypes            *[]string        `json:"tree_types"`
	DistanceBetweenTrees *float64         `json:"distance_between_trees"`
	Amenities            *AmenitiesPatch  `json:"amenities"`
	IsPrivate            *bool            `json:"is_private"`
}

type CoordinatesPatch struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type AmenitiesPatch struct {
	Restrooms   *bool `json:"restrooms"`
	WaterSource *bool `json:"water_source"`
	Shade       *bool `json:"shade"`
	Parking     *bool `json:"parking"`
	FoodNearby  *bool `json:"food_nearby"`
	Swimming    *bool `json:"swimming"`
}

type PhotoUpload struct {
	Data        []byte
	ContentType string
}
