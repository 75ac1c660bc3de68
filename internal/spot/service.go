package spot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jwgillispie/sway/internal/cache"
	"github.com/jwgillispie/sway/internal/db"
	"github.com/jwgillispie/sway/internal/shared/geo"
	"github.com/jwgillispie/sway/internal/storage"
)

var (
	ErrNotFound           = errors.New("spot not found")
	ErrForbidden          = errors.New("not the creator of this spot")
	ErrInvalidTreeType    = errors.New("invalid tree type")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrInvalidDistance    = errors.New("distance between trees must be >= 0")
	ErrInvalidAmenity     = errors.New("unknown amenity")
)

const (
	defaultRadiusM = 5000.0
	defaultLimit   = 20
	maxLimit       = 100
)

// amenityColumns whitelists filterable amenity flags; filter values are
// mapped to columns, never interpolated from user input.
var amenityColumns = map[string]string{
	"restrooms":    "restrooms",
	"water_source": "water_source",
	"shade":        "shade",
	"parking":      "parking",
	"food_nearby":  "food_nearby",
	"swimming":     "swimming",
}

const spotColumns = `id, name, description, ST_Y(location::geometry), ST_X(location::geometry),
		       tree_types, distance_between_trees,
		       restrooms, water_source, shade, parking, food_nearby, swimming,
		       photos, creator_id, is_private, is_verified, avg_rating, created_at, updated_at`

type Service struct {
	db    db.Querier
	store *storage.Service
	cache *cache.Cache
}

func NewService(db db.Querier, store *storage.Service, spotCache *cache.Cache) *Service {
	return &Service{db: db, store: store, cache: spotCache}
}

func (s *Service) Create(ctx context.Context, in CreateInput, photos []PhotoUpload, creatorID string) (Spot, error) {
	if !geo.ValidLatLng(in.Latitude, in.Longitude) {
		return Spot{}, ErrInvalidCoordinates
	}
	if err := validateTreeTypes(in.TreeTypes); err != nil {
		return Spot{}, err
	}
	if in.DistanceBetweenTrees != nil && *in.DistanceBetweenTrees < 0 {
		return Spot{}, ErrInvalidDistance
	}

	// Any failed upload aborts creation before a spot exists.
	photoURLs := make([]string, 0, len(photos))
	for i, p := range photos {
		path := fmt.Sprintf("spot_photos/%s/%s-%d", creatorID, uuid.NewString(), i)
		url, err := s.store.Save(ctx, creatorID, storage.KindSpotPhoto, path, p.Data, p.ContentType)
		if err != nil {
			return Spot{}, err
		}
		photoURLs = append(photoURLs, url)
	}

	sp := Spot{
		ID:                   uuid.NewString(),
		Name:                 in.Name,
		Description:          in.Description,
		Coordinates:          Coordinates{Latitude: in.Latitude, Longitude: in.Longitude},
		TreeTypes:            in.TreeTypes,
		DistanceBetweenTrees: in.DistanceBetweenTrees,
		Amenities:            in.Amenities,
		Photos:               photoURLs,
		CreatorID:            creatorID,
		IsPrivate:            in.IsPrivate,
	}
	if sp.TreeTypes == nil {
		sp.TreeTypes = []string{}
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO spots (id, name, description, location, tree_types, distance_between_trees,
		                   restrooms, water_source, shade, parking, food_nearby, swimming,
		                   photos, creator_id, is_private)
		VALUES ($1,$2,$3, ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography, $6,$7,
		        $8,$9,$10,$11,$12,$13, $14,$15,$16)
		RETURNING created_at, updated_at
	`, sp.ID, sp.Name, sp.Description, in.Longitude, in.Latitude, sp.TreeTypes, sp.DistanceBetweenTrees,
		sp.Amenities.Restrooms, sp.Amenities.WaterSource, sp.Amenities.Shade,
		sp.Amenities.Parking, sp.Amenities.FoodNearby, sp.Amenities.Swimming,
		sp.Photos, sp.CreatorID, sp.IsPrivate)
	if err := row.Scan(&sp.CreatedAt, &sp.UpdatedAt); err != nil {
		return Spot{}, err
	}

	// Secondary index; the spot is the system of record, so a failed
	// append leaves the spot valid.
	if _, err := s.db.Exec(ctx, `
		UPDATE users SET created_spots = array_append(created_spots, $2), updated_at = now()
		WHERE id = $1 AND NOT ($2 = ANY(created_spots))
	`, creatorID, sp.ID); err != nil {
		log.Printf("created_spots append failed for user %s: %v", creatorID, err)
	}
	return sp, nil
}

func (s *Service) Get(ctx context.Context, id string) (Spot, error) {
	if raw, ok := s.cache.Get(ctx, cacheKey(id)); ok {
		var sp Spot
		if err := json.Unmarshal(raw, &sp); err == nil {
			return sp, nil
		}
	}

	sp, err := s.fetch(ctx, id)
	if err != nil {
		return Spot{}, err
	}
	sp.ReviewIDs, err = s.reviewIDs(ctx, id)
	if err != nil {
		return Spot{}, err
	}

	if raw, err := json.Marshal(sp); err == nil {
		s.cache.Set(ctx, cacheKey(id), raw)
	}
	return sp, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Spot, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var (
		conds   []string
		args    []any
		orderBy = "created_at DESC"
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	hasCenter := f.Lat != nil && f.Lng != nil
	if hasCenter {
		radius := f.RadiusM
		if radius <= 0 {
			radius = defaultRadiusM
		}
		lngP, latP := arg(*f.Lng), arg(*f.Lat)
		center := fmt.Sprintf("ST_SetSRID(ST_MakePoint(%s,%s), 4326)::geography", lngP, latP)
		conds = append(conds, fmt.Sprintf("ST_DWithin(location, %s, %s)", center, arg(radius)))
		// Nearest-first ordering is part of the contract when a center
		// is given.
		orderBy = fmt.Sprintf("ST_Distance(location, %s) ASC", center)
	}
	if f.TreeType != "" {
		if !validTreeTypes[f.TreeType] {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTreeType, f.TreeType)
		}
		conds = append(conds, fmt.Sprintf("%s = ANY(tree_types)", arg(f.TreeType)))
	}
	if f.MinRating != nil {
		conds = append(conds, fmt.Sprintf("avg_rating >= %s", arg(*f.MinRating)))
	}
	for _, a := range f.Amenities {
		col, ok := amenityColumns[a]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAmenity, a)
		}
		conds = append(conds, col+" = TRUE")
	}

	query := "SELECT " + spotColumns + " FROM spots"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderBy + " LIMIT " + arg(limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spots []Spot
	for rows.Next() {
		sp, err := scanSpot(rows)
		if err != nil {
			return nil, err
		}
		if hasCenter {
			d := geo.HaversineM(*f.Lat, *f.Lng, sp.Coordinates.Latitude, sp.Coordinates.Longitude)
			sp.DistanceM = &d
		}
		spots = append(spots, sp)
	}
	return spots, rows.Err()
}

func (s *Service) Update(ctx context.Context, id string, patch Patch, requesterID string) (Spot, error) {
	sp, err := s.fetch(ctx, id)
	if err != nil {
		return Spot{}, err
	}
	if sp.CreatorID != requesterID {
		return Spot{}, ErrForbidden
	}

	applyPatch(&sp, patch)

	if !geo.ValidLatLng(sp.Coordinates.Latitude, sp.Coordinates.Longitude) {
		return Spot{}, ErrInvalidCoordinates
	}
	if err := validateTreeTypes(sp.TreeTypes); err != nil {
		return Spot{}, err
	}
	if sp.DistanceBetweenTrees != nil && *sp.DistanceBetweenTrees < 0 {
		return Spot{}, ErrInvalidDistance
	}

	row := s.db.QueryRow(ctx, `
		UPDATE spots
		SET name=$2, description=$3,
		    location=ST_SetSRID(ST_MakePoint($4,$5), 4326)::geography,
		    tree_types=$6, distance_between_trees=$7,
		    restrooms=$8, water_source=$9, shade=$10, parking=$11, food_nearby=$12, swimming=$13,
		    is_private=$14, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, sp.ID, sp.Name, sp.Description, sp.Coordinates.Longitude, sp.Coordinates.Latitude,
		sp.TreeTypes, sp.DistanceBetweenTrees,
		sp.Amenities.Restrooms, sp.Amenities.WaterSource, sp.Amenities.Shade,
		sp.Amenities.Parking, sp.Amenities.FoodNearby, sp.Amenities.Swimming,
		sp.IsPrivate)
	if err := row.Scan(&sp.UpdatedAt); err != nil {
		return Spot{}, err
	}

	s.cache.Del(ctx, cacheKey(id))
	return sp, nil
}

func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	sp, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if sp.CreatorID != requesterID {
		return ErrForbidden
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM spots WHERE id=$1`, id); err != nil {
		return err
	}

	// Best effort: a missing entry is not an error.
	if _, err := s.db.Exec(ctx, `
		UPDATE users SET created_spots = array_remove(created_spots, $2), updated_at = now()
		WHERE id = $1
	`, sp.CreatorID, id); err != nil {
		log.Printf("created_spots remove failed for user %s: %v", sp.CreatorID, err)
	}

	s.cache.Del(ctx, cacheKey(id))
	return nil
}

func (s *Service) AddPhoto(ctx context.Context, id string, data []byte, contentType, requesterID string) (string, error) {
	sp, err := s.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	if sp.CreatorID != requesterID {
		return "", ErrForbidden
	}

	path := fmt.Sprintf("spot_photos/%s/%s", requesterID, uuid.NewString())
	url, err := s.store.Save(ctx, requesterID, storage.KindSpotPhoto, path, data, contentType)
	if err != nil {
		return "", err
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE spots SET photos = array_append(photos, $2), updated_at = now() WHERE id=$1
	`, id, url); err != nil {
		return "", err
	}

	s.cache.Del(ctx, cacheKey(id))
	return url, nil
}

// ResolveIDs returns the spots for the given ids in the given order,
// silently skipping ids whose spot no longer exists.
func (s *Service) ResolveIDs(ctx context.Context, ids []string) ([]Spot, error) {
	if len(ids) == 0 {
		return []Spot{}, nil
	}

	rows, err := s.db.Query(ctx, "SELECT "+spotColumns+" FROM spots WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[string]Spot{}
	for rows.Next() {
		sp, err := scanSpot(rows)
		if err != nil {
			return nil, err
		}
		byID[sp.ID] = sp
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	spots := make([]Spot, 0, len(byID))
	for _, id := range ids {
		if sp, ok := byID[id]; ok {
			spots = append(spots, sp)
		}
	}
	return spots, nil
}

func (s *Service) fetch(ctx context.Context, id string) (Spot, error) {
	row := s.db.QueryRow(ctx, "SELECT "+spotColumns+" FROM spots WHERE id=$1", id)
	sp, err := scanSpot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Spot{}, ErrNotFound
	}
	if err != nil {
		return Spot{}, err
	}
	return sp, nil
}

func (s *Service) reviewIDs(ctx context.Context, spotID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM reviews WHERE spot_id=$1 ORDER BY created_at`, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpot(row rowScanner) (Spot, error) {
	var sp Spot
	err := row.Scan(&sp.ID, &sp.Name, &sp.Description,
		&sp.Coordinates.Latitude, &sp.Coordinates.Longitude,
		&sp.TreeTypes, &sp.DistanceBetweenTrees,
		&sp.Amenities.Restrooms, &sp.Amenities.WaterSource, &sp.Amenities.Shade,
		&sp.Amenities.Parking, &sp.Amenities.FoodNearby, &sp.Amenities.Swimming,
		&sp.Photos, &sp.CreatorID, &sp.IsPrivate, &sp.IsVerified, &sp.AvgRating,
		&sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		return Spot{}, err
	}
	return sp, nil
}

func validateTreeTypes(treeTypes []string) error {
	for _, tt := range treeTypes {
		if !validTreeTypes[tt] {
			return fmt.Errorf("%w: %s", ErrInvalidTreeType, tt)
		}
	}
	return nil
}

func applyPatch(sp *Spot, patch Patch) {
	if patch.Name != nil {
		sp.Name = *patch.Name
	}
	if patch.Description != nil {
		sp.Description = patch.Description
	}
	if patch.Coordinates != nil {
		if patch.Coordinates.Latitude != nil {
			sp.Coordinates.Latitude = *patch.Coordinates.Latitude
		}
		if patch.Coordinates.Longitude != nil {
			sp.Coordinates.Longitude = *patch.Coordinates.Longitude
		}
	}
	if patch.TreeTypes != nil {
		sp.TreeTypes = *patch.TreeTypes
	}
	if patch.DistanceBetweenTrees != nil {
		sp.DistanceBetweenTrees = patch.DistanceBetweenTrees
	}
	if patch.Amenities != nil {
		if patch.Amenities.Restrooms != nil {
			sp.Amenities.Restrooms = *patch.Amenities.Restrooms
		}
		if patch.Amenities.WaterSource != nil {
			sp.Amenities.WaterSource = *patch.Amenities.WaterSource
		}
		if patch.Amenities.Shade != nil {
			sp.Amenities.Shade = *patch.Amenities.Shade
		}
		if patch.Amenities.Parking != nil {
			sp.Amenities.Parking = *patch.Amenities.Parking
		}
		if patch.Amenities.FoodNearby != nil {
			sp.Amenities.FoodNearby = *patch.Amenities.FoodNearby
		}
		if patch.Amenities.Swimming != nil {
			sp.Amenities.Swimming = *patch.Amenities.Swimming
		}
	}
	if patch.IsPrivate != nil {
		sp.IsPrivate = *patch.IsPrivate
	}
}

func cacheKey(id string) string {
	return "spot:" + id
}
