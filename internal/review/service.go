package review

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jwgillispie/sway/internal/cache"
	"github.com/jwgillispie/sway/internal/db"
	"github.com/jwgillispie/sway/internal/storage"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrSpotNotFound    = errors.New("spot not found")
	ErrForbidden       = errors.New("not the author of this review")
	ErrAlreadyReviewed = errors.New("you have already reviewed this spot")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

const uniqueViolation = "23505"

const reviewColumns = `id, spot_id, user_id, username,
		       view_rating, comfort_rating, accessibility_rating, privacy_rating, overall_rating,
		       comment, photos, created_at, updated_at`

type Service struct {
	db    db.Querier
	store *storage.Service
	cache *cache.Cache
}

func NewService(db db.Querier, store *storage.Service, spotCache *cache.Cache) *Service {
	return &Service{db: db, store: store, cache: spotCache}
}

func (s *Service) Create(ctx context.Context, spotID string, in CreateInput, photos []PhotoUpload, authorID, authorName string) (Review, error) {
	var spotExists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM spots WHERE id=$1)`, spotID).Scan(&spotExists); err != nil {
		return Review{}, err
	}
	if !spotExists {
		return Review{}, ErrSpotNotFound
	}

	rating := Rating{View: in.View, Comfort: in.Comfort, Accessibility: in.Accessibility, Privacy: in.Privacy}
	if err := validateAxes(rating); err != nil {
		return Review{}, err
	}
	rating.Overall = overall(rating)

	// Friendly pre-check; the unique index on (spot_id, user_id) is what
	// actually closes the duplicate-insert race.
	var reviewed bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reviews WHERE spot_id=$1 AND user_id=$2)`,
		spotID, authorID).Scan(&reviewed); err != nil {
		return Review{}, err
	}
	if reviewed {
		return Review{}, ErrAlreadyReviewed
	}

	// Photos go up before anything is persisted; a failed upload aborts
	// the whole creation.
	photoURLs := make([]string, 0, len(photos))
	for i, p := range photos {
		path := fmt.Sprintf("review_photos/%s/%s/%s-%d", spotID, authorID, uuid.NewString(), i)
		url, err := s.store.Save(ctx, authorID, storage.KindReviewPhoto, path, p.Data, p.ContentType)
		if err != nil {
			return Review{}, err
		}
		photoURLs = append(photoURLs, url)
	}

	rev := Review{
		ID:       uuid.NewString(),
		SpotID:   spotID,
		UserID:   authorID,
		Username: authorName,
		Rating:   rating,
		Comment:  in.Comment,
		Photos:   photoURLs,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO reviews (id, spot_id, user_id, username,
		                     view_rating, comfort_rating, accessibility_rating, privacy_rating, overall_rating,
		                     comment, photos)
		VALUES ($1,$2,$3,$4, $5,$6,$7,$8,$9, $10,$11)
		RETURNING created_at, updated_at
	`, rev.ID, rev.SpotID, rev.UserID, rev.Username,
		rating.View, rating.Comfort, rating.Accessibility, rating.Privacy, rating.Overall,
		rev.Comment, rev.Photos)
	if err := row.Scan(&rev.CreatedAt, &rev.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Review{}, ErrAlreadyReviewed
		}
		return Review{}, err
	}

	s.recomputeSpotRating(ctx, spotID)
	return rev, nil
}

func (s *Service) Get(ctx context.Context, id string) (Review, error) {
	return s.fetch(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, patch Patch, requesterID string) (Review, error) {
	rev, err := s.fetch(ctx, id)
	if err != nil {
		return Review{}, err
	}
	if rev.UserID != requesterID {
		return Review{}, ErrForbidden
	}

	if patch.Rating != nil {
		if patch.Rating.View != nil {
			rev.Rating.View = *patch.Rating.View
		}
		if patch.Rating.Comfort != nil {
			rev.Rating.Comfort = *patch.Rating.Comfort
		}
		if patch.Rating.Accessibility != nil {
			rev.Rating.Accessibility = *patch.Rating.Accessibility
		}
		if patch.Rating.Privacy != nil {
			rev.Rating.Privacy = *patch.Rating.Privacy
		}
		if err := validateAxes(rev.Rating); err != nil {
			return Review{}, err
		}
	}
	rev.Rating.Overall = overall(rev.Rating)
	if patch.Comment != nil {
		rev.Comment = patch.Comment
	}

	row := s.db.QueryRow(ctx, `
		UPDATE reviews
		SET view_rating=$2, comfort_rating=$3, accessibility_rating=$4, privacy_rating=$5,
		    overall_rating=$6, comment=$7, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, rev.ID, rev.Rating.View, rev.Rating.Comfort, rev.Rating.Accessibility, rev.Rating.Privacy,
		rev.Rating.Overall, rev.Comment)
	if err := row.Scan(&rev.UpdatedAt); err != nil {
		return Review{}, err
	}

	s.recomputeSpotRating(ctx, rev.SpotID)
	return rev, nil
}

func (s *Service) Delete(ctx context.Context, id, requesterID string) error {
	rev, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if rev.UserID != requesterID {
		return ErrForbidden
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM reviews WHERE id=$1`, id); err != nil {
		return err
	}

	s.recomputeSpotRating(ctx, rev.SpotID)
	return nil
}

func (s *Service) AddPhoto(ctx context.Context, id string, data []byte, contentType, requesterID string) (string, error) {
	rev, err := s.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	if rev.UserID != requesterID {
		return "", ErrForbidden
	}

	path := fmt.Sprintf("review_photos/%s/%s/%s", rev.SpotID, requesterID, uuid.NewString())
	url, err := s.store.Save(ctx, requesterID, storage.KindReviewPhoto, path, data, contentType)
	if err != nil {
		return "", err
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE reviews SET photos = array_append(photos, $2), updated_at = now() WHERE id=$1
	`, id, url); err != nil {
		return "", err
	}
	return url, nil
}

// recomputeSpotRating republishes the spot aggregate as a full mean over
// all current reviews. Errors are logged, not returned: the review write
// already happened, and the next mutation on the spot recomputes again.
func (s *Service) recomputeSpotRating(ctx context.Context, spotID string) {
	if _, err := s.db.Exec(ctx, `
		UPDATE spots
		SET avg_rating = COALESCE((SELECT AVG(overall_rating) FROM reviews WHERE spot_id=$1), 0),
		    updated_at = now()
		WHERE id=$1
	`, spotID); err != nil {
		log.Printf("avg_rating recompute failed for spot %s: %v", spotID, err)
	}
	s.cache.Del(ctx, "spot:"+spotID)
}

func (s *Service) fetch(ctx context.Context, id string) (Review, error) {
	row := s.db.QueryRow(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id=$1", id)
	var rev Review
	err := row.Scan(&rev.ID, &rev.SpotID, &rev.UserID, &rev.Username,
		&rev.Rating.View, &rev.Rating.Comfort, &rev.Rating.Accessibility, &rev.Rating.Privacy, &rev.Rating.Overall,
		&rev.Comment, &rev.Photos, &rev.CreatedAt, &rev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	if err != nil {
		return Review{}, err
	}
	return rev, nil
}

func overall(r Rating) float64 {
	return (r.View + r.Comfort + r.Accessibility + r.Privacy) / 4
}

func validateAxes(r Rating) error {
	for _, v := range []float64{r.View, r.Comfort, r.Accessibility, r.Privacy} {
		if v < 1 || v > 5 {
			return ErrInvalidRating
		}
	}
	return nil
}
