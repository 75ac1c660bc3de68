package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jwgillispie/sway/internal/db"
	"github.com/jwgillispie/sway/internal/spot"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrSpotNotFound = errors.New("spot not found")
)

const userColumns = `id, subject_id, username, email, profile_photo, bio,
		       favorite_spots, created_spots, is_premium, created_at, updated_at`

type Service struct {
	db    db.Querier
	spots *spot.Service
}

func NewService(db db.Querier, spots *spot.Service) *Service {
	return &Service{db: db, spots: spots}
}

// Resolve maps an identity-provider subject to a local user record,
// provisioning one on first sight. Three terminal outcomes: found,
// created, or raced-then-found — the unique index on subject_id makes
// the losing inserter fall through to the re-fetch.
func (s *Service) Resolve(ctx context.Context, subjectID, displayName, email, photoURL string) (User, error) {
	u, err := s.getBySubject(ctx, subjectID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	if displayName == "" {
		displayName = synthesizeUsername(subjectID)
	}
	var photo *string
	if photoURL != "" {
		photo = &photoURL
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO users (id, subject_id, username, email, profile_photo)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (subject_id) DO NOTHING
	`, uuid.NewString(), subjectID, displayName, email, photo); err != nil {
		return User{}, err
	}

	// Whether this call inserted or lost the race, the record exists now.
	return s.getBySubject(ctx, subjectID)
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.scanOne(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id=$1", id))
}

func (s *Service) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (User, error) {
	return s.scanOne(s.db.QueryRow(ctx, `
		UPDATE users
		SET username = COALESCE($2, username), bio = COALESCE($3, bio), updated_at = now()
		WHERE id=$1
		RETURNING `+userColumns,
		id, patch.Username, patch.Bio))
}

func (s *Service) SetProfilePhoto(ctx context.Context, id, url string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET profile_photo=$2, updated_at=now() WHERE id=$1
	`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFavorite is idempotent: favoriting an already-favorited spot is a
// no-op success.
func (s *Service) AddFavorite(ctx context.Context, userID, spotID string) error {
	var spotExists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM spots WHERE id=$1)`, spotID).Scan(&spotExists); err != nil {
		return err
	}
	if !spotExists {
		return ErrSpotNotFound
	}

	_, err := s.db.Exec(ctx, `
		UPDATE users SET favorite_spots = array_append(favorite_spots, $2), updated_at = now()
		WHERE id = $1 AND NOT ($2 = ANY(favorite_spots))
	`, userID, spotID)
	return err
}

// RemoveFavorite is idempotent: removing an absent favorite is a no-op
// success.
func (s *Service) RemoveFavorite(ctx context.Context, userID, spotID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET favorite_spots = array_remove(favorite_spots, $2), updated_at = now()
		WHERE id = $1
	`, userID, spotID)
	return err
}

// ListFavorites resolves the stored favorite ids; ids whose spot has been
// deleted are silently skipped.
func (s *Service) ListFavorites(ctx context.Context, userID string) ([]spot.Spot, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.spots.ResolveIDs(ctx, u.FavoriteSpots)
}

// ListCreated has the same dangling-reference tolerance as ListFavorites.
func (s *Service) ListCreated(ctx context.Context, userID string) ([]spot.Spot, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.spots.ResolveIDs(ctx, u.CreatedSpots)
}

func (s *Service) getBySubject(ctx context.Context, subjectID string) (User, error) {
	return s.scanOne(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE subject_id=$1", subjectID))
}

func (s *Service) scanOne(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.SubjectID, &u.Username, &u.Email, &u.ProfilePhoto, &u.Bio,
		&u.FavoriteSpots, &u.CreatedSpots, &u.IsPremium, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func synthesizeUsername(subjectID string) string {
	if len(subjectID) > 8 {
		subjectID = subjectID[:8]
	}
	return "hammocker_" + subjectID
}
