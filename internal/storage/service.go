package storage

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/jwgillispie/sway/internal/db"
)

// Object kinds recorded in the upload audit trail.
const (
	KindSpotPhoto    = "spot_photo"
	KindReviewPhoto  = "review_photo"
	KindProfilePhoto = "profile_photo"
)

type Service struct {
	db       db.Querier
	uploader Uploader
}

func NewService(db db.Querier, uploader Uploader) *Service {
	return &Service{db: db, uploader: uploader}
}

// Save uploads the blob and records it in storage_objects. The audit row
// is best-effort: the blob is the deliverable, a failed insert only logs.
func (s *Service) Save(ctx context.Context, userID, kind, path string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}

	url, err := s.uploader.Upload(ctx, path, data, contentType)
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO storage_objects (id, user_id, url, kind)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, url, kind)
	if err != nil {
		log.Printf("storage object record failed for %s: %v", url, err)
	}
	return url, nil
}

func (s *Service) Remove(ctx context.Context, path string) error {
	return s.uploader.Delete(ctx, path)
}
