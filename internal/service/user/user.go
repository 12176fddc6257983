package user

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/repository"
)

// Avatars bigger than this are rejected before upload
const MaxAvatarSize = 5 << 20

var avatarExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Where avatar images are kept. Put returns public URL of the object
type AvatarStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

type UserService struct {
	userRepo repository.UserRepo

	// nil if avatar upload is not configured
	avatars AvatarStore
}

func NewService(userRepo repository.UserRepo, avatars AvatarStore) *UserService {
	return &UserService{
		userRepo: userRepo,
		avatars:  avatars,
	}
}

// Upload new avatar image and point user profile to it
// Image type is sniffed from content, declared content type is not trusted
func (s *UserService) UpdateAvatar(ctx context.Context, user *models.User, data []byte) (models.User, error) {
	if s.avatars == nil {
		return models.User{}, apperrors.ErrAvatarUnavailable
	}
	if len(data) == 0 || len(data) > MaxAvatarSize {
		return models.User{}, fmt.Errorf("%w: size must be up to %d bytes", apperrors.ErrInvalidAvatar, MaxAvatarSize)
	}

	contentType := http.DetectContentType(data)
	ext, ok := avatarExt[contentType]
	if !ok {
		return models.User{}, fmt.Errorf("%w: got %s", apperrors.ErrInvalidAvatar, contentType)
	}

	// Every upload gets new key so cached old images are never served
	key := fmt.Sprintf("avatars/%s/%s%s", user.ID, uuid.NewString(), ext)
	url, err := s.avatars.Put(ctx, key, contentType, data)
	if err != nil {
		return models.User{}, fmt.Errorf("can't upload avatar. Err: %w", err)
	}

	return s.userRepo.SetAvatar(ctx, user.ID, &url)
}
