package refreshtokens

import (
	"context"

	"github.com/dkravets/backoffice/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindForUpdate locks the token row for the duration of the enclosing
	// transaction, so concurrent rotations of the same token serialize.
	FindForUpdate(ctx context.Context, token string) (*models.RefreshToken, error)

	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
}
