package users

import (
	"context"
	"time"

	"github.com/dkravets/backoffice/internal/server/models"
	"github.com/dkravets/backoffice/internal/server/roles"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetVerified(ctx context.Context, id string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateRole(ctx context.Context, id string, role roles.Role) error
}
