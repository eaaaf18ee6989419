package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/logging"
	"github.com/dkravets/backoffice/internal/server/audit"
	"github.com/dkravets/backoffice/internal/server/config"
	"github.com/dkravets/backoffice/internal/server/mail"
	"github.com/dkravets/backoffice/internal/server/models"
	"github.com/dkravets/backoffice/internal/server/password"
	"github.com/dkravets/backoffice/internal/server/repositories/repomanager"
	"github.com/dkravets/backoffice/internal/server/roles"
	"github.com/dkravets/backoffice/internal/server/secrets"
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// VerificationService creates accounts and flips them from unverified to
// verified via one-time emailed codes.
type VerificationService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   secrets.Store
	policy  *password.Policy
	mailer  mail.Dispatcher
	auditor audit.Emitter
	log     logging.Logger
	codeTTL time.Duration
}

// NewVerificationService wires a VerificationService from its collaborators.
func NewVerificationService(
	db *sql.DB,
	repos repomanager.RepositoryManager,
	store secrets.Store,
	policy *password.Policy,
	mailer mail.Dispatcher,
	auditor audit.Emitter,
	log logging.Logger,
	cfg *config.Config,
) *VerificationService {
	return &VerificationService{
		db:      db,
		repos:   repos,
		store:   store,
		policy:  policy,
		mailer:  mailer,
		auditor: auditor,
		log:     log,
		codeTTL: cfg.ConfirmationCodeTTL,
	}
}

// Register creates an unverified active account, stores a one-time code
// under the email key and triggers its out-of-band delivery. A taken
// email yields common.ErrConflict, a policy violation
// common.ErrWeakPassword. Mail delivery is fire-and-forget and cannot
// fail the registration.
func (s *VerificationService) Register(ctx context.Context, input RegisterInput, client ClientInfo) (*models.User, error) {
	email := normalizeEmail(input.Email)
	repo := s.repos.Users(s.db)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrConflict
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrInternal
	}

	if err := s.policy.ValidateStrength(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.policy.Hash(input.Password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         roles.User,
		IsActive:     true,
		IsVerified:   false,
		RegisteredAt: time.Now(),
	}
	user, err = repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.ErrConflict
		}
		return nil, common.ErrInternal
	}

	if err := s.issueCode(ctx, email); err != nil {
		return nil, common.ErrInternal
	}

	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionRegister,
		UserID:    user.ID,
		TableName: "users",
		RecordID:  user.ID,
		NewValues: map[string]string{"email": email},
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})

	return user, nil
}

// Verify redeems the pending code for the email. Codes are single-use:
// the compare-and-delete against the secret store guarantees that of two
// concurrent redeemers at most one succeeds; the second gets
// common.ErrInvalidCode.
func (s *VerificationService) Verify(ctx context.Context, email, code string, client ClientInfo) error {
	email = normalizeEmail(email)

	ok, err := s.store.CompareAndDelete(ctx, secrets.VerificationKey(email), code)
	if err != nil {
		return common.ErrInternal
	}
	if !ok {
		return common.ErrInvalidCode
	}

	repo := s.repos.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.ErrInternal
	}

	if err := repo.SetVerified(ctx, user.ID); err != nil {
		return common.ErrInternal
	}

	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionEmailVerified,
		UserID:    user.ID,
		TableName: "users",
		RecordID:  user.ID,
		OldValues: map[string]string{"is_verified": "false"},
		NewValues: map[string]string{"is_verified": "true"},
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})

	return nil
}

// Reverify issues a fresh code for an unverified account, overwriting any
// prior pending code. It always reports success so callers cannot probe
// which emails exist.
func (s *VerificationService) Reverify(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil || user.IsVerified {
		return nil
	}

	if err := s.issueCode(ctx, email); err != nil {
		s.log.Error(ctx, "verification code reissue failed", "error", err)
	}
	return nil
}

func (s *VerificationService) issueCode(ctx context.Context, email string) error {
	code, err := common.MakeConfirmationCode()
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, secrets.VerificationKey(email), code, s.codeTTL); err != nil {
		return err
	}
	s.mailer.Send(mail.TemplateVerification, email, mail.Params{"Code": code})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
