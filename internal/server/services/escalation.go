package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/logging"
	"github.com/dkravets/backoffice/internal/server/audit"
	"github.com/dkravets/backoffice/internal/server/config"
	"github.com/dkravets/backoffice/internal/server/mail"
	"github.com/dkravets/backoffice/internal/server/models"
	"github.com/dkravets/backoffice/internal/server/repositories/repomanager"
	"github.com/dkravets/backoffice/internal/server/roles"
	"github.com/dkravets/backoffice/internal/server/secrets"
)

// RoleChangeResult reports the outcome of a confirmed role change.
type RoleChangeResult struct {
	OldRole roles.Role
	NewRole roles.Role
}

// EscalationService runs the two-phase role change: an admin requests a
// change and confirms it with a code delivered to the admin's own email.
// The code is a self-confirmation step, not target consent.
type EscalationService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   secrets.Store
	mailer  mail.Dispatcher
	auditor audit.Emitter
	log     logging.Logger
	codeTTL time.Duration
}

// NewEscalationService wires an EscalationService from its collaborators.
func NewEscalationService(
	db *sql.DB,
	repos repomanager.RepositoryManager,
	store secrets.Store,
	mailer mail.Dispatcher,
	auditor audit.Emitter,
	log logging.Logger,
	cfg *config.Config,
) *EscalationService {
	return &EscalationService{
		db:      db,
		repos:   repos,
		store:   store,
		mailer:  mailer,
		auditor: auditor,
		log:     log,
		codeTTL: cfg.ConfirmationCodeTTL,
	}
}

// RequestChange validates the requested change and, when allowed, stores
// a one-time code keyed by the (admin, target, role) triple and mails it
// to the requesting admin. Requesting the target's current role is a
// no-op: it reports success without generating a code.
//
// The returned bool is true when a code was issued, false for the no-op.
func (s *EscalationService) RequestChange(ctx context.Context, admin *models.User, targetEmail string, newRole roles.Role, client ClientInfo) (bool, error) {
	targetEmail = normalizeEmail(targetEmail)

	target, err := s.repos.Users(s.db).GetByEmail(ctx, targetEmail)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, common.ErrNotFound
		}
		return false, common.ErrInternal
	}

	if target.ID == admin.ID {
		return false, common.ErrSelfUpdate
	}
	if err := roles.CanAssign(admin.Role, target.Role, newRole); err != nil {
		return false, err
	}
	if target.Role == newRole {
		return false, nil
	}

	code, err := common.MakeConfirmationCode()
	if err != nil {
		return false, common.ErrInternal
	}

	key := secrets.RoleChangeKey(admin.Email, targetEmail, newRole.String())
	if err := s.store.Set(ctx, key, code, s.codeTTL); err != nil {
		return false, common.ErrInternal
	}

	s.mailer.Send(mail.TemplateRoleChange, admin.Email, mail.Params{
		"Code":        code,
		"TargetEmail": targetEmail,
		"NewRole":     newRole.String(),
	})

	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionRoleChangeRequest,
		UserID:    admin.ID,
		TableName: "users",
		RecordID:  target.ID,
		NewValues: map[string]string{
			"requested_role": newRole.String(),
			"target_email":   targetEmail,
		},
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Details:   fmt.Sprintf("admin %s requested role change for %s", admin.Email, targetEmail),
	})

	return true, nil
}

// ConfirmChange redeems the code for the (admin, target, role) triple and
// applies the role change. The compare-and-delete against the secret
// store makes the code single-use: a second confirmation with the same
// code fails with common.ErrInvalidCode.
func (s *EscalationService) ConfirmChange(ctx context.Context, admin *models.User, targetEmail string, newRole roles.Role, code string, client ClientInfo) (*RoleChangeResult, error) {
	targetEmail = normalizeEmail(targetEmail)

	key := secrets.RoleChangeKey(admin.Email, targetEmail, newRole.String())
	ok, err := s.store.CompareAndDelete(ctx, key, code)
	if err != nil {
		return nil, common.ErrInternal
	}
	if !ok {
		return nil, common.ErrInvalidCode
	}

	repo := s.repos.Users(s.db)
	target, err := repo.GetByEmail(ctx, targetEmail)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.ErrInternal
	}

	oldRole := target.Role
	if err := repo.UpdateRole(ctx, target.ID, newRole); err != nil {
		return nil, common.ErrInternal
	}

	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionRoleChangeConfirm,
		UserID:    admin.ID,
		TableName: "users",
		RecordID:  target.ID,
		OldValues: map[string]string{"role": oldRole.String(), "target_email": targetEmail},
		NewValues: map[string]string{"role": newRole.String(), "target_email": targetEmail},
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Details:   fmt.Sprintf("admin %s confirmed role change for %s", admin.Email, targetEmail),
	})

	return &RoleChangeResult{OldRole: oldRole, NewRole: newRole}, nil
}
