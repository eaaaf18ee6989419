// Package services implements the credential and session lifecycle
// workflows: verification, login with refresh-token rotation, and the
// two-phase role escalation. Each workflow receives its collaborators
// (repositories, secret store, mail dispatcher, audit emitter) at
// construction and owns its own ephemeral keys.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/dbx"
	"github.com/dkravets/backoffice/internal/logging"
	"github.com/dkravets/backoffice/internal/server/audit"
	"github.com/dkravets/backoffice/internal/server/config"
	"github.com/dkravets/backoffice/internal/server/models"
	"github.com/dkravets/backoffice/internal/server/password"
	"github.com/dkravets/backoffice/internal/server/repositories/repomanager"
	"github.com/dkravets/backoffice/internal/server/token"
	"github.com/google/uuid"
)

// TokenPair is the credential pair returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// ClientInfo identifies the request origin for IP binding and audit facts.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// SessionService issues, rotates and revokes sessions.
type SessionService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	policy   *password.Policy
	throttle *Throttle
	auditor  audit.Emitter
	log      logging.Logger

	jwtSecret       []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
}

// NewSessionService wires a SessionService from its collaborators.
func NewSessionService(
	db *sql.DB,
	repos repomanager.RepositoryManager,
	policy *password.Policy,
	throttle *Throttle,
	auditor audit.Emitter,
	log logging.Logger,
	cfg *config.Config,
) *SessionService {
	return &SessionService{
		db:              db,
		repos:           repos,
		policy:          policy,
		throttle:        throttle,
		auditor:         auditor,
		log:             log,
		jwtSecret:       []byte(cfg.SecretKey),
		accessValidity:  cfg.AccessTokenValidityDuration,
		refreshValidity: cfg.RefreshTokenValidityDuration,
	}
}

// Authenticate checks the credentials and, on success, records the login
// time and resets the failed-attempt counter. A mismatch of any kind
// (unknown email, wrong password, inactive account) yields
// common.ErrInvalidCredentials; a locked-out origin yields
// common.ErrTooManyAttempts before any repository access.
func (s *SessionService) Authenticate(ctx context.Context, email, passwd string, client ClientInfo) (*models.User, error) {
	email = normalizeEmail(email)

	blocked, err := s.throttle.Blocked(ctx, client.IP, email)
	if err != nil {
		return nil, common.ErrInternal
	}
	if blocked {
		s.emitLoginFailed(ctx, "", email, client, "locked out")
		return nil, common.ErrTooManyAttempts
	}

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, s.failAuthentication(ctx, "", email, client, "unknown email")
		}
		return nil, common.ErrInternal
	}

	if !s.policy.Verify(passwd, user.PasswordHash) {
		return nil, s.failAuthentication(ctx, user.ID, email, client, "password mismatch")
	}
	if !user.IsActive {
		return nil, s.failAuthentication(ctx, user.ID, email, client, "inactive account")
	}

	now := time.Now()
	if err := s.repos.Users(s.db).SetLastLogin(ctx, user.ID, now); err != nil {
		return nil, common.ErrInternal
	}
	user.LastLoginAt = &now

	if err := s.throttle.Reset(ctx, client.IP, email); err != nil {
		// Counter reset is best-effort: the key self-expires.
		s.log.Warn(ctx, "failed-attempt counter reset failed", "error", err)
	}

	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionLoginSuccess,
		UserID:    user.ID,
		TableName: "users",
		RecordID:  user.ID,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})

	return user, nil
}

func (s *SessionService) failAuthentication(ctx context.Context, userID, email string, client ClientInfo, reason string) error {
	if err := s.throttle.RecordFailure(ctx, client.IP, email); err != nil {
		s.log.Warn(ctx, "failed-attempt counter increment failed", "error", err)
	}
	s.emitLoginFailed(ctx, userID, email, client, reason)
	return common.ErrInvalidCredentials
}

func (s *SessionService) emitLoginFailed(ctx context.Context, userID, email string, client ClientInfo, reason string) {
	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionLoginFailed,
		UserID:    userID,
		TableName: "users",
		RecordID:  email,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		Details:   reason,
	})
}

// Login issues a fresh access/refresh pair for the user, binding the
// refresh token to the issuing IP.
func (s *SessionService) Login(ctx context.Context, userID, ip string) (*TokenPair, error) {
	return s.issuePair(ctx, s.db, userID, ip)
}

// Refresh rotates the presented refresh token: the old record is deleted
// and a new one inserted in the same transaction, so of two concurrent
// calls with the same token exactly one succeeds. The presenting IP must
// match the IP recorded at issuance.
func (s *SessionService) Refresh(ctx context.Context, refreshToken, ip string, client ClientInfo) (*TokenPair, error) {
	var (
		pair   *TokenPair
		userID string
		opErr  error
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.RefreshTokens(tx)

		record, err := repo.FindForUpdate(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				opErr = common.ErrInvalidToken
				return nil
			}
			return err
		}

		if record.ExpiresAt.Before(time.Now()) {
			// Drop the stale record and commit; the token is gone for good.
			opErr = common.ErrExpiredToken
			return repo.Delete(ctx, refreshToken)
		}

		if record.IPAddress != ip {
			// Reject without destroying the record: the legitimate holder
			// can still refresh from the issuing network.
			opErr = common.ErrInvalidToken
			return nil
		}

		userID = record.UserID

		if err := repo.Delete(ctx, refreshToken); err != nil {
			return err
		}

		pair, err = s.createPair(ctx, tx, record.UserID, ip)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("refresh rotation: %w", err)
	}
	if opErr != nil {
		return nil, opErr
	}

	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionTokenRefresh,
		UserID:    userID,
		TableName: "refresh_tokens",
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})

	return pair, nil
}

// Logout revokes the single presented session. Unknown tokens and IP
// mismatches both yield common.ErrInvalidToken.
func (s *SessionService) Logout(ctx context.Context, refreshToken, ip string, client ClientInfo) error {
	repo := s.repos.RefreshTokens(s.db)

	record, err := s.findBound(ctx, refreshToken, ip)
	if err != nil {
		return err
	}

	if err := repo.Delete(ctx, refreshToken); err != nil {
		return common.ErrInternal
	}

	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionLogout,
		UserID:    record.UserID,
		TableName: "refresh_tokens",
		RecordID:  record.ID,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})

	return nil
}

// AbortAll resolves the owning user from the presented token and revokes
// every session of that user, invalidating all devices.
func (s *SessionService) AbortAll(ctx context.Context, refreshToken, ip string, client ClientInfo) error {
	record, err := s.findBound(ctx, refreshToken, ip)
	if err != nil {
		return err
	}

	if err := s.repos.RefreshTokens(s.db).DeleteByUser(ctx, record.UserID); err != nil {
		return common.ErrInternal
	}

	s.auditor.Emit(ctx, audit.Fact{
		Action:    audit.ActionAbortAllSessions,
		UserID:    record.UserID,
		TableName: "refresh_tokens",
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})

	return nil
}

// ResolvePrincipal verifies the access token and loads the user it was
// issued to. Used by every protected endpoint.
func (s *SessionService) ResolvePrincipal(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := token.Subject(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrInternal
	}

	return user, nil
}

func (s *SessionService) findBound(ctx context.Context, refreshToken, ip string) (*models.RefreshToken, error) {
	record, err := s.repos.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrInternal
	}
	if record.IPAddress != ip {
		return nil, common.ErrInvalidToken
	}
	return record, nil
}

func (s *SessionService) issuePair(ctx context.Context, db dbx.DBTX, userID, ip string) (*TokenPair, error) {
	pair, err := s.createPair(ctx, db, userID, ip)
	if err != nil {
		return nil, common.ErrInternal
	}
	return pair, nil
}

func (s *SessionService) createPair(ctx context.Context, db dbx.DBTX, userID, ip string) (*TokenPair, error) {
	access, err := token.Generate(userID, s.jwtSecret, s.accessValidity)
	if err != nil {
		return nil, err
	}

	refresh := uuid.NewString()
	record := &models.RefreshToken{
		UserID:    userID,
		Token:     refresh,
		IPAddress: ip,
		ExpiresAt: time.Now().Add(s.refreshValidity),
	}
	if err := s.repos.RefreshTokens(db).Create(ctx, record); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
