package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/dbx"
	"github.com/dkravets/backoffice/internal/logging"
	"github.com/dkravets/backoffice/internal/server/audit"
	"github.com/dkravets/backoffice/internal/server/config"
	"github.com/dkravets/backoffice/internal/server/mail"
	"github.com/dkravets/backoffice/internal/server/models"
	refreshtokensrepo "github.com/dkravets/backoffice/internal/server/repositories/refreshtokens"
	"github.com/dkravets/backoffice/internal/server/repositories/repomanager"
	usersrepo "github.com/dkravets/backoffice/internal/server/repositories/users"
	"github.com/dkravets/backoffice/internal/server/roles"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		ConfirmationCodeTTL:          10 * time.Minute,
		LoginAttemptLimit:            3,
		LoginAttemptWindow:           time.Minute,
		LoginLockoutDuration:         time.Minute,
	}
}

// --- fakes ---

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

type fakeAuditor struct {
	mu    sync.Mutex
	facts []audit.Fact
}

func (f *fakeAuditor) Emit(_ context.Context, fact audit.Fact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts = append(f.facts, fact)
}

func (f *fakeAuditor) actions() []audit.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audit.Action, 0, len(f.facts))
	for _, fact := range f.facts {
		out = append(out, fact.Action)
	}
	return out
}

func (f *fakeAuditor) last() audit.Fact {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.facts) == 0 {
		return audit.Fact{}
	}
	return f.facts[len(f.facts)-1]
}

type sentMail struct {
	template  string
	recipient string
	params    mail.Params
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Send(templateName, recipient string, params mail.Params) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{template: templateName, recipient: recipient, params: params})
}

// fakeStore is an in-memory secrets.Store without TTL expiry.
type fakeStore struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64

	setErr error
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:   make(map[string]string),
		counters: make(map[string]int64),
	}
}

func (f *fakeStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", common.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	delete(f.counters, key)
	return nil
}

func (f *fakeStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[key] != expected || expected == "" {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func (f *fakeStore) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return f.counters[key], nil
}

type fakeUsersRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User

	createOut *models.User
	createErr error

	setVerifiedErr  error
	setLastLoginErr error
	updateRoleErr   error

	verified  []string
	roleSets  map[string]roles.Role
	lastLogin map[string]time.Time
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{
		byEmail:   make(map[string]*models.User),
		byID:      make(map[string]*models.User),
		roleSets:  make(map[string]roles.Role),
		lastLogin: make(map[string]time.Time),
	}
}

func (f *fakeUsersRepo) add(u *models.User) {
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	u.ID = "u-new"
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsersRepo) SetVerified(_ context.Context, id string) error {
	if f.setVerifiedErr != nil {
		return f.setVerifiedErr
	}
	f.verified = append(f.verified, id)
	return nil
}

func (f *fakeUsersRepo) SetLastLogin(_ context.Context, id string, at time.Time) error {
	if f.setLastLoginErr != nil {
		return f.setLastLoginErr
	}
	f.lastLogin[id] = at
	return nil
}

func (f *fakeUsersRepo) UpdateRole(_ context.Context, id string, role roles.Role) error {
	if f.updateRoleErr != nil {
		return f.updateRoleErr
	}
	f.roleSets[id] = role
	return nil
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	byTok  map[string]*models.RefreshToken
	delErr error

	created        []*models.RefreshToken
	deleted        []string
	deletedByUser  []string
	deleteByUsrErr error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{byTok: make(map[string]*models.RefreshToken)}
}

func (f *fakeRefreshRepo) add(t *models.RefreshToken) {
	f.byTok[t.Token] = t
}

func (f *fakeRefreshRepo) Create(_ context.Context, t *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byTok[t.Token] = t
	f.created = append(f.created, t)
	return nil
}

func (f *fakeRefreshRepo) find(token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byTok[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	return f.find(token)
}

func (f *fakeRefreshRepo) FindForUpdate(_ context.Context, token string) (*models.RefreshToken, error) {
	return f.find(token)
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byTok, token)
	f.deleted = append(f.deleted, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteByUser(_ context.Context, userID string) error {
	if f.deleteByUsrErr != nil {
		return f.deleteByUsrErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for tok, t := range f.byTok {
		if t.UserID == userID {
			delete(f.byTok, tok)
		}
	}
	f.deletedByUser = append(f.deletedByUser, userID)
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                    { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository    { return m.r }

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)
