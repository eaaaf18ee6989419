package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/server/audit"
	"github.com/dkravets/backoffice/internal/server/mail"
	"github.com/dkravets/backoffice/internal/server/models"
	"github.com/dkravets/backoffice/internal/server/password"
	"github.com/dkravets/backoffice/internal/server/secrets"
	"golang.org/x/crypto/bcrypt"
)

type verificationFixture struct {
	svc     *VerificationService
	users   *fakeUsersRepo
	store   *fakeStore
	mailer  *fakeMailer
	auditor *fakeAuditor
}

func newVerificationService(t *testing.T) *verificationFixture {
	t.Helper()

	db, _ := newSQLMockDB(t)
	users := newFakeUsersRepo()
	store := newFakeStore()
	mailer := &fakeMailer{}
	auditor := &fakeAuditor{}
	policy := password.NewPolicy(bcrypt.MinCost)

	svc := NewVerificationService(db, &fakeRepoManager{u: users, r: newFakeRefreshRepo()},
		store, policy, mailer, auditor, nopLogger{}, testConfig())

	return &verificationFixture{svc: svc, users: users, store: store, mailer: mailer, auditor: auditor}
}

func TestRegister_Success(t *testing.T) {
	f := newVerificationService(t)

	input := RegisterInput{
		Email:     " Alice@Example.com ",
		Password:  "Password1",
		FirstName: "Alice",
	}
	user, err := f.svc.Register(context.Background(), input, testClient)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if user.Email != "alice@example.com" {
		t.Fatalf("email must be normalized, got %q", user.Email)
	}
	if user.IsVerified {
		t.Fatalf("new accounts start unverified")
	}
	if !user.IsActive {
		t.Fatalf("new accounts start active")
	}
	if user.PasswordHash == "Password1" {
		t.Fatalf("password must be hashed")
	}

	// A code was stored and mailed.
	code, err := f.store.Get(context.Background(), secrets.VerificationKey("alice@example.com"))
	if err != nil {
		t.Fatalf("verification code missing: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("want 6-digit code, got %q", code)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].template != mail.TemplateVerification {
		t.Fatalf("unexpected mail: %+v", f.mailer.sent)
	}
	if f.mailer.sent[0].params["Code"] != code {
		t.Fatalf("mailed code must match the stored one")
	}
	if last := f.auditor.last(); last.Action != audit.ActionRegister {
		t.Fatalf("want REGISTER fact, got %v", last.Action)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newVerificationService(t)
	f.users.add(&models.User{ID: "u-1", Email: "alice@example.com"})

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: "Password1",
	}, testClient)
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict, got %v", err)
	}
}

func TestRegister_DuplicateBeforeWeakPassword(t *testing.T) {
	f := newVerificationService(t)
	f.users.add(&models.User{ID: "u-1", Email: "alice@example.com"})

	// Existence wins over the weak password.
	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: "weak",
	}, testClient)
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict, got %v", err)
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newVerificationService(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: "password1",
	}, testClient)
	if !errors.Is(err, common.ErrWeakPassword) {
		t.Fatalf("want common.ErrWeakPassword, got %v", err)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("no mail on a failed registration")
	}
}

func TestVerify_Success(t *testing.T) {
	f := newVerificationService(t)
	f.users.add(&models.User{ID: "u-1", Email: "alice@example.com"})
	_ = f.store.Set(context.Background(), secrets.VerificationKey("alice@example.com"), "123456", 0)

	if err := f.svc.Verify(context.Background(), "Alice@Example.com", "123456", testClient); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if len(f.users.verified) != 1 || f.users.verified[0] != "u-1" {
		t.Fatalf("account must be flipped to verified, got %v", f.users.verified)
	}
	if last := f.auditor.last(); last.Action != audit.ActionEmailVerified {
		t.Fatalf("want EMAIL_VERIFIED fact, got %v", last.Action)
	}
}

func TestVerify_CodeIsSingleUse(t *testing.T) {
	f := newVerificationService(t)
	f.users.add(&models.User{ID: "u-1", Email: "alice@example.com"})
	_ = f.store.Set(context.Background(), secrets.VerificationKey("alice@example.com"), "123456", 0)

	if err := f.svc.Verify(context.Background(), "alice@example.com", "123456", testClient); err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	err := f.svc.Verify(context.Background(), "alice@example.com", "123456", testClient)
	if !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("second redemption must fail with common.ErrInvalidCode, got %v", err)
	}
}

func TestVerify_WrongCode(t *testing.T) {
	f := newVerificationService(t)
	f.users.add(&models.User{ID: "u-1", Email: "alice@example.com"})
	_ = f.store.Set(context.Background(), secrets.VerificationKey("alice@example.com"), "123456", 0)

	err := f.svc.Verify(context.Background(), "alice@example.com", "654321", testClient)
	if !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want common.ErrInvalidCode, got %v", err)
	}

	// The pending code survives for the legitimate redeemer.
	if err := f.svc.Verify(context.Background(), "alice@example.com", "123456", testClient); err != nil {
		t.Fatalf("Verify with the right code error: %v", err)
	}
}

func TestVerify_NoPendingCode(t *testing.T) {
	f := newVerificationService(t)
	f.users.add(&models.User{ID: "u-1", Email: "alice@example.com"})

	err := f.svc.Verify(context.Background(), "alice@example.com", "123456", testClient)
	if !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("want common.ErrInvalidCode, got %v", err)
	}
}

func TestReverify_OverwritesPendingCode(t *testing.T) {
	f := newVerificationService(t)
	f.users.add(&models.User{ID: "u-1", Email: "alice@example.com"})
	_ = f.store.Set(context.Background(), secrets.VerificationKey("alice@example.com"), "111111", 0)

	if err := f.svc.Reverify(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("Reverify error: %v", err)
	}

	code, err := f.store.Get(context.Background(), secrets.VerificationKey("alice@example.com"))
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if code == "111111" {
		t.Fatalf("reissue must overwrite the old code")
	}

	// The old code no longer redeems.
	if err := f.svc.Verify(context.Background(), "alice@example.com", "111111", testClient); !errors.Is(err, common.ErrInvalidCode) {
		t.Fatalf("old code must be dead, got %v", err)
	}
}

func TestReverify_UnknownEmailIsSilent(t *testing.T) {
	f := newVerificationService(t)

	if err := f.svc.Reverify(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("Reverify must not reveal unknown emails: %v", err)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("no mail for unknown emails")
	}
}

func TestReverify_VerifiedAccountIsSilent(t *testing.T) {
	f := newVerificationService(t)
	f.users.add(&models.User{ID: "u-1", Email: "alice@example.com", IsVerified: true})

	if err := f.svc.Reverify(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("Reverify error: %v", err)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("no mail for already-verified accounts")
	}
}
