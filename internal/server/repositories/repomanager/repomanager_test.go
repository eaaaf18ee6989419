package repomanager

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresRepositoryManager_VendsRepositories(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	m := NewPostgresRepositoryManager()

	if m.Users(db) == nil {
		t.Fatalf("Users must vend a repository")
	}
	if m.RefreshTokens(db) == nil {
		t.Fatalf("RefreshTokens must vend a repository")
	}

	var _ RepositoryManager = m
}
