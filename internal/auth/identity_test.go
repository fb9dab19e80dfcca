package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/jobtracker/internal/model"
	"github.com/hitoshi/jobtracker/internal/repository"
)

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
	saveFn     func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockUserRepo) Save(ctx context.Context, user *model.User) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, user)
	}
	return nil
}

func TestProfile_StableID_Priority(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"idが最優先", Profile{ID: "id-1", Sub: "sub-1", Email: "a@example.com"}, "id-1"},
		{"idが空ならsub", Profile{Sub: "sub-1", Email: "a@example.com"}, "sub-1"},
		{"空白のみのidは空とみなす", Profile{ID: "  ", Sub: "sub-1"}, "sub-1"},
		{"id,subが空ならemail", Profile{Email: "a@example.com"}, "a@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.profile.StableID()
			if err != nil {
				t.Fatalf("StableID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("StableID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProfile_StableID_NoIdentifier(t *testing.T) {
	p := Profile{DisplayName: "No ID"}
	if _, err := p.StableID(); !errors.Is(err, model.ErrNoUsableIdentifier) {
		t.Errorf("StableID() error = %v, want ErrNoUsableIdentifier", err)
	}
}

func TestIdentityResolver_FirstSignIn_CreatesUser(t *testing.T) {
	ctx := context.Background()
	users := repository.NewRecordUserRepo(repository.NewMemoryRecordStore())
	resolver := NewIdentityResolver(users)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return now }

	user, err := resolver.Resolve(ctx, &Profile{
		Provider:    model.ProviderGoogle,
		Sub:         "google-sub-1",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		PhotoURL:    "https://example.com/alice.png",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if user.ID != "google-sub-1" {
		t.Errorf("ID = %q, want google-sub-1", user.ID)
	}
	if !user.CreatedAt.Equal(now) || !user.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want %v", user.CreatedAt, user.UpdatedAt, now)
	}

	stored, err := users.FindByID(ctx, "google-sub-1")
	if err != nil || stored == nil {
		t.Fatalf("FindByID() = %v, %v", stored, err)
	}
	if stored.Email != "alice@example.com" || stored.Provider != model.ProviderGoogle || stored.PhotoURL == "" {
		t.Errorf("stored user = %+v", stored)
	}
}

func TestIdentityResolver_RepeatSignIn_UpdatesMutableFieldsOnly(t *testing.T) {
	ctx := context.Background()
	users := repository.NewRecordUserRepo(repository.NewMemoryRecordStore())
	resolver := NewIdentityResolver(users)

	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return first }
	_, err := resolver.Resolve(ctx, &Profile{
		Provider:    model.ProviderGoogle,
		ID:          "u-1",
		Email:       "old@example.com",
		DisplayName: "Old Name",
		PhotoURL:    "https://example.com/old.png",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	second := first.Add(24 * time.Hour)
	resolver.now = func() time.Time { return second }
	user, err := resolver.Resolve(ctx, &Profile{
		Provider:    model.ProviderMicrosoft,
		ID:          "u-1",
		Email:       "new@example.com",
		DisplayName: "New Name",
		PhotoURL:    "https://example.com/new.png",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if user.DisplayName != "New Name" || user.PhotoURL != "https://example.com/new.png" {
		t.Errorf("mutable fields not updated: %+v", user)
	}
	if !user.UpdatedAt.Equal(second) {
		t.Errorf("UpdatedAt = %v, want %v", user.UpdatedAt, second)
	}
	if user.Email != "old@example.com" {
		t.Errorf("Email = %q, should stay immutable", user.Email)
	}
	if user.Provider != model.ProviderGoogle {
		t.Errorf("Provider = %q, should stay immutable", user.Provider)
	}
	if !user.CreatedAt.Equal(first) {
		t.Errorf("CreatedAt = %v, want %v", user.CreatedAt, first)
	}
}

func TestIdentityResolver_NoIdentifier_ReturnsIdentityError(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			t.Fatal("FindByID should not be called")
			return nil, nil
		},
	}
	resolver := NewIdentityResolver(repo)

	_, err := resolver.Resolve(context.Background(), &Profile{Provider: model.ProviderMicrosoft, DisplayName: "Anon"})

	var identityErr *model.IdentityError
	if !errors.As(err, &identityErr) {
		t.Fatalf("expected IdentityError, got %v", err)
	}
	if identityErr.Provider != model.ProviderMicrosoft {
		t.Errorf("Provider = %q, want microsoft", identityErr.Provider)
	}
	if !errors.Is(err, model.ErrNoUsableIdentifier) {
		t.Errorf("expected ErrNoUsableIdentifier, got %v", err)
	}
}

func TestIdentityResolver_RepositoryError(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}

	_, err := NewIdentityResolver(repo).Resolve(context.Background(), &Profile{Provider: model.ProviderGoogle, ID: "u-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	var identityErr *model.IdentityError
	if errors.As(err, &identityErr) {
		t.Error("repository failure should not be reported as IdentityError")
	}
}
