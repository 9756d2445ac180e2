package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

// Fixed identifiers of the demo accounts so seeded data survives restarts.
const (
	DemoAdminID  = "6f1c2a4e-0d0b-4a43-9a55-3c1d7b7e0a01"
	DemoStaffID  = "6f1c2a4e-0d0b-4a43-9a55-3c1d7b7e0a02"
	DemoClientID = "6f1c2a4e-0d0b-4a43-9a55-3c1d7b7e0a03"
)

// DemoUsers returns one account per role, all sharing password.
func DemoUsers(password string, now time.Time) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	seed := []struct {
		id, email, name string
		role            models.UserRole
	}{
		{DemoAdminID, "admin@projecthub.local", "Ada Admin", models.RoleAdmin},
		{DemoStaffID, "staff@projecthub.local", "Sam Staff", models.RoleStaff},
		{DemoClientID, "client@projecthub.local", "Cleo Client", models.RoleClient},
	}
	users := make([]models.User, 0, len(seed))
	for _, s := range seed {
		users = append(users, models.User{
			ID:           s.id,
			Email:        s.email,
			PasswordHash: string(hash),
			FullName:     s.name,
			Role:         s.role,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return users, nil
}

// UserStore keeps accounts in memory.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewUserStore builds a store holding users.
func NewUserStore(users ...models.User) *UserStore {
	store := &UserStore{users: make(map[string]models.User, len(users))}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

// FindByEmail looks an account up case-insensitively.
func (s *UserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

// FindByID returns an account by id.
func (s *UserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return &u, nil
}

// UpdateLastLogin stamps a successful login.
func (s *UserStore) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return appErrors.ErrNotFound
	}
	u.LastLogin = &ts
	u.UpdatedAt = ts
	s.users[id] = u
	return nil
}
