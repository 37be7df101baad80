package users

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/William6892/barcodeverify-backend/internal/redisx"
)

// UserStore is the persistence surface Service needs. *PGStore satisfies it.
type UserStore interface {
	ByUsername(ctx context.Context, username string) (*User, error)
	ByID(ctx context.Context, id string) (*User, error)
	Insert(ctx context.Context, u *User) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	SetRole(ctx context.Context, id, role string) error
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context) ([]UserSummary, error)
}

// Sessions is the token cache. *redis.Client satisfies it.
type Sessions interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Service struct {
	store      UserStore
	sessions   Sessions
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(store UserStore, sessions Sessions, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = redisx.TTLSession
	}
	return &Service{store: store, sessions: sessions, sessionTTL: sessionTTL, now: time.Now}
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// Register creates a regular user account. Admin accounts are only created
// through CreateUser by an existing admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	return s.create(ctx, in, RoleUser)
}

// CreateUser is the admin path and accepts an explicit role.
func (s *Service) CreateUser(ctx context.Context, in RegisterInput, role string) (*User, error) {
	if role != RoleAdmin && role != RoleUser {
		return nil, fmt.Errorf("users: unknown role %q", role)
	}
	return s.create(ctx, in, role)
}

func (s *Service) create(ctx context.Context, in RegisterInput, role string) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Username == "" || in.Email == "" || len(in.Password) < 6 {
		return nil, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies credentials, stamps last_login and issues an opaque session
// token stored in Redis under session:{token}.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.store.ByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.store.SetLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}

	token := uuid.NewString()
	payload, _ := json.Marshal(Identity{UserID: u.ID, Role: u.Role})
	if err := s.sessions.Set(ctx, redisx.KeySession(token), payload, s.sessionTTL).Err(); err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: now.Add(s.sessionTTL),
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
	}, nil
}

// Verify resolves a bearer token to the identity it was issued for.
func (s *Service) Verify(ctx context.Context, token string) (Identity, error) {
	raw, err := s.sessions.Get(ctx, redisx.KeySession(token)).Bytes()
	if err == redis.Nil {
		return Identity{}, ErrSessionExpired
	}
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return Identity{}, ErrSessionExpired
	}
	return id, nil
}

// Logout drops the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Del(ctx, redisx.KeySession(token)).Err()
}

func (s *Service) ByID(ctx context.Context, id string) (*User, error) {
	return s.store.ByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]UserSummary, error) {
	return s.store.List(ctx)
}

func (s *Service) SetRole(ctx context.Context, id, role string) error {
	if role != RoleAdmin && role != RoleUser {
		return fmt.Errorf("users: unknown role %q", role)
	}
	return s.store.SetRole(ctx, id, role)
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	return s.store.SetActive(ctx, id, active)
}
