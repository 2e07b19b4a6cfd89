package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hostpanel/internal/ids"
	"hostpanel/internal/models"
	"hostpanel/internal/repository"
	"hostpanel/internal/security"
)

var (
	ErrMissingCredentials = errors.New("username and password required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateAdmin     = errors.New("username or email already registered")
	ErrInvalidRole        = errors.New("role must be admin or superadmin")
	ErrInvalidAdminInput  = errors.New("invalid admin input")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

const minPasswordLength = 8

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=service_test

// AdminStore is the credential store consumed by the auth service.
type AdminStore interface {
	GetByID(ctx context.Context, id string) (models.Admin, error)
	FindByIdentifier(ctx context.Context, identifier string) (models.Admin, error)
	Create(ctx context.Context, admin models.Admin) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type TokenIssuer interface {
	Issue(adminID string) (string, error)
}

type AuthService struct {
	admins   AdminStore
	tokens   TokenIssuer
	throttle *LoginThrottle
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	admins AdminStore,
	tokens TokenIssuer,
	throttle *LoginThrottle,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		admins:   admins,
		tokens:   tokens,
		throttle: throttle,
		log:      log,
		now:      time.Now,
	}
}

type LoginInput struct {
	Identifier string
	Password   string
	ClientIP   string
}

type AuthResult struct {
	Admin models.Admin
	Token string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	if strings.TrimSpace(input.Identifier) == "" || strings.TrimSpace(input.Password) == "" {
		return AuthResult{}, ErrMissingCredentials
	}

	if err := s.throttle.Check(ctx, input.ClientIP); err != nil {
		return AuthResult{}, err
	}

	admin, err := s.admins.FindByIdentifier(ctx, input.Identifier)
	if err != nil {
		if !errors.Is(err, repository.ErrAdminNotFound) {
			return AuthResult{}, fmt.Errorf("find admin: %w", err)
		}
		security.BurnVerification(input.Password)
		s.recordFailure(ctx, input.ClientIP)
		return AuthResult{}, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(input.Password, admin.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("admin_id", admin.ID).Msg("stored password hash unreadable")
	}
	if err != nil || !ok {
		s.recordFailure(ctx, input.ClientIP)
		return AuthResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(admin.ID)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()
	if err := s.admins.TouchLastLogin(ctx, admin.ID, now); err != nil {
		s.log.Warn().Err(err).Str("admin_id", admin.ID).Msg("update last login failed")
	} else {
		admin.LastLoginAt = &now
	}

	s.throttle.Reset(ctx, input.ClientIP)

	return AuthResult{Admin: admin.Redacted(), Token: token}, nil
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     models.AdminRole
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	admin, err := s.create(ctx, input)
	if err != nil {
		return AuthResult{}, err
	}

	token, err := s.tokens.Issue(admin.ID)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Str("admin_id", admin.ID).Str("role", string(admin.Role)).Msg("admin registered")

	return AuthResult{Admin: admin.Redacted(), Token: token}, nil
}

// Profile re-reads the admin so that a record removed after authentication is reported
// as repository.ErrAdminNotFound.
func (s *AuthService) Profile(ctx context.Context, adminID string) (models.Profile, error) {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return models.Profile{}, err
	}
	return admin.Profile(), nil
}

// EnsureSuperAdmin provisions a superadmin when no admin holds the username or email yet.
// It reports whether a record was created.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, username, email, password string) (bool, error) {
	for _, identifier := range []string{username, email} {
		_, err := s.admins.FindByIdentifier(ctx, identifier)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, repository.ErrAdminNotFound) {
			return false, fmt.Errorf("lookup bootstrap admin: %w", err)
		}
	}

	admin, err := s.create(ctx, RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.AdminRoleSuperAdmin,
	})
	if errors.Is(err, ErrDuplicateAdmin) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.log.Info().Str("admin_id", admin.ID).Str("username", admin.Username).Msg("bootstrap superadmin created")
	return true, nil
}

func (s *AuthService) create(ctx context.Context, input RegisterInput) (models.Admin, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Role == "" {
		input.Role = models.AdminRoleAdmin
	}

	if input.Username == "" || input.Email == "" {
		return models.Admin{}, fmt.Errorf("%w: username and email required", ErrInvalidAdminInput)
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return models.Admin{}, fmt.Errorf("%w: malformed email", ErrInvalidAdminInput)
	}
	if len(input.Password) < minPasswordLength {
		return models.Admin{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidAdminInput, minPasswordLength)
	}
	if !input.Role.Valid() {
		return models.Admin{}, ErrInvalidRole
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.Admin{}, err
	}

	now := s.now().UTC()
	admin := models.Admin{
		ID:           ids.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Role:         input.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateAdmin) {
			return models.Admin{}, ErrDuplicateAdmin
		}
		return models.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	return admin, nil
}

func (s *AuthService) recordFailure(ctx context.Context, clientIP string) {
	if err := s.throttle.Fail(ctx, clientIP); err != nil {
		s.log.Warn().Err(err).Str("client_ip", clientIP).Msg("record failed login")
	}
}
