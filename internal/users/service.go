package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minNameLength     = 2
	maxNameLength     = 80
	minPasswordLength = 8
	// maxPasswordLength is bcrypt's input limit in bytes.
	maxPasswordLength = 72
)

var (
	// ErrEmailTaken indicates that an account already uses the email address.
	ErrEmailTaken = errors.New("users: email already in use")
	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("users: invalid email or password")
	// ErrNotFound indicates that no account matches the identifier.
	ErrNotFound = errors.New("users: user not found")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "users.service.new"
	opRegister     = "users.register"
	opAuthenticate = "users.authenticate"
	opGet          = "users.get"

	reasonInvalidInput       = "invalid_input"
	reasonEmailTaken         = "email_taken"
	reasonInvalidCredentials = "invalid_credentials"
	reasonNotFound           = "not_found"
	reasonQueryFailed        = "query_failed"
	reasonHashFailed         = "hash_failed"
	reasonIDGenerationFailed = "id_generation_failed"
	reasonInsertFailed       = "insert_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
	Logger   *zap.Logger
}

// Service registers and authenticates users.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
	hashCost   int
	logger     *zap.Logger
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	hashCost := cfg.HashCost
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
		hashCost:   hashCost,
		logger:     logger,
	}, nil
}

// Register validates the input, hashes the password and stores a new account.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	name := normalize(input.Name)
	email := normalizeEmail(input.Email)

	var collector validation.Collector
	if length := utf8.RuneCountInString(name); length < minNameLength {
		collector.Reject("name", "Name is too short")
	} else if length > maxNameLength {
		collector.Reject("name", "Name is too long")
	}
	if !validation.IsEmail(email) {
		collector.Reject("email", "Enter a valid email")
	}
	checkPassword(&collector, input.Password)
	if err := collector.Err(); err != nil {
		return User{}, newServiceError(opRegister, reasonInvalidInput, err)
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		s.logError(opRegister, reasonQueryFailed, err)
		return User{}, newServiceError(opRegister, reasonQueryFailed, err)
	}
	if existing > 0 {
		return User{}, newServiceError(opRegister, reasonEmailTaken, ErrEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		s.logError(opRegister, reasonHashFailed, err)
		return User{}, newServiceError(opRegister, reasonHashFailed, err)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRegister, reasonIDGenerationFailed, err)
		return User{}, newServiceError(opRegister, reasonIDGenerationFailed, err)
	}

	now := s.now().UTC()
	user := User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return User{}, newServiceError(opRegister, reasonEmailTaken, ErrEmailTaken)
		}
		s.logError(opRegister, reasonInsertFailed, err, zap.String("user_id", user.ID))
		return User{}, newServiceError(opRegister, reasonInsertFailed, err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Authenticate returns the account matching the credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	var collector validation.Collector
	if !validation.IsEmail(normalizeEmail(email)) {
		collector.Reject("email", "Enter a valid email")
	}
	checkPassword(&collector, password)
	if err := collector.Err(); err != nil {
		return User{}, newServiceError(opAuthenticate, reasonInvalidInput, err)
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, newServiceError(opAuthenticate, reasonInvalidCredentials, ErrInvalidCredentials)
	}
	if err != nil {
		s.logError(opAuthenticate, reasonQueryFailed, err)
		return User{}, newServiceError(opAuthenticate, reasonQueryFailed, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, newServiceError(opAuthenticate, reasonInvalidCredentials, ErrInvalidCredentials)
	}
	return user, nil
}

// Get returns the account with the identifier.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", normalize(userID)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, newServiceError(opGet, reasonNotFound, ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, reasonQueryFailed, err, zap.String("user_id", userID))
		return User{}, newServiceError(opGet, reasonQueryFailed, err)
	}
	return user, nil
}

func checkPassword(collector *validation.Collector, password string) {
	switch length := len(password); {
	case length < minPasswordLength:
		collector.Reject("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	case length > maxPasswordLength:
		collector.Reject("password", fmt.Sprintf("Password must be at most %d bytes", maxPasswordLength))
	}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("users service error", attrs...)
}
