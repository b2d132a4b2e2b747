package applications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
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
	opServiceNew   = "applications.service.new"
	opCreate       = "applications.create"
	opGet          = "applications.get"
	opListByOwner  = "applications.list_by_owner"
	opUpdate       = "applications.update"
	opDelete       = "applications.delete"
	queryUserApp   = "user_id = ? AND id = ?"
	queryUser      = "user_id = ?"
	orderUpdatedAt = "updated_at DESC, id ASC"

	reasonMissingDatabase    = "missing_database"
	reasonInvalidInput       = "invalid_input"
	reasonIDGenerationFailed = "id_generation_failed"
	reasonInsertFailed       = "insert_failed"
	reasonQueryFailed        = "query_failed"
	reasonNotFound           = "not_found"
	reasonSaveFailed         = "save_failed"
	reasonDeleteFailed       = "delete_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

type IDProvider interface {
	NewID() (string, error)
}

// Service persists applications; every operation is scoped to one owner.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Create validates the input and inserts a new application for the owner.
func (s *Service) Create(ctx context.Context, userID UserID, input ApplicationInput) (Application, error) {
	if s.db == nil {
		s.logError(opCreate, reasonMissingDatabase, errMissingDatabase)
		return Application{}, newServiceError(opCreate, reasonMissingDatabase, errMissingDatabase)
	}

	changes, err := validateInput(input, false)
	if err != nil {
		return Application{}, newServiceError(opCreate, reasonInvalidInput, err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, reasonIDGenerationFailed, err, zap.String("user_id", userID.String()))
		return Application{}, newServiceError(opCreate, reasonIDGenerationFailed, err)
	}

	now := s.clock().UTC()
	application := Application{
		ID:        id,
		UserID:    userID.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	changes.applyTo(&application)

	if err := s.db.WithContext(ctx).Create(&application).Error; err != nil {
		s.logError(opCreate, reasonInsertFailed, err, zap.String("user_id", userID.String()))
		return Application{}, newServiceError(opCreate, reasonInsertFailed, err)
	}
	return application, nil
}

// Get returns the owner's application with the given id.
func (s *Service) Get(ctx context.Context, userID UserID, applicationID ApplicationID) (Application, error) {
	if s.db == nil {
		s.logError(opGet, reasonMissingDatabase, errMissingDatabase)
		return Application{}, newServiceError(opGet, reasonMissingDatabase, errMissingDatabase)
	}

	var application Application
	err := s.db.WithContext(ctx).
		Where(queryUserApp, userID.String(), applicationID.String()).
		Take(&application).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Application{}, newServiceError(opGet, reasonNotFound, ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, reasonQueryFailed, err,
			zap.String("user_id", userID.String()),
			zap.String("application_id", applicationID.String()))
		return Application{}, newServiceError(opGet, reasonQueryFailed, err)
	}
	return application, nil
}

// ListByOwner returns every application owned by the user, most recently updated first.
func (s *Service) ListByOwner(ctx context.Context, userID UserID) ([]Application, error) {
	if s.db == nil {
		s.logError(opListByOwner, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListByOwner, reasonMissingDatabase, errMissingDatabase)
	}

	applications := make([]Application, 0)
	if err := s.db.WithContext(ctx).
		Where(queryUser, userID.String()).
		Order(orderUpdatedAt).
		Find(&applications).Error; err != nil {
		s.logError(opListByOwner, reasonQueryFailed, err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListByOwner, reasonQueryFailed, err)
	}
	return applications, nil
}

// Update applies the fields present in the input and refreshes updatedAt.
func (s *Service) Update(ctx context.Context, userID UserID, applicationID ApplicationID, input ApplicationInput) (Application, error) {
	if s.db == nil {
		s.logError(opUpdate, reasonMissingDatabase, errMissingDatabase)
		return Application{}, newServiceError(opUpdate, reasonMissingDatabase, errMissingDatabase)
	}

	changes, err := validateInput(input, true)
	if err != nil {
		return Application{}, newServiceError(opUpdate, reasonInvalidInput, err)
	}

	var updated Application
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Application
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(queryUserApp, userID.String(), applicationID.String()).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opUpdate, reasonNotFound, ErrNotFound)
		}
		if err != nil {
			s.logError(opUpdate, reasonQueryFailed, err,
				zap.String("user_id", userID.String()),
				zap.String("application_id", applicationID.String()))
			return newServiceError(opUpdate, reasonQueryFailed, err)
		}

		changes.applyTo(&existing)
		now := s.clock().UTC()
		if now.Before(existing.CreatedAt) {
			now = existing.CreatedAt
		}
		existing.UpdatedAt = now

		if err := tx.Save(&existing).Error; err != nil {
			s.logError(opUpdate, reasonSaveFailed, err,
				zap.String("user_id", userID.String()),
				zap.String("application_id", applicationID.String()))
			return newServiceError(opUpdate, reasonSaveFailed, err)
		}
		updated = existing
		return nil
	})
	if txErr != nil {
		return Application{}, txErr
	}
	return updated, nil
}

// Delete removes the owner's application; a missing or foreign id is ErrNotFound.
func (s *Service) Delete(ctx context.Context, userID UserID, applicationID ApplicationID) error {
	if s.db == nil {
		s.logError(opDelete, reasonMissingDatabase, errMissingDatabase)
		return newServiceError(opDelete, reasonMissingDatabase, errMissingDatabase)
	}

	result := s.db.WithContext(ctx).
		Where(queryUserApp, userID.String(), applicationID.String()).
		Delete(&Application{})
	if result.Error != nil {
		s.logError(opDelete, reasonDeleteFailed, result.Error,
			zap.String("user_id", userID.String()),
			zap.String("application_id", applicationID.String()))
		return newServiceError(opDelete, reasonDeleteFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDelete, reasonNotFound, ErrNotFound)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
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
	s.loggerOrDefault().Error("applications service error", attrs...)
}
