package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/applications"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	// ErrStoreUnavailable indicates the application store could not be read.
	ErrStoreUnavailable = errors.New("reports: store unavailable")
	// ErrInvalidOwner indicates a request without an owner identifier.
	ErrInvalidOwner = errors.New("reports: invalid owner")

	errMissingStore = errors.New("application store is required")
	noOpLogger      = zap.NewNop()
)

var (
	reportBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobtrackr_report_build_duration_seconds",
			Help:    "Time spent fetching and deriving reports.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	reportAnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jobtrackr_report_anomalies_total",
		Help: "Applications with an unknown stage seen while aggregating.",
	})
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
	opServiceNew = "reports.service.new"
	opGetStats   = "reports.get_stats"
	opExportCSV  = "reports.export_csv"

	reasonInvalidOwner     = "invalid_owner"
	reasonStoreUnavailable = "store_unavailable"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Store yields every application owned by a user.
type Store interface {
	ListByOwner(ctx context.Context, userID applications.UserID) ([]applications.Application, error)
}

type ServiceConfig struct {
	Store    Store
	Clock    func() time.Time
	Location *time.Location
	// CacheSize and CacheTTL enable the report cache when both are positive.
	CacheSize int
	CacheTTL  time.Duration
	Logger    *zap.Logger
}

// Export is a rendered CSV attachment.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Service fetches an owner's applications and derives reports from them.
type Service struct {
	store    Store
	clock    func() time.Time
	location *time.Location
	cache    *reportCache
	logger   *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:    cfg.Store,
		clock:    clock,
		location: location,
		cache:    newReportCache(cfg.CacheSize, cfg.CacheTTL),
		logger:   logger,
	}, nil
}

// GetStats builds the owner's report with "today" taken in the service's default location.
func (s *Service) GetStats(ctx context.Context, userID applications.UserID) (Report, error) {
	return s.GetStatsIn(ctx, userID, nil)
}

// GetStatsIn builds the owner's report with "today" taken in location.
// A nil location falls back to the service default.
func (s *Service) GetStatsIn(ctx context.Context, userID applications.UserID, location *time.Location) (Report, error) {
	if userID == "" {
		return Report{}, newServiceError(opGetStats, reasonInvalidOwner, ErrInvalidOwner)
	}
	if location == nil {
		location = s.location
	}

	started := time.Now()
	now := s.clock().In(location)
	cacheKey := reportCacheKey(userID.String(), now)
	if report, ok := s.cache.get(cacheKey); ok {
		return report, nil
	}
	generation := s.cache.generation(userID.String())

	records, err := s.fetch(ctx, opGetStats, userID)
	if err != nil {
		return Report{}, err
	}

	report := Aggregate(records, now)
	s.reportAnomalies(userID, report.Anomalies)
	s.cache.set(userID.String(), generation, cacheKey, report)

	reportBuildDuration.WithLabelValues(opGetStats).Observe(time.Since(started).Seconds())
	return report, nil
}

// ExportCSV renders all of the owner's applications as a CSV attachment.
func (s *Service) ExportCSV(ctx context.Context, userID applications.UserID) (Export, error) {
	if userID == "" {
		return Export{}, newServiceError(opExportCSV, reasonInvalidOwner, ErrInvalidOwner)
	}

	started := time.Now()
	records, err := s.fetch(ctx, opExportCSV, userID)
	if err != nil {
		return Export{}, err
	}

	export := Export{
		Filename:    ExportFilename,
		ContentType: ExportContentType,
		Body:        ExportCSV(records),
	}
	reportBuildDuration.WithLabelValues(opExportCSV).Observe(time.Since(started).Seconds())
	return export, nil
}

// Invalidate discards cached reports for the owner after its applications change.
func (s *Service) Invalidate(userID applications.UserID) {
	s.cache.invalidateOwner(userID.String())
}

func (s *Service) fetch(ctx context.Context, operation string, userID applications.UserID) ([]applications.Application, error) {
	records, err := s.store.ListByOwner(ctx, userID)
	if err != nil {
		s.logError(operation, reasonStoreUnavailable, err, zap.String("user_id", userID.String()))
		return nil, newServiceError(operation, reasonStoreUnavailable, fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	}
	return records, nil
}

func (s *Service) reportAnomalies(userID applications.UserID, anomalies []Anomaly) {
	for _, anomaly := range anomalies {
		reportAnomaliesTotal.Inc()
		s.loggerOrDefault().Warn("application has unknown stage",
			zap.String("user_id", userID.String()),
			zap.String("application_id", anomaly.ApplicationID),
			zap.String("stage", anomaly.Stage.String()))
	}
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
	s.loggerOrDefault().Error("reports service error", attrs...)
}
