package reports

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/applications"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeStore struct {
	records map[applications.UserID][]applications.Application
	err     error
	calls   int
}

func (f *fakeStore) ListByOwner(_ context.Context, userID applications.UserID) ([]applications.Application, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[userID], nil
}

func newTestService(t *testing.T, store Store, cacheSize int, logger *zap.Logger) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Store:     store,
		Clock:     func() time.Time { return time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC) },
		CacheSize: cacheSize,
		CacheTTL:  time.Minute,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	if err == nil {
		t.Fatalf("expected error for missing store")
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "reports.service.new.missing_store" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetStatsAggregatesOwnerRecords(t *testing.T) {
	store := &fakeStore{records: map[applications.UserID][]applications.Application{
		"owner": {
			{ID: "a", Stage: applications.StageOffer, CreatedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
			{ID: "b", Stage: applications.StageApplied, CreatedAt: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)},
		},
	}}
	service := newTestService(t, store, 0, nil)

	report, err := service.GetStats(context.Background(), "owner")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if report.Summary.Total != 2 || report.Summary.Offers != 1 || report.Summary.ConversionRate != 50 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
}

func TestGetStatsRejectsEmptyOwner(t *testing.T) {
	service := newTestService(t, &fakeStore{}, 0, nil)

	if _, err := service.GetStats(context.Background(), ""); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner, got %v", err)
	}
	if _, err := service.ExportCSV(context.Background(), ""); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner from export, got %v", err)
	}
}

func TestStoreFailureSurfacesAsUnavailable(t *testing.T) {
	storeErr := errors.New("database is locked")
	core, logs := observer.New(zapcore.ErrorLevel)
	service := newTestService(t, &fakeStore{err: storeErr}, 0, zap.New(core))

	_, err := service.GetStats(context.Background(), "owner")
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "reports.get_stats.store_unavailable" {
		t.Fatalf("unexpected error code: %v", err)
	}

	if _, err := service.ExportCSV(context.Background(), "owner"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected export to surface store failure, got %v", err)
	}
	if logs.Len() != 2 {
		t.Fatalf("expected two error logs, got %d", logs.Len())
	}
}

func TestGetStatsLogsAnomalies(t *testing.T) {
	store := &fakeStore{records: map[applications.UserID][]applications.Application{
		"owner": {{ID: "broken", Stage: "Ghosted", CreatedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}},
	}}
	core, logs := observer.New(zapcore.WarnLevel)
	service := newTestService(t, store, 0, zap.New(core))

	report, err := service.GetStats(context.Background(), "owner")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if report.Summary.Total != 1 {
		t.Fatalf("expected anomaly to count toward total, got %d", report.Summary.Total)
	}
	entries := logs.FilterMessage("application has unknown stage").All()
	if len(entries) != 1 {
		t.Fatalf("expected one anomaly log, got %d", len(entries))
	}
	if entries[0].ContextMap()["application_id"] != "broken" {
		t.Fatalf("unexpected anomaly log context: %v", entries[0].ContextMap())
	}
}

func TestGetStatsCachesUntilInvalidated(t *testing.T) {
	store := &fakeStore{records: map[applications.UserID][]applications.Application{
		"owner": {{ID: "a", Stage: applications.StageApplied, CreatedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}},
		"other": {{ID: "b", Stage: applications.StageApplied, CreatedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}},
	}}
	service := newTestService(t, store, 8, nil)
	ctx := context.Background()

	for range 2 {
		if _, err := service.GetStats(ctx, "owner"); err != nil {
			t.Fatalf("GetStats failed: %v", err)
		}
	}
	if store.calls != 1 {
		t.Fatalf("expected cached second call, store called %d times", store.calls)
	}

	if _, err := service.GetStats(ctx, "other"); err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	service.Invalidate("owner")

	if _, err := service.GetStats(ctx, "owner"); err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if _, err := service.GetStats(ctx, "other"); err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected only the invalidated owner to be rebuilt, store called %d times", store.calls)
	}
}

func TestGetStatsInKeysCacheByLocation(t *testing.T) {
	followUp := time.Date(2025, 6, 10, 5, 0, 0, 0, time.UTC)
	store := &fakeStore{records: map[applications.UserID][]applications.Application{
		"owner": {{ID: "a", Stage: applications.StageApplied, FollowUpDate: &followUp, CreatedAt: followUp}},
	}}
	service := newTestService(t, store, 8, nil)
	ctx := context.Background()

	// 15:00 UTC is already 2025-06-11 in Auckland, so the follow-up is overdue there.
	auckland, err := time.LoadLocation("Pacific/Auckland")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	utcReport, err := service.GetStatsIn(ctx, "owner", nil)
	if err != nil {
		t.Fatalf("GetStatsIn failed: %v", err)
	}
	aucklandReport, err := service.GetStatsIn(ctx, "owner", auckland)
	if err != nil {
		t.Fatalf("GetStatsIn failed: %v", err)
	}

	if len(utcReport.OverdueFollowUps) != 0 {
		t.Fatalf("expected nothing overdue in UTC, got %d", len(utcReport.OverdueFollowUps))
	}
	if len(aucklandReport.OverdueFollowUps) != 1 {
		t.Fatalf("expected one overdue in Auckland, got %d", len(aucklandReport.OverdueFollowUps))
	}
	if store.calls != 2 {
		t.Fatalf("expected separate cache entries per location, store called %d times", store.calls)
	}
}

func TestExportCSVReturnsAttachment(t *testing.T) {
	store := &fakeStore{records: map[applications.UserID][]applications.Application{
		"owner": {{ID: "a", Company: "Acme", RoleTitle: "Dev", Stage: applications.StageApplied, CreatedAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}},
	}}
	service := newTestService(t, store, 0, nil)

	export, err := service.ExportCSV(context.Background(), "owner")
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if export.Filename != ExportFilename || export.ContentType != ExportContentType {
		t.Fatalf("unexpected export metadata: %+v", export)
	}
	rows := readCSV(t, export.Body)
	if len(rows) != 2 || rows[1][0] != "Acme" {
		t.Fatalf("unexpected export rows: %v", rows)
	}
}

// snapshotStore copies the owner's records on entry, then waits for release,
// so a build can observe data that was replaced while it was blocked.
type snapshotStore struct {
	mutex   sync.Mutex
	records []applications.Application
	entered chan struct{}
	release chan struct{}
	blocked bool
}

func (s *snapshotStore) ListByOwner(_ context.Context, _ applications.UserID) ([]applications.Application, error) {
	s.mutex.Lock()
	snapshot := slices.Clone(s.records)
	shouldBlock := !s.blocked
	s.blocked = true
	s.mutex.Unlock()

	if shouldBlock {
		close(s.entered)
		<-s.release
	}
	return snapshot, nil
}

func (s *snapshotStore) add(record applications.Application) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records = append(s.records, record)
}

func TestGetStatsDoesNotCacheReportBuiltBeforeInvalidation(t *testing.T) {
	store := &snapshotStore{entered: make(chan struct{}), release: make(chan struct{})}
	service := newTestService(t, store, 8, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := service.GetStats(ctx, "owner")
		done <- err
	}()

	<-store.entered
	store.add(applications.Application{ID: "a", Stage: applications.StageApplied, CreatedAt: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)})
	service.Invalidate("owner")
	close(store.release)

	if err := <-done; err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	report, err := service.GetStats(ctx, "owner")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if report.Summary.Total != 1 {
		t.Fatalf("stale report served after invalidation: total=%d want 1", report.Summary.Total)
	}
}

func TestReportCacheSetRejectsStaleGeneration(t *testing.T) {
	cache := newReportCache(4, time.Minute)
	generation := cache.generation("owner")
	cache.invalidateOwner("owner")

	if cache.set("owner", generation, "owner|UTC|2025-06-10", Report{}) {
		t.Fatalf("expected set with stale generation to be rejected")
	}
	if !cache.set("owner", cache.generation("owner"), "owner|UTC|2025-06-10", Report{}) {
		t.Fatalf("expected set with current generation to succeed")
	}
	if _, ok := cache.get("owner|UTC|2025-06-10"); !ok {
		t.Fatalf("expected stored report to be served")
	}

	var disabled *reportCache
	if disabled.set("owner", 0, "key", Report{}) {
		t.Fatalf("disabled cache must not store reports")
	}
}
