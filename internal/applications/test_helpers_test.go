package applications

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("app-%03d", p.next), nil
}

type steppingClock struct {
	current time.Time
	step    time.Duration
}

func (c *steppingClock) Now() time.Time {
	value := c.current
	c.current = c.current.Add(c.step)
	return value
}

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "applications.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Application{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(testContext *testing.T) (*Service, *steppingClock) {
	testContext.Helper()
	clock := &steppingClock{current: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), step: time.Minute}
	service, err := NewService(ServiceConfig{
		Database:   openTestDatabase(testContext),
		Clock:      clock.Now,
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		testContext.Fatalf("failed to build service: %v", err)
	}
	return service, clock
}
