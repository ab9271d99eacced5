package migration

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := RunMigrations(gormDB); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(gormDB); err != nil {
		t.Fatalf("second run: %v", err)
	}

	for _, table := range []string{"leads", "lead_pools", "dispositions", "statistics", "assignments", "call_events"} {
		var count int64
		err := gormDB.Raw("SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count).Error
		if err != nil {
			t.Fatalf("inspect %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("table %s missing after migration", table)
		}
	}

	var applied int64
	if err := gormDB.Raw("SELECT COUNT(1) FROM schema_migrations").Scan(&applied).Error; err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 recorded version, got %d", applied)
	}
}

func TestRunMigrationsRejectsNilHandle(t *testing.T) {
	if err := RunMigrations(nil); err == nil {
		t.Fatal("expected an error for a nil database handle")
	}
}
