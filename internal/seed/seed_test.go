package seed

import (
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
)

func TestEnsureDevDataIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&leaddomain.Lead{}, &leaddomain.LeadPool{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(9)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	tenantID := snowflake.ID(1)
	for i := 0; i < 2; i++ {
		if err := EnsureDevData(db, node, tenantID); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	var pools, leads int64
	db.Model(&leaddomain.LeadPool{}).Count(&pools)
	db.Model(&leaddomain.Lead{}).Count(&leads)
	if pools != 1 {
		t.Fatalf("expected 1 pool, got %d", pools)
	}
	if leads != devPoolSize {
		t.Fatalf("expected %d leads, got %d", devPoolSize, leads)
	}
}
