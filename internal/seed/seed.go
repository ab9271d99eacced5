// Package seed bootstraps development data for local runs.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	leaddomain "github.com/Romeobluesky/callup-api/internal/lead/domain"
)

const (
	devPoolTitle = "Demo Outreach"
	devPoolSize  = 25
)

// EnsureDevData seeds one demo pool with unused leads when the tenant has
// no pools yet. Idempotent: a second run is a no-op.
func EnsureDevData(db *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}
	if tenantID == 0 {
		return errors.New("seed tenant id is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&leaddomain.LeadPool{}).
			Where("tenant_id = ?", tenantID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return seedPoolTx(ctx, tx, node, tenantID)
	})
}

func seedPoolTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) error {
	now := time.Now().UTC()
	pool := &leaddomain.LeadPool{
		ID:          node.Generate(),
		TenantID:    tenantID,
		Title:       devPoolTitle,
		TotalCount:  devPoolSize,
		UnusedCount: devPoolSize,
		IsActive:    true,
		IngestedAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(pool).Error; err != nil {
		return err
	}

	leads := make([]leaddomain.Lead, 0, devPoolSize)
	for i := 0; i < devPoolSize; i++ {
		leads = append(leads, leaddomain.Lead{
			ID:       node.Generate(),
			TenantID: tenantID,
			PoolID:   pool.ID,
			Status:   leaddomain.LeadStatusUnused,
			Name:     fmt.Sprintf("Demo Lead %02d", i+1),
			Phone:    fmt.Sprintf("010-0000-%04d", i+1),
			Info: datatypes.JSONMap{
				"source": "seed",
				"memo":   "",
			},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return tx.WithContext(ctx).CreateInBatches(leads, 100).Error
}
