// Package option provides composable query modifiers for repository reads.
package option

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Romeobluesky/callup-api/pkg/db/pagination"
)

// QueryOption mutates a gorm query before execution.
type QueryOption func(tx *gorm.DB) *gorm.DB

// QuerySortBy restricts sortable columns to an allow-list.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// WithSortBy orders the query by an allowed column, defaulting to created_at.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || (sort.Allow != nil && !sort.Allow[field]) {
			field = "created_at"
		}
		direction := "ASC"
		if sort.Desc {
			direction = "DESC"
		}
		return tx.Order(field + " " + direction + ", id " + direction)
	}
}

// ApplyPagination over-fetches one row beyond the page size so callers can
// detect whether more pages exist, and seeks past the cursor when present.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 50
		}
		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil {
				if id, idErr := strconv.ParseInt(cursor.ID, 10, 64); idErr == nil {
					tx = tx.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, id)
				}
			}
		}
		return tx.Limit(size + 1)
	}
}

// WithLimit bounds the result set without pagination bookkeeping.
func WithLimit(limit int) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if limit > 0 {
			tx = tx.Limit(limit)
		}
		return tx
	}
}
