package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"sigfuse/internal/types"
)

const defaultPageSize = 50

// QueryFilter narrows a ledger scan. Zero-valued fields match everything.
type QueryFilter struct {
	Symbol    string
	Direction types.Direction
	Tier      types.Tier
	From      time.Time
	To        time.Time
	PageSize  int
}

func (f QueryFilter) pageSize() int {
	if f.PageSize <= 0 || f.PageSize > 500 {
		return defaultPageSize
	}
	return f.PageSize
}

// Query returns an iterator over matching signals in insertion order. The
// iterator pages with a keyset cursor, so rows appended after a page was read
// still show up and a restart never re-reads rows it already returned.
func (s *Store) Query(filter QueryFilter) *Iterator {
	return &Iterator{store: s, filter: filter}
}

// Iterator walks query results page by page. Not safe for concurrent use.
type Iterator struct {
	store  *Store
	filter QueryFilter

	lastID int64
	buf    []signalModel
	pos    int
	done   bool
}

// Next returns the next matching signal. The second return is false when the
// scan is exhausted.
func (it *Iterator) Next(ctx context.Context) (types.Signal, bool, error) {
	if it.store == nil || it.store.db == nil {
		return types.Signal{}, false, fmt.Errorf("ledger not initialized")
	}
	if it.pos >= len(it.buf) {
		if it.done {
			return types.Signal{}, false, nil
		}
		if err := it.fetch(ctx); err != nil {
			return types.Signal{}, false, err
		}
		if len(it.buf) == 0 {
			return types.Signal{}, false, nil
		}
	}
	model := it.buf[it.pos]
	it.pos++
	it.lastID = model.ID
	return signalModelToRecord(model), true, nil
}

// Reset rewinds the iterator to the start of the scan.
func (it *Iterator) Reset() {
	it.lastID = 0
	it.buf = nil
	it.pos = 0
	it.done = false
}

func (it *Iterator) fetch(ctx context.Context) error {
	size := it.filter.pageSize()
	q := it.store.db.WithContext(ctx).Model(&signalModel{}).
		Where("id > ?", it.lastID).
		Order("id ASC").
		Limit(size)
	q = applyFilter(q, it.filter)

	it.buf = it.buf[:0]
	it.pos = 0
	if err := q.Find(&it.buf).Error; err != nil {
		return err
	}
	if len(it.buf) < size {
		it.done = true
	}
	return nil
}

func applyFilter(q *gorm.DB, f QueryFilter) *gorm.DB {
	if sym := strings.ToUpper(strings.TrimSpace(f.Symbol)); sym != "" {
		q = q.Where("symbol = ?", sym)
	}
	if f.Direction != "" {
		q = q.Where("direction = ?", string(f.Direction))
	}
	if f.Tier != "" {
		q = q.Where("tier = ?", string(f.Tier))
	}
	if !f.From.IsZero() {
		q = q.Where("generated_at >= ?", f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		q = q.Where("generated_at <= ?", f.To.UnixMilli())
	}
	return q
}
