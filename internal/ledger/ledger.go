package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"sigfuse/internal/types"
)

// ErrSignalNotFound is returned when an outcome references an unknown signal.
var ErrSignalNotFound = errors.New("signal not found")

// Store is the append-only signal ledger backed by Gorm + SQLite. Signals are
// never updated or deleted; outcomes attach to a signal id at most once.
type Store struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewStore opens (creating if needed) the ledger database at path.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger: database path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&signalModel{}, &outcomeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent readers while keeping
	// lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db, clock: time.Now}, nil
}

// SetClock injects a clock for tests.
func (s *Store) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record appends a signal. The signal id must be unique; replays of the same
// id are rejected so the ledger stays append-only.
func (s *Store) Record(ctx context.Context, sig types.Signal) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger not initialized")
	}
	if strings.TrimSpace(sig.ID) == "" {
		return fmt.Errorf("ledger: signal id required")
	}
	model := newSignalModel(sig, s.clock())
	return s.db.WithContext(ctx).Create(&model).Error
}

// Get returns one signal by id.
func (s *Store) Get(ctx context.Context, signalID string) (types.Signal, bool, error) {
	if s == nil || s.db == nil {
		return types.Signal{}, false, fmt.Errorf("ledger not initialized")
	}
	var model signalModel
	err := s.db.WithContext(ctx).Where("signal_id = ?", signalID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Signal{}, false, nil
		}
		return types.Signal{}, false, err
	}
	return signalModelToRecord(model), true, nil
}

// AttachOutcome attaches a realized outcome to a signal. Attaching twice for
// the same signal id is an idempotent no-op so retried evaluation jobs stay
// harmless; the first attached outcome wins.
func (s *Store) AttachOutcome(ctx context.Context, out types.Outcome) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger not initialized")
	}
	if strings.TrimSpace(out.SignalID) == "" {
		return fmt.Errorf("ledger: signal id required")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&signalModel{}).
		Where("signal_id = ?", out.SignalID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrSignalNotFound, out.SignalID)
	}
	model := newOutcomeModel(out)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "signal_id"}},
			DoNothing: true,
		}).
		Create(&model).Error
}

// Outcome returns the outcome attached to a signal, if any.
func (s *Store) Outcome(ctx context.Context, signalID string) (types.Outcome, bool, error) {
	if s == nil || s.db == nil {
		return types.Outcome{}, false, fmt.Errorf("ledger not initialized")
	}
	var model outcomeModel
	err := s.db.WithContext(ctx).Where("signal_id = ?", signalID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Outcome{}, false, nil
		}
		return types.Outcome{}, false, err
	}
	return outcomeModelToRecord(model), true, nil
}

// PendingSignals lists LONG/SHORT signals generated before the cutoff that
// have no outcome yet; the evaluation job feeds on this.
func (s *Store) PendingSignals(ctx context.Context, before time.Time, limit int) ([]types.Signal, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []signalModel
	err := s.db.WithContext(ctx).
		Select("signals.*").
		Joins("LEFT JOIN outcomes ON outcomes.signal_id = signals.signal_id").
		Where("outcomes.id IS NULL").
		Where("signals.generated_at <= ?", before.UnixMilli()).
		Where("signals.direction IN ?", []string{string(types.DirectionLong), string(types.DirectionShort)}).
		Order("signals.id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Signal, 0, len(models))
	for _, m := range models {
		out = append(out, signalModelToRecord(m))
	}
	return out, nil
}
