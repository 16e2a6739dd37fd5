package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/sleepmon/internal/conf"
	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/session"
)

const slowQueryThreshold = 200 * time.Millisecond

// SessionRow is the indexed form of a session report.
type SessionRow struct {
	ID                uint      `gorm:"primaryKey"`
	SessionKey        string    `gorm:"size:96;uniqueIndex"`
	StartTime         time.Time `gorm:"index"`
	EndTime           time.Time
	SleepScore        float64
	DurationHours     float64
	MotionEvents      int
	MotionHours       float64
	MotionPercentage  float64
	SoundPeaks        int
	SoundPeaksPerHour float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName pins the table name.
func (SessionRow) TableName() string {
	return "sleep_sessions"
}

// Stats aggregates indexed sessions.
type Stats struct {
	Sessions     int64     `json:"sessions"`
	AverageScore float64   `json:"average_score"`
	MinScore     float64   `json:"min_score"`
	MaxScore     float64   `json:"max_score"`
	AverageHours float64   `json:"average_hours"`
	MotionEvents int64     `json:"motion_events"`
	SoundPeaks   int64     `json:"sound_peaks"`
	Since        time.Time `json:"since"`
}

// Index is a SQL table of session reports used for aggregate queries. The
// JSON files stay authoritative; the index can be rebuilt from them.
type Index struct {
	db     *gorm.DB
	dbType string
	log    logger.Logger
}

// OpenIndex opens the configured index database and migrates its schema.
func OpenIndex(settings conf.IndexSettings) (*Index, error) {
	switch settings.Type {
	case conf.IndexMySQL:
		return OpenMySQLIndex(settings.MySQL)
	case conf.IndexSQLite, "":
		return OpenSQLiteIndex(settings.SQLite.Path)
	default:
		return nil, errors.ValidationError("unsupported index type " + settings.Type)
	}
}

func newIndex(dialector gorm.Dialector, dbType, target string) (*Index, error) {
	log := GetLogger().With(logger.String("db_type", dbType))

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Context("target", target).
			Context("operation", "open").
			Build()
	}

	started := time.Now()
	if err := db.AutoMigrate(&SessionRow{}); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Timing("auto_migrate", time.Since(started)).
			Build()
	}

	log.Info("session index opened", logger.String("target", target))
	return &Index{db: db, dbType: dbType, log: log}, nil
}

// Upsert stores or replaces the row of a session.
func (i *Index) Upsert(ctx context.Context, id string, rec *session.Record) error {
	sum := Summarize(id, rec)
	row := SessionRow{
		SessionKey:        id,
		StartTime:         rec.StartTime,
		EndTime:           rec.EndTime,
		SleepScore:        sum.SleepScore,
		DurationHours:     sum.MonitoringHours,
		MotionEvents:      sum.MovementEvents,
		MotionHours:       sum.TotalMotionHours,
		MotionPercentage:  sum.MotionPercentage,
		SoundPeaks:        sum.NoiseEvents,
		SoundPeaksPerHour: sum.SoundPeaksPerHour,
	}

	err := i.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"start_time", "end_time", "sleep_score", "duration_hours", "motion_events",
			"motion_hours", "motion_percentage", "sound_peaks", "sound_peaks_per_hour", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return i.dbError(err, "upsert").Context("session_id", id).Build()
	}
	return nil
}

// Stats aggregates sessions starting at or after since.
func (i *Index) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	var st Stats
	err := i.db.WithContext(ctx).Model(&SessionRow{}).
		Select(`COUNT(*) AS sessions,
			COALESCE(AVG(sleep_score), 0) AS average_score,
			COALESCE(MIN(sleep_score), 0) AS min_score,
			COALESCE(MAX(sleep_score), 0) AS max_score,
			COALESCE(AVG(duration_hours), 0) AS average_hours,
			COALESCE(SUM(motion_events), 0) AS motion_events,
			COALESCE(SUM(sound_peaks), 0) AS sound_peaks`).
		Where("start_time >= ?", since).
		Scan(&st).Error
	if err != nil {
		return nil, i.dbError(err, "stats").Build()
	}

	st.AverageScore = session.Round2(st.AverageScore)
	st.AverageHours = session.Round2(st.AverageHours)
	st.Since = since
	return &st, nil
}

// Rows returns indexed sessions starting at or after since, oldest first.
func (i *Index) Rows(ctx context.Context, since time.Time) ([]SessionRow, error) {
	var rows []SessionRow
	err := i.db.WithContext(ctx).
		Where("start_time >= ?", since).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, i.dbError(err, "rows").Build()
	}
	return rows, nil
}

// Rebuild indexes every readable record of store and returns the count.
func (i *Index) Rebuild(ctx context.Context, store *FileStore) (int, error) {
	started := time.Now()
	count := 0
	err := store.Records(ctx, func(id string, rec *session.Record) error {
		if err := i.Upsert(ctx, id, rec); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	i.log.Info("session index rebuilt",
		logger.Int("sessions", count),
		logger.Duration("elapsed", time.Since(started)))
	return count, nil
}

// OnReport indexes a freshly persisted session.
func (i *Index) OnReport(ctx context.Context, res *session.Result) error {
	return i.Upsert(ctx, SessionID(res.Location), res.Record)
}

// Close closes the database connection.
func (i *Index) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return i.dbError(err, "close").Build()
	}
	return sqlDB.Close()
}

func (i *Index) dbError(err error, op string) *errors.ErrorBuilder {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("db_type", i.dbType).
		Context("operation", op)
}
