// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/matchgame/config"
	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/models"
)

// GormPostgreSQL stores rooms and records through GORM.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(cfg config.PostgresConfig) (*GormPostgreSQL, error) {
	// GORM logs through zap at warn level.
	gormLog := gormlogger.New(
		zap.NewStdLog(logger.Log.Desugar()),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormRoom{}, &models.GormGameRecord{}); err != nil {
		return nil, err
	}
	return &GormPostgreSQL{db: db}, nil
}

// SaveRoom upserts by room code.
func (p *GormPostgreSQL) SaveRoom(ctx context.Context, room models.RoomSnapshot) error {
	row := models.NewGormRoom(room)
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_number", "has_used_reverse", "state", "players", "updated_at"}),
	}).Create(&row).Error
}

func (p *GormPostgreSQL) DeleteRoom(ctx context.Context, code string) error {
	return p.db.WithContext(ctx).Where("code = ?", code).Delete(&models.GormRoom{}).Error
}

func (p *GormPostgreSQL) LoadRooms(ctx context.Context) ([]models.RoomSnapshot, error) {
	var rows []models.GormRoom
	if err := p.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	rooms := make([]models.RoomSnapshot, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.Snapshot())
	}
	return rooms, nil
}

func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	row := models.NewGormGameRecord(record)
	return p.db.WithContext(ctx).Create(&row).Error
}

func (p *GormPostgreSQL) Summary(ctx context.Context) (models.Summary, error) {
	var s models.Summary
	err := p.db.WithContext(ctx).
		Model(&models.GormGameRecord{}).
		Select(`COUNT(*) AS rounds, COALESCE(SUM(CASE WHEN "match" THEN 1 ELSE 0 END), 0) AS matches`).
		Scan(&s).Error
	return s, err
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
