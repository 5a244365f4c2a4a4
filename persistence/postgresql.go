// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/wfunc/matchgame/config"
	"github.com/wfunc/matchgame/models"
)

// PostgreSQL stores rooms and records with plain SQL over lib/pq.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(cfg config.PostgresConfig) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgreSQL{db: db}, nil
}

// initTables creates the same schema GORM migrates, so both drivers can
// share a database.
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS rooms (
            id BIGSERIAL PRIMARY KEY,
            code VARCHAR(16) UNIQUE NOT NULL,
            max_number BIGINT NOT NULL,
            has_used_reverse BOOLEAN NOT NULL DEFAULT FALSE,
            state VARCHAR(16) NOT NULL,
            players JSONB,
            created_at TIMESTAMPTZ,
            updated_at TIMESTAMPTZ
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id BIGSERIAL PRIMARY KEY,
            room_code VARCHAR(16) NOT NULL,
            max_number BIGINT NOT NULL,
            first BIGINT NOT NULL,
            second BIGINT NOT NULL,
            "match" BOOLEAN NOT NULL,
            reversed BOOLEAN NOT NULL,
            played_at TIMESTAMPTZ
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_records_room_code ON game_records(room_code);
        CREATE INDEX IF NOT EXISTS idx_game_records_match ON game_records("match");
    `)
	return err
}

func (p *PostgreSQL) SaveRoom(ctx context.Context, room models.RoomSnapshot) error {
	players, err := json.Marshal(room.Players)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO rooms (code, max_number, has_used_reverse, state, players, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (code)
        DO UPDATE SET max_number = $2, has_used_reverse = $3, state = $4, players = $5, updated_at = $7
    `
	_, err = p.db.ExecContext(ctx, query,
		room.Code, room.MaxNumber, room.HasUsedReverse, room.State, players, room.CreatedAt, room.UpdatedAt)
	return err
}

func (p *PostgreSQL) DeleteRoom(ctx context.Context, code string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM rooms WHERE code = $1`, code)
	return err
}

func (p *PostgreSQL) LoadRooms(ctx context.Context) ([]models.RoomSnapshot, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT code, max_number, has_used_reverse, state, players, created_at, updated_at
        FROM rooms ORDER BY created_at
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.RoomSnapshot
	for rows.Next() {
		var (
			s       models.RoomSnapshot
			players []byte
		)
		if err := rows.Scan(&s.Code, &s.MaxNumber, &s.HasUsedReverse, &s.State, &players, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if len(players) > 0 {
			if err := json.Unmarshal(players, &s.Players); err != nil {
				return nil, err
			}
		}
		rooms = append(rooms, s)
	}
	return rooms, rows.Err()
}

func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	query := `
        INSERT INTO game_records (room_code, max_number, first, second, "match", reversed, played_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := p.db.ExecContext(ctx, query,
		record.RoomCode, record.MaxNumber, record.Numbers[0], record.Numbers[1],
		record.Match, record.Reversed, record.PlayedAt)
	return err
}

func (p *PostgreSQL) Summary(ctx context.Context) (models.Summary, error) {
	var s models.Summary
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN "match" THEN 1 ELSE 0 END), 0) FROM game_records`,
	).Scan(&s.Rounds, &s.Matches)
	return s, err
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
