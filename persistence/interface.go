// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/matchgame/config"
	"github.com/wfunc/matchgame/models"
)

// Store is the durable side of the room registry. Live rooms are always
// authoritative; the store is a mirror used for rehydration and history.
type Store interface {
	SaveRoom(ctx context.Context, room models.RoomSnapshot) error
	DeleteRoom(ctx context.Context, code string) error
	LoadRooms(ctx context.Context) ([]models.RoomSnapshot, error)
	SaveGameRecord(ctx context.Context, record models.GameRecord) error
	Summary(ctx context.Context) (models.Summary, error)
	Close() error
}

var ErrNoStore = errors.New("no store configured")

// Open connects the store selected by cfg.Driver. DriverNone yields
// ErrNoStore.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverGorm:
		return NewGormPostgreSQL(cfg.Postgres)
	case config.DriverPostgres:
		return NewPostgreSQL(cfg.Postgres)
	case config.DriverRedis:
		return NewRedis(cfg.Redis)
	case config.DriverNone, "":
		return nil, ErrNoStore
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
