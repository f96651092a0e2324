package storage

import (
	"errors"

	"github.com/alitagps/tk103/cli/receiver/storage/store/mysql"
	"github.com/alitagps/tk103/cli/receiver/storage/store/postgresql"
	"github.com/alitagps/tk103/cli/receiver/storage/store/rabbitmq"
	"github.com/alitagps/tk103/cli/receiver/storage/store/redis"
	"github.com/alitagps/tk103/cli/receiver/storage/store/tarantool_queue"
	"github.com/alitagps/tk103/libs/tk103"
)

var ErrInvalidStorage = errors.New("storage not found")
var ErrUnknownStorage = errors.New("storage isn't supported yet")

type Store interface {
	Connector
	Saver
}

// Saver persists one decoded location.
type Saver interface {
	Save(*tk103.Location) error
}

// Connector is the lifecycle half of an output storage.
type Connector interface {
	// Init opens the connection with the storage-specific parameter map.
	Init(map[string]string) error

	// Close releases the connection.
	Close() error
}

// Repository fans a location out to every configured storage.
type Repository struct {
	storages   []Saver
	connectors []Connector
}

// AddStore registers a storage for saving.
func (r *Repository) AddStore(s Saver) {
	r.storages = append(r.storages, s)
}

// Save writes the location to all registered storages. The first failing
// storage aborts the fan-out; persistence is at-most-once per storage.
func (r *Repository) Save(loc *tk103.Location) error {
	for _, store := range r.storages {
		if err := store.Save(loc); err != nil {
			return err
		}
	}
	return nil
}

// LoadStorages instantiates and connects the storages named in the config.
func (r *Repository) LoadStorages(storages map[string]map[string]string) error {
	if len(storages) == 0 {
		return ErrInvalidStorage
	}

	var db Store
	for store, params := range storages {
		switch store {
		case "rabbitmq":
			db = &rabbitmq.Connector{}
		case "postgresql":
			db = &postgresql.Connector{}
		case "tarantool_queue":
			db = &tarantool_queue.Connector{}
		case "redis":
			db = &redis.Connector{}
		case "mysql":
			db = &mysql.Connector{}
		default:
			return ErrUnknownStorage
		}

		if err := db.Init(params); err != nil {
			return err
		}

		r.AddStore(db)
		r.connectors = append(r.connectors, db)
	}
	return nil
}

// Close shuts down every connected storage.
func (r *Repository) Close() {
	for _, c := range r.connectors {
		_ = c.Close()
	}
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{}
}
