package main

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/OCAP2/flightcore/internal/config"
	"github.com/OCAP2/flightcore/internal/database"
	"github.com/OCAP2/flightcore/internal/geo"
	"github.com/OCAP2/flightcore/internal/logging"
	"github.com/OCAP2/flightcore/internal/storage"
	gormstorage "github.com/OCAP2/flightcore/internal/storage/gorm"
	"github.com/OCAP2/flightcore/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/flightcore/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/flightcore/internal/storage/websocket"
)

// backendConstructors wires every storage type to its package.
func backendConstructors(ref *geo.Reference, lm *logging.SlogManager, zlog zerolog.Logger) storage.Constructors {
	return storage.Constructors{
		storage.TypeMemory: func() (storage.Backend, error) {
			return memory.New(config.Memory(), ref), nil
		},
		storage.TypeSQLite: func() (storage.Backend, error) {
			cfg := config.SQLite()
			return sqlitestorage.New(sqlitestorage.Config{
				DumpInterval: cfg.DumpInterval,
				DumpPath:     cfg.DumpPath,
			}, ref, lm.Component("storage"), zlog)
		},
		storage.TypePostgres: func() (storage.Backend, error) {
			db, err := database.Postgres(config.DB(), zlog)
			if err != nil {
				return nil, err
			}
			return gormstorage.New(gormstorage.Dependencies{
				DB:        db,
				Reference: ref,
				Logger:    lm.Component("storage"),
				DBLogger:  zlog,
			}), nil
		},
		storage.TypeWebSocket: func() (storage.Backend, error) {
			cfg := config.WebSocket()
			return wsstorage.New(wsstorage.Config{
				URL:    httpToWS(cfg.URL),
				Secret: cfg.Secret,
			}, ref, lm.Component("storage")), nil
		},
	}
}

func newBackend(typ string, ref *geo.Reference, lm *logging.SlogManager, zlog zerolog.Logger) (storage.Backend, error) {
	b, err := backendConstructors(ref, lm, zlog).New(typ)
	if err != nil {
		return nil, err
	}
	if b == nil {
		lm.Logger().Info("Recording disabled")
		return nil, nil
	}
	lm.Logger().Info("Storage backend initialized", "type", typ)
	return b, nil
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
