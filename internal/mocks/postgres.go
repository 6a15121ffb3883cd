package mocks

import (
	"github.com/Billy-Davies-2/glitch-pits/internal/dal"
	"github.com/Billy-Davies-2/glitch-pits/internal/logger"
)

// MockPostgresDAL stands in for Postgres during local development by
// archiving rounds to SQLite.
type MockPostgresDAL struct {
	*dal.SQLiteDAL
}

// NewMockPostgresDAL creates a mock Postgres DAL using SQLite
func NewMockPostgresDAL(sqliteFile string) (*MockPostgresDAL, error) {
	logger.Info("Using MOCK Postgres (SQLite) for local development", "file", sqliteFile)

	sqliteDAL, err := dal.NewSQLiteDAL(sqliteFile)
	if err != nil {
		return nil, err
	}
	return &MockPostgresDAL{SQLiteDAL: sqliteDAL}, nil
}
