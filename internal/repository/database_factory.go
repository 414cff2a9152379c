package repository

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// DatabaseType represents different database backend options
type DatabaseType string

const (
	DatabaseTypeBadger DatabaseType = "badger"
	DatabaseTypeBolt   DatabaseType = "bolt"
	DatabaseTypeMemory DatabaseType = "memory"
)

// ParseDatabaseType normalises a configured backend name, defaulting to badger
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch DatabaseType(strings.ToLower(strings.TrimSpace(s))) {
	case "", DatabaseTypeBadger:
		return DatabaseTypeBadger, nil
	case DatabaseTypeBolt:
		return DatabaseTypeBolt, nil
	case DatabaseTypeMemory:
		return DatabaseTypeMemory, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// NewStore creates a document store with the specified database type
//
// Database Types:
// - badger: LSM-tree database (default), directory based
// - bolt: B+ tree database in a single .bolt file
// - memory: nothing persisted, for tests and demos
func NewStore(dbPath string, dbType DatabaseType, logger *logrus.Logger) (Store, error) {
	switch dbType {
	case DatabaseTypeBolt:
		if !strings.HasSuffix(dbPath, ".bolt") {
			dbPath = dbPath + ".bolt"
		}
		return NewBoltStore(dbPath)

	case DatabaseTypeBadger:
		return NewBadgerStore(dbPath, logger)

	case DatabaseTypeMemory:
		return NewInMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// GetDatabaseInfo describes the available backends
func GetDatabaseInfo() map[DatabaseType]string {
	return map[DatabaseType]string{
		DatabaseTypeBadger: "LSM-tree database. Fast writes, directory based storage with value logs.",
		DatabaseTypeBolt:   "Compact B+ tree database. Single file storage, good for small deployments.",
		DatabaseTypeMemory: "In-process maps. Nothing survives a restart.",
	}
}
