package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	log "github.com/sirupsen/logrus"
)

// Migration applies every pending up migration found in migratePath.
func Migration(dsn, migratePath string) error {
	if dsn == "" {
		return errors.New("empty database connection string")
	}
	if migratePath == "" {
		return errors.New("empty migrations path")
	}

	m, err := migrate.New("file://"+migratePath, dsn)
	if err != nil {
		log.WithError(err).Error("[ERROR] failed to initialise migrations")
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.WithFields(log.Fields{"source": srcErr, "database": dbErr}).Warn("closing migrator")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.WithError(err).Error("[ERROR] failed to apply migrations")
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.WithFields(log.Fields{"version": version, "dirty": dirty}).Info("[SUCCESS] migrations applied")
	return nil
}
