// Package db opens the database and registers the plugins the models rely on
package db

import (
	"errors"
	"fmt"
	"os"

	"bitwise74/proffer/internal/model"
	"bitwise74/proffer/pkg/util"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func New(plugins ...gorm.Plugin) (*gorm.DB, error) {
	dsn := viper.GetString("db.dsn")

	var dialector gorm.Dialector

	switch viper.GetString("db.driver") {
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if util.IsRunningInDocker() {
			if _, err := os.Stat(dsn); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to /app/%s", dsn)
			}
		}

		dialector = sqlite.Open(dsn)
	}

	return Open(dialector, plugins...)
}

// Open connects using dialector, registers plugins and migrates the models
func Open(dialector gorm.Dialector, plugins ...gorm.Plugin) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	for _, p := range plugins {
		if err := db.Use(p); err != nil {
			return nil, fmt.Errorf("failed to register %s plugin, %w", p.Name(), err)
		}
	}

	err = db.AutoMigrate(model.Photo{}, model.Stats{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
