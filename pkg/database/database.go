package database

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const InMemory = ":memory:"

type Configuration struct {
	Filepath string
	Config   *gorm.Config
	Models   []any
}

func NewConfiguration(fpath string, models ...any) Configuration {
	return Configuration{
		Filepath: fpath,
		Config: &gorm.Config{
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
			Logger:                 logger.Default.LogMode(logger.Silent),
		},
		Models: models,
	}
}

// Opens the database, creating its directory, and migrates the models.
func Open(conf Configuration) (*gorm.DB, error) {
	if conf.Filepath != InMemory {
		if err := os.MkdirAll(filepath.Dir(conf.Filepath), 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory for %s", conf.Filepath)
		}
	}

	db, err := gorm.Open(sqlite.Open(conf.Filepath), conf.Config)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", conf.Filepath)
	}

	db = db.Exec("PRAGMA foreign_keys = ON")
	if err := db.AutoMigrate(conf.Models...); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate database %s", conf.Filepath)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
