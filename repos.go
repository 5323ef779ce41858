package subwatch

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/subwatch/pkg/database"
)

type Repository interface {
	WithTransaction(fn func(*gorm.DB) error) error
	Close() error
	connect() (*gorm.DB, error)
}

type repository struct {
	db   *gorm.DB
	conf database.Configuration
}

func newRepository(conf database.Configuration) *repository {
	return &repository{conf: conf}
}

// do whatever within a separate transaction
func (r *repository) WithTransaction(fn func(conn *gorm.DB) error) error {
	if _, err := r.connect(); err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

func (r *repository) connect() (*gorm.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := database.Open(r.conf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database connection")
	}
	r.db = db
	return db, nil
}

func (r *repository) Close() error {
	if r.db == nil {
		return nil
	}
	err := database.Close(r.db)
	r.db = nil
	return err
}

type HistoryRepo interface {
	AddScans(...*ScanRecord) error
	// Most recent scans first. An empty domain matches every domain, a
	// non-positive limit returns everything.
	FindScans(domain string, limit int) ([]*ScanRecord, error)
	Close() error
}

// Scan ledger kept in sqlite
type historyRepo struct {
	Repository
}

func NewHistoryRepo(fpath string) *historyRepo {
	conf := database.NewConfiguration(fpath, &ScanRecord{})
	return &historyRepo{newRepository(conf)}
}

func (r *historyRepo) AddScans(s ...*ScanRecord) error {
	if len(s) == 0 {
		return nil
	}
	return r.WithTransaction(func(d *gorm.DB) error {
		q := d.Create(s)
		if err := q.Error; err != nil {
			return errors.Wrap(err, "failed to create scan record(s)")
		}
		return nil
	})
}

func (r *historyRepo) FindScans(domain string, limit int) ([]*ScanRecord, error) {
	var scans []*ScanRecord
	err := r.WithTransaction(func(d *gorm.DB) error {
		q := d.Order("created_at DESC").Order("id DESC")
		if domain != "" {
			q = q.Where("domain = ?", domain)
		}
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Find(&scans).Error; err != nil {
			return errors.Wrap(err, "failed to find scans")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scans, nil
}
