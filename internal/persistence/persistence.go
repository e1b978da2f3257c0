package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/markusressel/hddfan/internal/calibration"
	"github.com/markusressel/hddfan/internal/ui"
	bolt "go.etcd.io/bbolt"
)

const (
	BucketCalibration = "calibration"
)

type StoredCalibration struct {
	calibration.Result
	CalibratedAt time.Time `json:"calibratedAt"`
}

type Persistence interface {
	Init() error

	LoadCalibration(fanId string) (StoredCalibration, error)
	SaveCalibration(fanId string, result calibration.Result) error
	DeleteCalibration(fanId string) error
}

type persistence struct {
	dbPath string
	now    func() time.Time
}

func NewPersistence(dbPath string) Persistence {
	return &persistence{
		dbPath: dbPath,
		now:    time.Now,
	}
}

func (p persistence) Init() (err error) {
	parentDir := filepath.Dir(p.dbPath)
	_, err = os.Stat(parentDir)
	if errors.Is(err, os.ErrNotExist) {
		ui.Info("Creating directory for db: %s", parentDir)
		err = os.MkdirAll(parentDir, 0755)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p persistence) openPersistence() (db *bolt.DB, err error) {
	db, err = bolt.Open(p.dbPath, 0600, &bolt.Options{Timeout: 1 * time.Minute})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// SaveCalibration stores the calibration result of the given fan
func (p persistence) SaveCalibration(fanId string, result calibration.Result) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	data, err := json.Marshal(StoredCalibration{
		Result:       result,
		CalibratedAt: p.now(),
	})
	if err != nil {
		return err
	}

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketCalibration))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return b.Put([]byte(fanId), data)
	})
}

// LoadCalibration loads the calibration result of the given fan.
// Returns os.ErrNotExist if the fan has not been calibrated yet.
func (p persistence) LoadCalibration(fanId string) (StoredCalibration, error) {
	db, err := p.openPersistence()
	if err != nil {
		return StoredCalibration{}, err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	var stored StoredCalibration
	corrupt := false
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketCalibration))
		if b == nil {
			return os.ErrNotExist
		}
		v := b.Get([]byte(fanId))
		if v == nil {
			return os.ErrNotExist
		}

		err := json.Unmarshal(v, &stored)
		if err != nil {
			// if we cannot read the saved data, delete it
			ui.Warning("Unable to unmarshal saved calibration for %s: %v", fanId, err)
			err := b.Delete([]byte(fanId))
			if err != nil {
				ui.Error("Unable to delete corrupt data key %s: %v", fanId, err)
			}
			corrupt = true
		}
		return nil
	})
	if err == nil && corrupt {
		return StoredCalibration{}, os.ErrNotExist
	}

	return stored, err
}

func (p persistence) DeleteCalibration(fanId string) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketCalibration))
		if b == nil {
			// no calibration bucket yet
			return nil
		}
		if b.Get([]byte(fanId)) == nil {
			return nil
		}
		return b.Delete([]byte(fanId))
	})
}
