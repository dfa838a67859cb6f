package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"pickupBoard/internal/model"
)

const (
	bucketTemplates = "templates"
	bucketBlasts    = "blasts"
)

// BoltStorage keeps the service's local memo: fetched automation templates
// and the log of queued recruitment blasts.
type BoltStorage struct {
	db *bolt.DB
}

func NewBoltStorage(dbPath string) (*BoltStorage, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketTemplates, bucketBlasts} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func (s *BoltStorage) PutTemplate(t model.Template) error {
	return s.put(bucketTemplates, t.ID, t)
}

// GetTemplate returns nil when the template was never cached.
func (s *BoltStorage) GetTemplate(id string) (*model.Template, error) {
	var t model.Template
	found, err := s.get(bucketTemplates, id, &t)
	if err != nil || !found {
		return nil, err
	}
	return &t, nil
}

func (s *BoltStorage) SaveBlast(b model.Blast) error {
	return s.put(bucketBlasts, b.ID, b)
}

func (s *BoltStorage) GetBlast(id string) (*model.Blast, error) {
	var b model.Blast
	found, err := s.get(bucketBlasts, id, &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// RecentBlasts returns up to limit blasts, latest fire time first.
func (s *BoltStorage) RecentBlasts(limit int) ([]model.Blast, error) {
	var blasts []model.Blast
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBlasts)).ForEach(func(k, v []byte) error {
			var b model.Blast
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			blasts = append(blasts, b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(blasts, func(i, j int) bool { return blasts[i].FireAt.After(blasts[j].FireAt) })
	if limit > 0 && len(blasts) > limit {
		blasts = blasts[:limit]
	}
	return blasts, nil
}

// CleanupOldBlasts removes blasts that fired before the given time.
func (s *BoltStorage) CleanupOldBlasts(before time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketBlasts))

		var keysToDelete [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var blast model.Blast
			if err := json.Unmarshal(v, &blast); err != nil {
				return err
			}
			if blast.FireAt.Before(before) {
				keysToDelete = append(keysToDelete, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, key := range keysToDelete {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStorage) put(bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}

func (s *BoltStorage) get(bucket, key string, v any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}
