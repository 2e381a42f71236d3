package materials

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"go.etcd.io/bbolt"
)

var materialsBucket = []byte("materials")

// Stored values carry a one-byte format prefix so an empty material is
// distinguishable from a missing key.
const recordV1 byte = 1

// BoltStore keeps all material in a single bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the bbolt database at path.
func NewBoltStore(path string, options *bbolt.Options) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(materialsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Key(phone string) string { return KeyForPhone(phone) }

func (s *BoltStore) Create(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(materialsBucket)
		if b.Get([]byte(key)) != nil {
			return nil
		}
		return b.Put([]byte(key), []byte{recordV1})
	})
}

func (s *BoltStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(materialsBucket).Get([]byte(key)) != nil
		return nil
	})
	return ok, err
}

func (s *BoltStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(materialsBucket).Get([]byte(key))
		if v == nil {
			return common.ErrNotFound
		}
		if len(v) == 0 || v[0] != recordV1 {
			return fmt.Errorf("material %s: unknown record format", key)
		}
		// v is only valid for the life of the transaction.
		out = append([]byte(nil), v[1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Save(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	record := make([]byte, 0, len(data)+1)
	record = append(record, recordV1)
	record = append(record, data...)

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(materialsBucket).Put([]byte(key), record)
	})
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(materialsBucket)
		if b.Get([]byte(key)) == nil {
			return common.ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}
