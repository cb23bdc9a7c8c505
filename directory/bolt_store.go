package directory

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"
)

const bucketSchools = "schools"

// BoltStore keeps schools in a single bolt file, keyed by a big-endian id.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSchools))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Create(ctx context.Context, school School) (School, error) {
	if err := ctx.Err(); err != nil {
		return School{}, err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucketSchools))
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		school.ID = int64(seq)
		b, err := jsoniter.Marshal(&school)
		if err != nil {
			return err
		}
		return bkt.Put(itob(seq), b)
	})
	if err != nil {
		return School{}, fmt.Errorf("create school: %w", err)
	}
	return school, nil
}

func (s *BoltStore) List(ctx context.Context) ([]School, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []School
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSchools)).ForEach(func(_, v []byte) error {
			var school School
			if err := jsoniter.Unmarshal(v, &school); err != nil {
				return err
			}
			out = append(out, school)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	sortByName(out)
	return out, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
