package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"time"

	"go.etcd.io/bbolt"
	"ragpipe/internal/domain"
)

var (
	bucketMeta    = []byte("meta")
	bucketRecords = []byte("records")
	keyIndexMeta  = []byte("index")
)

const openTimeout = 2 * time.Second

// Meta describes the index a record file belongs to.
type Meta struct {
	IndexID   string    `json:"index_id"`
	Metric    string    `json:"metric"`
	Dimension int       `json:"dimension"`
	Count     int       `json:"count"`
	Documents int       `json:"documents"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BoltStore keeps chunk records in insertion order next to the vector blob.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates or opens a writable record file.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open record store %s: %w", domain.ErrIOFailure, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketRecords} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
	}

	return &BoltStore{db: db}, nil
}

// OpenBoltStore opens an existing record file read-only and checks that its
// schema is one this build understands.
func OpenBoltStore(path string) (*BoltStore, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", domain.ErrIOFailure, err)
		}
		return nil, fmt.Errorf("%w: stat %s: %w", domain.ErrIOFailure, path, err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout, ReadOnly: true})
	if err != nil {
		if errors.Is(err, iofs.ErrPermission) || errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: open record store %s: %w", domain.ErrIOFailure, path, err)
		}
		return nil, fmt.Errorf("%w: record store %s: %w", domain.ErrCorruptIndex, path, err)
	}

	s := &BoltStore{db: db}
	if err := s.CheckSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// PutMeta stores the index description together with the schema version.
func (s *BoltStore) PutMeta(meta Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putSchemaVersion(tx, CurrentSchemaVersion); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyIndexMeta, data)
	})
}

func (s *BoltStore) GetMeta() (Meta, error) {
	var meta Meta
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return fmt.Errorf("%w: meta bucket missing", domain.ErrCorruptIndex)
		}
		data := b.Get(keyIndexMeta)
		if data == nil {
			return fmt.Errorf("%w: index meta missing", domain.ErrCorruptIndex)
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("%w: decode index meta: %w", domain.ErrCorruptIndex, err)
		}
		return nil
	})
	return meta, err
}

// AppendRecords writes chunks after the existing ones in a single
// transaction. Keys are big-endian positions, so cursor order is
// insertion order.
func (s *BoltStore) AppendRecords(chunks []domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		var next uint64
		if k, _ := b.Cursor().Last(); k != nil {
			next = binary.BigEndian.Uint64(k) + 1
		}

		for i, chunk := range chunks {
			data, err := json.Marshal(chunk)
			if err != nil {
				return err
			}
			if err := b.Put(positionKey(next+uint64(i)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Records returns all chunks in position order. A gap in the positions or an
// undecodable record is reported as corruption.
func (s *BoltStore) Records() ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b == nil {
			return fmt.Errorf("%w: records bucket missing", domain.ErrCorruptIndex)
		}

		var want uint64
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 8 || binary.BigEndian.Uint64(k) != want {
				return fmt.Errorf("%w: unexpected record key %x at position %d", domain.ErrCorruptIndex, k, want)
			}
			var chunk domain.Chunk
			if err := json.Unmarshal(v, &chunk); err != nil {
				return fmt.Errorf("%w: decode record %d: %w", domain.ErrCorruptIndex, want, err)
			}
			chunks = append(chunks, chunk)
			want++
			return nil
		})
	})
	return chunks, err
}

func positionKey(pos uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, pos)
	return key
}
