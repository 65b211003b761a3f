package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"ragpipe/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the record format.
const CurrentSchemaVersion = 1

var keySchemaVersion = []byte("schema_version")

// SchemaVersion reads the stored schema version; 0 means none was written.
func (s *BoltStore) SchemaVersion() (int, error) {
	var version int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		data := b.Get(keySchemaVersion)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &version); err != nil {
			return fmt.Errorf("%w: decode schema version: %w", domain.ErrCorruptIndex, err)
		}
		return nil
	})
	return version, err
}

// CheckSchema rejects files without a schema version and files written by a
// newer build.
func (s *BoltStore) CheckSchema() error {
	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}

	switch {
	case version == 0:
		return fmt.Errorf("%w: record store has no schema version", domain.ErrCorruptIndex)
	case version > CurrentSchemaVersion:
		return fmt.Errorf("%w: record store created by newer version (v%d > v%d)", domain.ErrCorruptIndex, version, CurrentSchemaVersion)
	}
	return nil
}

func putSchemaVersion(tx *bbolt.Tx, version int) error {
	data, err := json.Marshal(version)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
}
