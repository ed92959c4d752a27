// Package bbolt provides a BBolt-backed provisioning-request store.
package bbolt

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/vpnca/store"
)

var (
	requestsBucket = []byte("requests") // id -> record JSON
	subjectsBucket = []byte("subjects") // subject -> id
)

// Store implements store.Store backed by a BBolt database. The
// subject-uniqueness check and the insert run inside one write transaction,
// so Create is atomic per subject.
type Store struct {
	db *bbolt.DB
}

var _ store.Store = (*Store)(nil)

// New returns a Store backed by the given BBolt database.
func New(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{requestsBucket, subjectsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens a BBolt database at the given path and returns a new Store.
func Open(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return New(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(rec *store.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		subjects := tx.Bucket(subjectsBucket)
		if subjects.Get([]byte(rec.Subject)) != nil {
			return fmt.Errorf("%s: %w", rec.Subject, store.ErrConflict)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := tx.Bucket(requestsBucket).Put([]byte(rec.ID), data); err != nil {
			return err
		}
		return subjects.Put([]byte(rec.Subject), []byte(rec.ID))
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *Store) FindByID(id string) (*store.Record, error) {
	var rec store.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(requestsBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, store.ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) FindBySubject(subject string) (*store.Record, error) {
	var rec store.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(subjectsBucket).Get([]byte(subject))
		if id == nil {
			return fmt.Errorf("%s: %w", subject, store.ErrNotFound)
		}
		data := tx.Bucket(requestsBucket).Get(id)
		if data == nil {
			return fmt.Errorf("%s: %w", subject, store.ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) UpdateStatus(id string, status store.Status) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		requests := tx.Bucket(requestsBucket)
		data := requests.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, store.ErrNotFound)
		}
		var rec store.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.Status = status
		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return requests.Put([]byte(id), updated)
	})
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		requests := tx.Bucket(requestsBucket)
		data := requests.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, store.ErrNotFound)
		}
		var rec store.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if err := tx.Bucket(subjectsBucket).Delete([]byte(rec.Subject)); err != nil {
			return err
		}
		return requests.Delete([]byte(id))
	})
}
