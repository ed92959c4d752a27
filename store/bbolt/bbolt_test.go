package bbolt

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/vpnca/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "requests.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRecord(subject string) *store.Record {
	return &store.Record{
		Subject:   subject,
		Status:    store.StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
}

func TestStore(t *testing.T) {
	s := newTestStore(t)

	t.Run("CreateAssignsID", func(t *testing.T) {
		id, err := s.Create(newRecord(store.ClientSubject("alice")))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		rec, err := s.FindByID(id)
		require.NoError(t, err)
		assert.Equal(t, store.StatusCreated, rec.Status)
		assert.Equal(t, store.ClientSubject("alice"), rec.Subject)
	})

	t.Run("CreateConflictsOnSubject", func(t *testing.T) {
		_, err := s.Create(newRecord(store.ClientSubject("alice")))
		require.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("FindBySubject", func(t *testing.T) {
		rec, err := s.FindBySubject(store.ClientSubject("alice"))
		require.NoError(t, err)
		assert.Equal(t, store.ClientSubject("alice"), rec.Subject)

		_, err = s.FindBySubject(store.ClientSubject("nobody"))
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		rec, err := s.FindBySubject(store.ClientSubject("alice"))
		require.NoError(t, err)

		require.NoError(t, s.UpdateStatus(rec.ID, store.StatusReady))
		got, err := s.FindByID(rec.ID)
		require.NoError(t, err)
		assert.Equal(t, store.StatusReady, got.Status)

		require.ErrorIs(t, s.UpdateStatus("no-such-id", store.StatusReady), store.ErrNotFound)
	})

	t.Run("DeleteFreesSubject", func(t *testing.T) {
		rec, err := s.FindBySubject(store.ClientSubject("alice"))
		require.NoError(t, err)
		require.NoError(t, s.Delete(rec.ID))

		_, err = s.FindByID(rec.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		// The subject can be requested again.
		_, err = s.Create(newRecord(store.ClientSubject("alice")))
		require.NoError(t, err)
	})

	t.Run("ServerSubjectIsSingleton", func(t *testing.T) {
		_, err := s.Create(newRecord(store.ServerSubject))
		require.NoError(t, err)
		_, err = s.Create(newRecord(store.ServerSubject))
		require.ErrorIs(t, err, store.ErrConflict)
	})
}

func TestCreateIsAtomicPerSubject(t *testing.T) {
	s := newTestStore(t)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create(newRecord(store.ClientSubject("raced")))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, store.ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.db")
	s, err := Open(path, nil)
	require.NoError(t, err)

	id, err := s.Create(newRecord(store.ClientSubject("alice")))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	rec, err := s2.FindByID(id)
	require.NoError(t, err)
	assert.Equal(t, store.ClientSubject("alice"), rec.Subject)
}
