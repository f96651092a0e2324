package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alitagps/tk103/libs/tk103"
)

// mockSaver implements the Saver interface for testing.
type mockSaver struct {
	saved []*tk103.Location
	err   error
}

func (ms *mockSaver) Save(loc *tk103.Location) error {
	if ms.err != nil {
		return ms.err
	}
	ms.saved = append(ms.saved, loc)
	return nil
}

func TestRepositoryFanOut(t *testing.T) {
	first := &mockSaver{}
	second := &mockSaver{}

	repo := NewRepository()
	repo.AddStore(first)
	repo.AddStore(second)

	loc := &tk103.Location{Type: tk103.LocationOK, IMEI: 13612345678}
	require.NoError(t, repo.Save(loc))

	require.Len(t, first.saved, 1)
	require.Len(t, second.saved, 1)
	assert.Same(t, loc, first.saved[0])
}

func TestRepositorySaveAborted(t *testing.T) {
	broken := &mockSaver{err: errors.New("boom")}
	healthy := &mockSaver{}

	repo := NewRepository()
	repo.AddStore(broken)
	repo.AddStore(healthy)

	err := repo.Save(&tk103.Location{Type: tk103.LocationOK})
	assert.Error(t, err)
	assert.Empty(t, healthy.saved)
}

func TestLoadStoragesEmpty(t *testing.T) {
	repo := NewRepository()
	assert.ErrorIs(t, repo.LoadStorages(nil), ErrInvalidStorage)
}

func TestLoadStoragesUnknown(t *testing.T) {
	repo := NewRepository()
	err := repo.LoadStorages(map[string]map[string]string{"mongodb": {}})
	assert.ErrorIs(t, err, ErrUnknownStorage)
}
