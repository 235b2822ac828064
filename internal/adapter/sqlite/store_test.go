package sqlite

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmedic/reportsync/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := Open(path, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func cached(id, owner string, capturedAt int64) domain.Report {
	return domain.Report{
		ID:         id,
		OwnerID:    owner,
		CapturedAt: capturedAt,
		Location:   domain.Point{Lat: 12.9, Lon: 77.6},
		Severity:   domain.SeverityMedium,
		Asset:      domain.RemoteAsset("https://assets.example/" + id + ".jpg"),
	}
}

func TestStore_InsertAndListAll(t *testing.T) {
	store, _ := openTestStore(t)

	// Inserted out of timestamp order on purpose.
	require.NoError(t, store.Insert(cached("b", "user7", 200)))
	require.NoError(t, store.Insert(cached("a", "user7", 100)))
	require.NoError(t, store.Insert(cached("c", "user9", 300)))

	reports, err := store.ListAll()
	require.NoError(t, err)

	var got []string
	for _, r := range reports {
		got = append(got, r.ID)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, got); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_EqualTimestampsOrderByInsertion(t *testing.T) {
	store, _ := openTestStore(t)

	require.NoError(t, store.Insert(cached("first", "user7", 100)))
	require.NoError(t, store.Insert(cached("second", "user7", 100)))

	reports, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "second", reports[0].ID, "later insert wins the timestamp tie")
	assert.Equal(t, "first", reports[1].ID)
}

func TestStore_ListByOwner(t *testing.T) {
	store, _ := openTestStore(t)

	require.NoError(t, store.Insert(cached("a", "user7", 100)))
	require.NoError(t, store.Insert(cached("b", "user9", 200)))
	require.NoError(t, store.Insert(cached("c", "user7", 300)))

	mine, err := store.ListByOwner("user7")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "c", mine[0].ID)
	assert.Equal(t, "a", mine[1].ID)

	none, err := store.ListByOwner("nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_DuplicateID(t *testing.T) {
	store, _ := openTestStore(t)

	require.NoError(t, store.Insert(cached("a", "user7", 100)))
	err := store.Insert(cached("a", "user7", 999))
	assert.ErrorIs(t, err, domain.ErrDuplicateID)

	// The original row is untouched.
	reports, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, int64(100), reports[0].CapturedAt)
}

func TestStore_Clear(t *testing.T) {
	store, _ := openTestStore(t)

	require.NoError(t, store.Insert(cached("a", "user7", 100)))
	require.NoError(t, store.Insert(cached("b", "user9", 200)))
	require.NoError(t, store.Clear())

	reports, err := store.ListAll()
	require.NoError(t, err)
	assert.Empty(t, reports)

	// Cleared cache accepts previously seen ids again.
	require.NoError(t, store.Insert(cached("a", "user7", 100)))
}

func TestStore_RoundTripPreservesFields(t *testing.T) {
	store, _ := openTestStore(t)

	want := domain.Report{
		ID:         "r1",
		OwnerID:    "user7",
		CapturedAt: 1700000000000,
		Location:   domain.Point{Lat: 12.9716, Lon: 77.5946},
		Severity:   domain.SeverityHigh,
		Address:    "12 MG Road",
		Asset:      domain.LocalAsset("/data/assets/r1.jpg"),
	}
	require.NoError(t, store.Insert(want))

	reports, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, reports, 1)
	if diff := cmp.Diff(want, reports[0]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SchemaVersionMismatchWipes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := Open(path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, store.Insert(cached("a", "user7", 100)))

	// Simulate an old cache file by rewinding the stored schema version.
	require.NoError(t, store.db.Exec("PRAGMA user_version = 2").Error)
	require.NoError(t, store.Close())

	reopened, err := Open(path, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	reports, err := reopened.ListAll()
	require.NoError(t, err)
	assert.Empty(t, reports, "version mismatch must wipe cached rows")
}

func TestStore_ReopenSameVersionKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := Open(path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, store.Insert(cached("a", "user7", 100)))
	require.NoError(t, store.Close())

	reopened, err := Open(path, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	reports, err := reopened.ListAll()
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}
