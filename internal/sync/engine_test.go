package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmedic/reportsync/internal/domain"
	"github.com/roadmedic/reportsync/internal/observability"
)

type mockRepo struct {
	mu          sync.Mutex
	reports     []domain.Report
	nextID      int
	createErr   error
	createCalls int
}

func (m *mockRepo) Create(_ context.Context, report domain.Report) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return "", m.createErr
	}
	m.nextID++
	report.ID = fmt.Sprintf("doc-%d", m.nextID)
	m.reports = append(m.reports, report)
	return report.ID, nil
}

func (m *mockRepo) QueryByOwner(_ context.Context, ownerID string) ([]domain.Report, error) {
	return m.filter(func(r domain.Report) bool { return r.OwnerID == ownerID }), nil
}

func (m *mockRepo) QueryNotOwner(_ context.Context, ownerID string) ([]domain.Report, error) {
	return m.filter(func(r domain.Report) bool { return r.OwnerID != ownerID }), nil
}

func (m *mockRepo) QueryAll(_ context.Context) ([]domain.Report, error) {
	return m.filter(func(domain.Report) bool { return true }), nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.reports[:0]
	for _, r := range m.reports {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	m.reports = kept
	return nil
}

func (m *mockRepo) DeleteBatch(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	kept := m.reports[:0]
	for _, r := range m.reports {
		if !doomed[r.ID] {
			kept = append(kept, r)
		}
	}
	m.reports = kept
	return nil
}

// filter returns matching reports newest first, matching the adapter's
// query ordering contract.
func (m *mockRepo) filter(keep func(domain.Report) bool) []domain.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Report
	for _, r := range m.reports {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CapturedAt != out[j].CapturedAt {
			return out[i].CapturedAt > out[j].CapturedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

type mockStore struct {
	mu      sync.Mutex
	rows    []domain.Report
	cleared bool
}

func (m *mockStore) Insert(report domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, report)
	return nil
}

func (m *mockStore) ListAll() ([]domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Report(nil), m.rows...), nil
}

func (m *mockStore) ListByOwner(ownerID string) ([]domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Report
	for _, r := range m.rows {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	m.cleared = true
	return nil
}

type mockUploader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockUploader) Upload(_ context.Context, _ []byte, hint string) (domain.AssetRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return domain.AssetRef{}, m.err
	}
	return domain.RemoteAsset("https://assets.example/" + hint), nil
}

func (m *mockUploader) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockUploader) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type stubGeocoder struct {
	address string
	err     error
}

func (g *stubGeocoder) ForwardGeocode(context.Context, string) (domain.GeocodingResult, error) {
	return domain.GeocodingResult{}, g.err
}

func (g *stubGeocoder) ReverseGeocode(context.Context, float64, float64) (domain.GeocodingResult, error) {
	if g.err != nil {
		return domain.GeocodingResult{}, g.err
	}
	return domain.GeocodingResult{Address: g.address}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(repo *mockRepo, store Store, up Uploader, geo domain.Geocoder) *Engine {
	return New(repo, store, up, geo, discardLogger(), observability.NewMetricsForTesting())
}

func capturedSubmission(t *testing.T) (*Submission, domain.Fix) {
	t.Helper()
	sub := NewSubmission()
	sub.AttachPhoto([]byte("jpeg-bytes"), "pothole.jpg")
	fix := domain.Fix{Point: domain.Point{Lat: 12.9, Lon: 77.6}, At: time.Now()}
	return sub, fix
}

func TestSubmit_HappyPath(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.UnixMilli(1700000000000)))
	defer domain.SetClock(nil)

	repo := &mockRepo{}
	store := &mockStore{}
	uploader := &mockUploader{}
	engine := newTestEngine(repo, store, uploader, nil)

	sub, fix := capturedSubmission(t)
	sub.SetSeverity(domain.SeverityHigh)

	p, err := engine.AcquireLocation(context.Background(), sub, "my", &fix)
	require.NoError(t, err)
	assert.Equal(t, domain.Point{Lat: 12.9, Lon: 77.6}, p)
	assert.Equal(t, StateLocationAcquired, sub.State())

	report, err := engine.Submit(context.Background(), sub, "user7")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", report.ID)
	assert.Equal(t, "user7", report.OwnerID)
	assert.Equal(t, int64(1700000000000), report.CapturedAt)
	assert.Equal(t, domain.SeverityHigh, report.Severity)
	assert.Equal(t, domain.AssetRemote, report.Asset.Kind)
	assert.Equal(t, StateDone, sub.State())
	assert.Equal(t, "doc-1", sub.ReportID())
	assert.Equal(t, 1, uploader.callCount())

	mine, err := engine.LoadReports(context.Background(), "user7", domain.ScopeMine)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "doc-1", mine[0].ID)

	// Committed report is mirrored into the local cache.
	rows, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "doc-1", rows[0].ID)
}

func TestSubmit_WithoutPhoto(t *testing.T) {
	uploader := &mockUploader{}
	engine := newTestEngine(&mockRepo{}, nil, uploader, nil)

	sub := NewSubmission()
	fix := domain.Fix{Point: domain.Point{Lat: 1, Lon: 2}}
	_, err := engine.AcquireLocation(context.Background(), sub, "my", &fix)
	require.NoError(t, err)

	_, err = engine.Submit(context.Background(), sub, "user7")
	assert.ErrorIs(t, err, domain.ErrPhotoNotCaptured)
	assert.Equal(t, 0, uploader.callCount())
}

func TestSubmit_WithoutLocation(t *testing.T) {
	uploader := &mockUploader{}
	engine := newTestEngine(&mockRepo{}, nil, uploader, nil)

	sub := NewSubmission()
	sub.AttachPhoto([]byte("jpeg-bytes"), "pothole.jpg")

	_, err := engine.Submit(context.Background(), sub, "user7")
	assert.ErrorIs(t, err, domain.ErrLocationNotAcquired)
	assert.Equal(t, 0, uploader.callCount())
}

func TestSubmit_UploadFailurePreservesStateForRetry(t *testing.T) {
	repo := &mockRepo{}
	uploader := &mockUploader{}
	uploader.setErr(errors.New("asset host returned 503"))
	engine := newTestEngine(repo, nil, uploader, nil)

	sub, fix := capturedSubmission(t)
	_, err := engine.AcquireLocation(context.Background(), sub, "my", &fix)
	require.NoError(t, err)

	_, err = engine.Submit(context.Background(), sub, "user7")
	require.ErrorIs(t, err, domain.ErrUploadFailed)
	assert.Equal(t, StateFailed, sub.State())
	assert.Equal(t, 0, repo.createCalls)

	// The captured photo and location survive; a retry succeeds.
	uploader.setErr(nil)
	report, err := engine.Submit(context.Background(), sub, "user7")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", report.ID)
	assert.Equal(t, 2, uploader.callCount())
}

func TestSubmit_CommitRetrySkipsReupload(t *testing.T) {
	repo := &mockRepo{createErr: fmt.Errorf("%w: connection reset", domain.ErrRemoteUnavailable)}
	uploader := &mockUploader{}
	engine := newTestEngine(repo, nil, uploader, nil)

	sub, fix := capturedSubmission(t)
	_, err := engine.AcquireLocation(context.Background(), sub, "my", &fix)
	require.NoError(t, err)

	_, err = engine.Submit(context.Background(), sub, "user7")
	require.ErrorIs(t, err, domain.ErrCommitFailed)
	require.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.Equal(t, StateFailed, sub.State())
	assert.Equal(t, 1, uploader.callCount())

	repo.createErr = nil
	report, err := engine.Submit(context.Background(), sub, "user7")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", report.ID)
	assert.Equal(t, 1, uploader.callCount(), "retry must reuse the uploaded asset")
}

func TestSubmit_CapturedAtStampedOncePerReport(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	domain.SetClock(fake)
	defer domain.SetClock(nil)

	repo := &mockRepo{createErr: errors.New("down")}
	engine := newTestEngine(repo, nil, &mockUploader{}, nil)

	sub, fix := capturedSubmission(t)
	_, err := engine.AcquireLocation(context.Background(), sub, "my", &fix)
	require.NoError(t, err)

	_, err = engine.Submit(context.Background(), sub, "user7")
	require.Error(t, err)

	fake.Advance(5 * time.Minute)
	repo.createErr = nil
	report, err := engine.Submit(context.Background(), sub, "user7")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), report.CapturedAt)
}

func TestAcquireLocation_AnnotatesAddressAsync(t *testing.T) {
	engine := newTestEngine(&mockRepo{}, nil, &mockUploader{}, &stubGeocoder{address: "12 MG Road, Bengaluru"})

	sub, fix := capturedSubmission(t)
	_, err := engine.AcquireLocation(context.Background(), sub, "my", &fix)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sub.Address() == "12 MG Road, Bengaluru"
	}, time.Second, 5*time.Millisecond)
}

func TestAcquireLocation_AnnotationFailureAbsorbed(t *testing.T) {
	engine := newTestEngine(&mockRepo{}, nil, &mockUploader{}, &stubGeocoder{err: errors.New("quota exceeded")})

	sub, fix := capturedSubmission(t)
	_, err := engine.AcquireLocation(context.Background(), sub, "my", &fix)
	require.NoError(t, err)

	report, err := engine.Submit(context.Background(), sub, "user7")
	require.NoError(t, err)
	assert.Empty(t, report.Address)
}

func TestAcquireLocation_NoFix(t *testing.T) {
	engine := newTestEngine(&mockRepo{}, nil, &mockUploader{}, nil)

	sub := NewSubmission()
	_, err := engine.AcquireLocation(context.Background(), sub, "my", nil)
	assert.ErrorIs(t, err, domain.ErrNoFixAvailable)
}

func TestLoadReports_PartitionsAreDisjoint(t *testing.T) {
	repo := &mockRepo{reports: []domain.Report{
		{ID: "a", OwnerID: "user7", CapturedAt: 100, Location: domain.Point{Lat: 1, Lon: 1}, Severity: domain.SeverityLow, Asset: domain.RemoteAsset("u/a")},
		{ID: "b", OwnerID: "user9", CapturedAt: 200, Location: domain.Point{Lat: 2, Lon: 2}, Severity: domain.SeverityLow, Asset: domain.RemoteAsset("u/b")},
		{ID: "c", OwnerID: "user7", CapturedAt: 300, Location: domain.Point{Lat: 3, Lon: 3}, Severity: domain.SeverityLow, Asset: domain.RemoteAsset("u/c")},
		{ID: "d", OwnerID: "user9", CapturedAt: 400, Location: domain.Point{Lat: 4, Lon: 4}, Severity: domain.SeverityLow, Asset: domain.RemoteAsset("u/d")},
		{ID: "e", OwnerID: "user7", CapturedAt: 500, Location: domain.Point{Lat: 5, Lon: 5}, Severity: domain.SeverityLow, Asset: domain.RemoteAsset("u/e")},
	}}
	engine := newTestEngine(repo, nil, &mockUploader{}, nil)

	mine, err := engine.LoadReports(context.Background(), "user7", domain.ScopeMine)
	require.NoError(t, err)
	others, err := engine.LoadReports(context.Background(), "user7", domain.ScopeOthers)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"e", "c", "a"}, ids(mine)); diff != "" {
		t.Errorf("mine ordering mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"d", "b"}, ids(others)); diff != "" {
		t.Errorf("others ordering mismatch (-want +got):\n%s", diff)
	}

	seen := make(map[string]bool)
	for _, r := range mine {
		seen[r.ID] = true
	}
	for _, r := range others {
		assert.False(t, seen[r.ID], "report %s appears in both partitions", r.ID)
	}

	all, err := engine.LoadAllReports(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestDeleteMine(t *testing.T) {
	repo := &mockRepo{reports: []domain.Report{
		{ID: "a", OwnerID: "user7", CapturedAt: 100},
		{ID: "b", OwnerID: "user9", CapturedAt: 200},
		{ID: "c", OwnerID: "user7", CapturedAt: 300},
		{ID: "d", OwnerID: "user9", CapturedAt: 400},
		{ID: "e", OwnerID: "user7", CapturedAt: 500},
	}}
	store := &mockStore{rows: []domain.Report{{ID: "e", OwnerID: "user7"}}}
	engine := newTestEngine(repo, store, &mockUploader{}, nil)

	n, err := engine.DeleteMine(context.Background(), "user7")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	remaining, err := engine.LoadAllReports(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "d"}, ids(remaining))
	assert.True(t, store.cleared)

	// Empty partition deletes nothing and is not an error.
	n, err = engine.DeleteMine(context.Background(), "user7")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteOne_IdempotentForUnknownID(t *testing.T) {
	repo := &mockRepo{reports: []domain.Report{{ID: "a", OwnerID: "user7"}}}
	engine := newTestEngine(repo, nil, &mockUploader{}, nil)

	require.NoError(t, engine.DeleteOne(context.Background(), "a"))
	require.NoError(t, engine.DeleteOne(context.Background(), "a"))

	remaining, err := engine.LoadAllReports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func ids(reports []domain.Report) []string {
	out := make([]string, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.ID)
	}
	return out
}
