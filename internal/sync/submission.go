package sync

import (
	"fmt"
	"sync"

	"github.com/roadmedic/reportsync/internal/domain"
)

// State tracks how far an in-flight submission has progressed.
type State int

const (
	StateIdle State = iota
	StatePhotoCaptured
	StateLocationAcquired
	StateUploading
	StateCommitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePhotoCaptured:
		return "photo_captured"
	case StateLocationAcquired:
		return "location_acquired"
	case StateUploading:
		return "uploading"
	case StateCommitting:
		return "committing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Submission accumulates one report in progress: the captured photo, the
// acquired location, and the chosen severity. A failed attempt keeps all of
// this so the caller can retry; in particular, a durable asset reference
// from a successful upload survives a commit failure, so the retry commits
// without re-uploading.
type Submission struct {
	mu         sync.Mutex
	state      State
	photo      []byte
	photoName  string
	location   *domain.Point
	severity   domain.Severity
	address    string
	asset      *domain.AssetRef
	capturedAt int64
	reportID   string
}

// NewSubmission starts an empty submission. Severity defaults to low.
func NewSubmission() *Submission {
	return &Submission{severity: domain.SeverityLow}
}

// AttachPhoto records the captured photo bytes and a filename hint for the
// upload pipeline.
func (s *Submission) AttachPhoto(photo []byte, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photo = photo
	s.photoName = name
	s.refreshStateLocked()
}

// SetSeverity overrides the default low severity.
func (s *Submission) SetSeverity(sev domain.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.severity = sev
}

// State returns the current submission state.
func (s *Submission) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Address returns the annotated address line, or "" when annotation has not
// completed (or failed, which is indistinguishable and fine).
func (s *Submission) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// ReportID returns the store-assigned id once the submission is committed.
func (s *Submission) ReportID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportID
}

// snapshot is an immutable copy of the submission taken when an attempt
// starts, so the engine never holds the lock across network calls.
type snapshot struct {
	photo      []byte
	photoName  string
	location   domain.Point
	severity   domain.Severity
	address    string
	asset      *domain.AssetRef
	capturedAt int64
}

// beginAttempt validates preconditions, stamps capturedAt on the first
// attempt only, and transitions into the in-flight state.
func (s *Submission) beginAttempt() (snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDone {
		return snapshot{}, fmt.Errorf("submission already committed as %s", s.reportID)
	}
	if len(s.photo) == 0 {
		return snapshot{}, domain.ErrPhotoNotCaptured
	}
	if s.location == nil {
		return snapshot{}, domain.ErrLocationNotAcquired
	}

	if s.capturedAt == 0 {
		s.capturedAt = domain.Now()
	}
	if s.asset != nil {
		s.state = StateCommitting
	} else {
		s.state = StateUploading
	}

	return snapshot{
		photo:      s.photo,
		photoName:  s.photoName,
		location:   *s.location,
		severity:   s.severity,
		address:    s.address,
		asset:      s.asset,
		capturedAt: s.capturedAt,
	}, nil
}

func (s *Submission) setLocation(p domain.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = &p
	s.address = ""
	s.refreshStateLocked()
}

// setAddress attaches the async annotation result, unless the submission
// has already moved into commit (the record was built without it).
func (s *Submission) setAddress(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCommitting || s.state == StateDone {
		return
	}
	s.address = addr
}

func (s *Submission) setAsset(ref domain.AssetRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asset = &ref
	s.state = StateCommitting
}

func (s *Submission) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
}

func (s *Submission) finish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportID = id
	s.state = StateDone
}

// refreshStateLocked derives the pre-flight state from the captured data.
// In-flight and terminal states are never downgraded here.
func (s *Submission) refreshStateLocked() {
	switch s.state {
	case StateUploading, StateCommitting, StateDone:
		return
	}
	switch {
	case len(s.photo) == 0:
		s.state = StateIdle
	case s.location == nil:
		s.state = StatePhotoCaptured
	default:
		s.state = StateLocationAcquired
	}
}
