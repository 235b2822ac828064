package domain

import "errors"

// Failure taxonomy for the sync and query flows. Callers branch with
// errors.Is; adapters wrap these with context via fmt.Errorf("…: %w", …).
var (
	// ErrInvalidPoint reports a latitude/longitude pair outside the valid
	// WGS-84 ranges. Passing one to DistanceMeters is a contract violation.
	ErrInvalidPoint = errors.New("invalid point: latitude must be in [-90,90], longitude in [-180,180]")

	// ErrNoFixAvailable means a location query referenced the current fix
	// ("my") before the positioning collaborator delivered one.
	ErrNoFixAvailable = errors.New("no location fix available")

	// ErrNotFound means the geocoding collaborator returned no candidates
	// for a free-text location query.
	ErrNotFound = errors.New("location not found")

	// ErrDuplicateID reports an insert into the local cache with an id that
	// is already present. Store-assigned ids make this unreachable in
	// normal use; it exists to catch caller bugs.
	ErrDuplicateID = errors.New("duplicate report id")

	// ErrRemoteUnavailable wraps transport failures talking to the
	// authoritative store. Never retried internally; retry is the caller's.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrPartialBatchFailure means a batch delete failed in transit and the
	// remote state is unknown. The caller must re-query; no rollback is
	// attempted.
	ErrPartialBatchFailure = errors.New("batch delete partially failed, re-query required")

	// ErrUploadFailed means the asset host rejected or never received the
	// photo. Nothing was committed; the captured submission state is kept
	// for retry.
	ErrUploadFailed = errors.New("photo upload failed")

	// ErrLocalWriteFailed means the local-fallback asset write could not
	// persist the photo to the filesystem.
	ErrLocalWriteFailed = errors.New("local asset write failed")

	// ErrCommitFailed means the report record could not be created after a
	// successful upload. The asset reference is durable; a retry commits
	// without re-uploading.
	ErrCommitFailed = errors.New("report commit failed")

	// Submission preconditions: a report cannot start uploading without a
	// captured photo and a valid location.
	ErrPhotoNotCaptured    = errors.New("no photo captured")
	ErrLocationNotAcquired = errors.New("no location acquired")
)
