package domain

import (
	"fmt"
	"time"
)

// Severity grades a reported hazard. Wire encoding is the integer value.
type Severity int32

const (
	SeverityLow    Severity = 1
	SeverityMedium Severity = 2
	SeverityHigh   Severity = 3
)

// ParseSeverity maps a wire integer to a Severity. Anything outside 1-3
// (including absent values decoded as zero) falls back to low.
func ParseSeverity(v int32) Severity {
	switch Severity(v) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return Severity(v)
	default:
		return SeverityLow
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "low"
	}
}

// Point is a WGS-84 latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate returns ErrInvalidPoint if the pair is outside valid bounds.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidPoint, p.Lat, p.Lon)
	}
	return nil
}

// AssetKind tags which variant of an AssetRef is populated.
type AssetKind string

const (
	AssetRemote AssetKind = "remote"
	AssetLocal  AssetKind = "local"
)

// AssetRef points at a report's photo: either a remote URL produced by the
// asset host or a local file path written by the fallback pipeline. Exactly
// one variant is populated; never both, never neither once a photo exists.
type AssetRef struct {
	Kind AssetKind `json:"kind"`
	URL  string    `json:"url,omitempty"`
	Path string    `json:"path,omitempty"`
}

// RemoteAsset builds a remote-hosted asset reference.
func RemoteAsset(url string) AssetRef {
	return AssetRef{Kind: AssetRemote, URL: url}
}

// LocalAsset builds a locally stored asset reference.
func LocalAsset(path string) AssetRef {
	return AssetRef{Kind: AssetLocal, Path: path}
}

// Validate enforces the exactly-one-variant rule.
func (a AssetRef) Validate() error {
	switch a.Kind {
	case AssetRemote:
		if a.URL == "" || a.Path != "" {
			return fmt.Errorf("remote asset must carry a URL and no path")
		}
	case AssetLocal:
		if a.Path == "" || a.URL != "" {
			return fmt.Errorf("local asset must carry a path and no URL")
		}
	default:
		return fmt.Errorf("asset reference has no populated variant")
	}
	return nil
}

// Scope selects an owner partition when listing reports.
type Scope int

const (
	ScopeMine Scope = iota
	ScopeOthers
)

func (s Scope) String() string {
	if s == ScopeOthers {
		return "others"
	}
	return "mine"
}

// Report is the owner-submitted hazard record.
type Report struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	CapturedAt int64    `json:"captured_at"` // milliseconds since epoch
	Location   Point    `json:"location"`
	Severity   Severity `json:"severity"`
	Address    string   `json:"address,omitempty"` // best-effort, may stay empty
	Asset      AssetRef `json:"asset"`
}

// Validate checks the invariants a record must satisfy before it is
// committed to any store.
func (r Report) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("report owner id must not be empty")
	}
	if err := r.Location.Validate(); err != nil {
		return err
	}
	return r.Asset.Validate()
}

// Fix is a single live location reading from the positioning collaborator.
type Fix struct {
	Point Point     `json:"point"`
	At    time.Time `json:"at"`
}
