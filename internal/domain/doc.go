// Package domain models road-hazard ("pothole") reports and the geospatial
// rules shared by every store and adapter.
//
// # Report Records
//
// A report is created once, from a captured photo plus a location fix, and is
// immutable afterwards except for its address line, which is filled in by a
// single best-effort reverse-geocoding pass. Records are destroyed only by
// explicit deletion; there is no soft delete.
//
// Wire conventions (shared with the remote document store and the local
// cache schema):
//
//	severity:  integer 1-3 (1 = low, 2 = medium, 3 = high). Absent or
//	           unparseable values decode as low.
//	timestamp: milliseconds since the Unix epoch, set at submission time.
//	           It is the sole sort key; every listing is ordered by it
//	           descending, ties broken by the store-assigned sequence.
//	asset:     exactly one of a remote URL (imageUrl) or a local file path
//	           (imagePath). A record never reaches the remote store without
//	           a resolved asset.
//
// # Owner Partitions
//
// For a querying identity, the report set splits into "mine" (ownerId equals
// the caller) and "others" (ownerId differs). The partitions are disjoint and
// their union is the full set at the query snapshot; both stores implement
// the split with equality / inequality predicates on the owner field.
//
// # Location Resolution
//
// Free-text location queries resolve through [ResolvePoint]: the literal
// token "my" (case-insensitive) means the caller's current fix, anything
// else goes to the geocoding collaborator and the first candidate wins.
// Geocoding is always a soft dependency — reverse lookups that fail leave
// the address empty and are never surfaced as flow failures.
package domain
