// Package extract orchestrates one text extraction: it normalizes the
// image, dispatches it to the backends the policy selects and reconciles
// their results into a single Result.
//
// # Policies
//
//   - remote: only the remote AI backend.
//   - local: only the local OCR backend.
//   - remote-then-local: remote first, local only when remote fails. This
//     is the default.
//   - both: remote and local concurrently; Reconcile picks the winner.
//
// An unknown policy is rejected before the image is decoded.
//
// # States
//
// Every extraction walks start, normalizing, dispatching, reconciling and
// ends in done or failed. A rejected image or policy fails from
// normalizing. Result.State records where the extraction ended.
//
// # Errors
//
// Extract returns an error wrapping imaging.ErrInvalidImage or
// ErrInvalidPolicy with a nil Result. When every invoked backend failed it
// returns ErrAllBackendsFailed together with the Result, whose Error joins
// each backend's reason.
package extract
