// Package backend defines the contract shared by the text-recognition
// backends and the orchestrator that drives them.
//
// A Backend never returns an error. Every failure, from a missing credential
// to a recognizer crash, is reported as data in a Result with Success=false,
// a human-readable Reason and a Kind that tells the orchestrator whether the
// failure is worth a fallback.
//
// # Failure Kinds
//
//   - KindUnavailable: the backend cannot serve the request. This covers
//     missing credentials, model-load failures, rejected requests and
//     network, rate-limit or server errors left after the backend's own
//     retries.
//   - KindTimeout: the backend's bounded wait ran out.
//   - KindCancelled: the caller's context ended first.
//
// # Languages
//
// A Request carries an ordered, de-duplicated, non-empty list of ISO 639-1
// codes. SupportedLanguages lists the catalogue and TesseractCode maps a
// code to the local engine's model name; unknown codes pass through as-is.
package backend
