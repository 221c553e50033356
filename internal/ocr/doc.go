// Package ocr implements the local OCR backend of the extraction pipeline.
//
// The backend works in two passes over a preprocessed copy of the image:
// layout analysis finds candidate text regions, then each region is decoded
// on its own. Decoded fragments are joined in reading order (top-to-bottom,
// then left-to-right) with one fragment per line.
//
// # Model Sets
//
// Recognition engines are loaded per language combination and held in a
// ModelCache for the life of the process. The cache key is the sorted list
// of Tesseract language codes joined with "+" (for example "deu+eng"), so
// {"en","de"} and {"de","en"} share one loaded set. Loading happens lazily on
// first use and exactly once per key even under concurrent first use.
//
// The engine itself is pluggable through the ModelSet interface. The
// production implementation lives in the tesseract subpackage and wraps
// gosseract/v2; tests substitute fakes.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract tesseract-lang
//
// Set TESSDATA_PREFIX when the traineddata files live outside the default
// search path.
//
// # Supported Languages
//
// Request languages use short codes ("en", "es", "ch_sim", ...) that are
// mapped to Tesseract names ("eng", "spa", "chi_sim", ...) by
// backend.TesseractCode. Tesseract names are accepted as-is.
//
// # Error Handling
//
// Backend.Recognize never returns an error. Failures are reported as a
// backend.Result with Success=false and one of these reasons:
//   - "model load failed: ..." when the language data cannot be loaded
//   - "decode failed: ..." when layout analysis or decoding fails
//   - "timeout" when the per-call timeout expires
//   - "cancelled" when the caller cancels the request
package ocr
