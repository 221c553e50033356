// Package config loads runtime settings from the environment.
//
// An optional .env file is read first with godotenv; variables already set
// in the process environment take precedence over the file. Unset or blank
// variables keep their defaults, and malformed values fail Load with the
// variable name in the error.
//
// GEMINI_API_KEY holds the remote backend's credential; without it every
// remote call fails at once as unavailable. The local OCR engine finds its
// trained data through TESSDATA_PREFIX.
package config
