// Package google provides the Google API plumbing used by the drive connector:
//   - client options from a service account file or an OAuth refresh token
//   - classification of Google API errors into status-carrying domain errors
//   - a token bucket rate limiter with backoff after 429 responses
//
// Only the read-only drive scope is requested:
//   - https://www.googleapis.com/auth/drive.readonly
package google
