// Package classify holds the /classify wire contract and an HTTP client for it.
//
// The endpoint accepts a multipart form with the file under field "image" and
// answers with a JSON ClassificationResponse. Clients look only at the body:
// the HTTP status is not consulted, and any request failure or non-JSON body
// is a transport error (internal/errors code T001).
//
// Numeric fields such as confidence may arrive as JSON numbers or as numeric
// strings. Both decode into Number, which keeps the raw text for display and
// a float64 for tiering (NaN when unparseable).
package classify
