// Package api implements the FoxESS Cloud OpenAPI client.
//
// Every request carries the account token plus an md5 signature over
// the path, token, and millisecond timestamp. Responses share a common
// envelope {errno, msg, result}; errno 0 is success and the known
// non-zero codes are mapped in errors.go, which is the single place
// the numeric code taxonomy lives.
//
// All calls are funneled through an optional Gate (the shared rate
// limit budget) and reported to an audit Logger. The client itself is
// stateless apart from configuration; it is safe for concurrent use.
package api
