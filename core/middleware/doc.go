// Package middleware contains HTTP middleware for the Fiber application.
//
// # Components
//
//   - auth: API key check on every route except the swagger UI. An empty
//     key disables the check.
//   - rayid: tags every request with a Ray ID, echoed in the response
//     headers and attached to request logs.
package middleware
