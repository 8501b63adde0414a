// Package server builds the HTTP server shared by all features.
//
// New returns a Fiber app with the common middleware already installed:
// ray ids, request logging, the public swagger UI under /swagger, and
// API-key authentication for every route registered after it. Features add
// their routes through the loader.
//
// # Configuration
//
// The Config struct defines the HTTP port, the API key and the read and
// shutdown timeouts.
package server
