// Package loader mounts HTTP features on the server.
//
// A Feature contributes a group of routes. The Manager loads the enabled
// features in registration order and refuses a name registered twice, so the
// publish API and any later feature cannot shadow each other's routes.
// Disabled features are logged and skipped.
package loader
