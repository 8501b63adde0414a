// Package logger builds the zap logger used across channel-publisher.
//
// Level and Format come from the log section of the configuration. "json"
// suits service deployments; "console" suits interactive CLI use.
//
// # Correlation
//
// WithRayID tags a logger with the ray id of an API request. WithRun tags it
// with the id of an upload batch, so every line of one batch can be grepped
// together, including the lines of a batch started over HTTP.
//
// # Usage
//
//	log, err := logger.New(&logger.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	log.Info("Starting server")
//
//	// In a request handler:
//	l := logger.WithRayID(log, c)
//	l.Error("Gap detection failed", zap.Error(err))
//
//	// In an upload batch:
//	logger.WithRun(log, runID).Info("Upload batch started")
package logger
