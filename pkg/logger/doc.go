// Package logger provides a structured logging interface for igfeed.
//
// Packages take a Logger and never import zerolog themselves. The CLI calls
// Initialize once with the logging config; everything else either receives
// a Logger through its constructor or falls back to GetLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "server")
//	log.InfoWithFields("request served", map[string]interface{}{
//	    "status":   200,
//	    "duration": time.Since(start),
//	})
//
// Tests use NewTestLogger to capture entries, or NewNopLogger to discard them.
package logger
