// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Domain packages receive the embedded *zap.Logger and name it per component
// (logger.Named("registry")), so every line carries its origin.
//
// Example Usage:
//
//	logger := logging.NewFromLevel("info", false)
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Error("Spawn failed", zap.Error(err))
package logging
