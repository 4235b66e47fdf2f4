// Package logger provides a singleton Zap logger with context-based scoping.
//
// A single global instance is initialized once with Init(). Each request can
// carry its own scoped logger (request_id, tenant_id, ...) in the context
// without rebuilding the core. "dev" uses a colored console encoder, "prod"
// uses JSON.
//
// Initialization (once, in main):
//
//	logger.Init(logger.Config{
//	    Env:   os.Getenv("APP_ENV"),
//	    Level: os.Getenv("LOG_LEVEL"),
//	})
//	defer logger.Sync()
//
// In handlers/services (with context):
//
//	log := logger.From(ctx)
//	log.Info("principal resolved", logger.UserID(id))
package logger
