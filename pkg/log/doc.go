/*
Package log provides structured logging for Warden built on zerolog.

Call Init once at startup, then use the package helpers or take child loggers
scoped to a component or workload:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("healer")
	logger.Info().Str("pod", name).Msg("remediation pending")
*/
package log
