// Package log provides the leveled logging interface shared by the agent,
// its tools and the ingestion pipeline.
//
// Two implementations are available: DefaultLogger, built on the standard
// library logger, and GologLogger, which forwards to kataras/golog and is what
// the socrates command wires up. NoOpLogger silences output in tests.
//
//	logger := log.NewGologLogger(golog.New())
//	logger.SetLevel(log.LogLevelDebug)
//	log.SetDefaultLogger(logger)
//	log.Info("indexed %d documents", n)
package log
