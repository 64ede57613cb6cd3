/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging points the standard logger at a rotating log file, the
// same rotation policy the teacher daemon uses for its own log file.
// Engine operations log with this logger rather than returning log
// lines in errors, keeping StatusError values short.
func SetupLogging(logfile string) error {
	log.SetFlags(log.Lshortfile | log.Ltime)

	if logfile == "" {
		return statusErrf(StatusAssertErr, "SetupLogging", "no logfile specified")
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    20,
		MaxBackups: 3,
		MaxAge:     14,
	})
	return nil
}
