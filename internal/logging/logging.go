// Package logging configures logrus for the whole process: text format,
// stderr plus a rotating log file, and the critical-record mirror to Telegram.
package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CriticalField marks an ERROR record as critical.
const CriticalField = "critical"

// Rotation limits of the log file
const (
	maxLogSizeMB  = 5
	maxLogBackups = 10
)

// Setup points the standard logrus logger at stderr and, when logFile is
// set, at a rotating file. The returned closer flushes the file.
func Setup(logFile, level string) io.Closer {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	var closer io.Closer = nopCloser{}
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotating))
		closer = rotating
	} else {
		log.SetOutput(os.Stderr)
	}

	SetLevel(level)
	return closer
}

// SetLevel applies a level name; invalid names keep INFO.
func SetLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithField("level", level).Warn("unknown log level, using info")
		return
	}
	log.SetLevel(lvl)
}

// Critical returns an entry whose ERROR records are mirrored to the developer chat.
func Critical() *log.Entry {
	return log.WithField(CriticalField, true)
}

// IsCritical reports whether a record should be mirrored.
func IsCritical(e *log.Entry) bool {
	if e.Level <= log.FatalLevel {
		return true
	}
	if e.Level != log.ErrorLevel {
		return false
	}
	v, ok := e.Data[CriticalField].(bool)
	return ok && v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
