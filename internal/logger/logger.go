package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	log     = newLogger(os.Stderr)
	logFile *os.File
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init points the logger at logFilePath and sets the level.
func Init(logFilePath, level string) error {
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	SetLevel(level)
	return nil
}

// SetLevel parses level, keeping the current level when it is not recognised.
func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
}

// SetOutput redirects log output. Used by tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Cleanup closes the log file when the application is done using it
func Cleanup() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	log.SetOutput(os.Stderr)
}

// Debug logs msg with trailing key/value pairs as fields.
func Debug(msg string, kv ...interface{}) {
	log.WithFields(fields(kv)).Debug(msg)
}

// Info logs an informational message.
func Info(msg string, kv ...interface{}) {
	log.WithFields(fields(kv)).Info(msg)
}

// Warn logs a recoverable problem.
func Warn(msg string, kv ...interface{}) {
	log.WithFields(fields(kv)).Warn(msg)
}

// Error logs an error message.
func Error(msg string, kv ...interface{}) {
	log.WithFields(fields(kv)).Error(msg)
}

// fields turns alternating key/value arguments into logrus fields. A dangling
// key is kept under "extra".
func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			f["extra"] = kv[i]
			break
		}
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
