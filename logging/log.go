// Package logging provides the shared logger for genperf.
package logging

import (
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
)

var defaultLog *logrus.Logger

func init() {
	defaultLog = logrus.New()
	defaultLog.SetOutput(os.Stdout)
	defaultLog.SetLevel(logrus.InfoLevel)
	defaultLog.SetFormatter(&logrus.TextFormatter{
		DisableColors:   false,
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})
}

// SetDebug switches the logger to DEBUG level.
func SetDebug() {
	defaultLog.SetLevel(logrus.DebugLevel)
}

// SetQuiet raises the threshold to ERROR so machine-readable output stays clean.
func SetQuiet() {
	defaultLog.SetLevel(logrus.ErrorLevel)
}

// Debug - Debug message
func Debug(args ...interface{}) {
	defaultLog.Debug(args...)
}

// Debugf - Debug message
func Debugf(format string, args ...interface{}) {
	defaultLog.Debugf(format, args...)
}

// Error - Error message
func Error(args ...interface{}) {
	defaultLog.Error(args...)
}

// Errorf - Error message
func Errorf(format string, args ...interface{}) {
	defaultLog.Errorf(format, args...)
}

// Info - Info Message
func Info(args ...interface{}) {
	defaultLog.Info(args...)
}

// Infof - Info Message
func Infof(format string, args ...interface{}) {
	defaultLog.Infof(format, args...)
}

// Warn - Warn Message
func Warn(args ...interface{}) {
	defaultLog.Warn(args...)
}

// Warnf - Warn Message
func Warnf(format string, args ...interface{}) {
	defaultLog.Warnf(format, args...)
}

// MemUsage logs a one-line snapshot of allocator state, tagged so that
// before/after pairs around a generation call can be compared.
func MemUsage(tag string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	Debugf("memory [%s]: alloc=%dMB sys=%dMB heapInUse=%dMB numGC=%d",
		tag, m.Alloc>>20, m.Sys>>20, m.HeapInuse>>20, m.NumGC)
}
