// Package common provides logging utilities for the application
package common

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements logger.ILogger)
// --------------------------------------------------------------------------

// mKVLogger implements the ILogger interface with custom formatting
type mKVLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *mKVLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *mKVLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *mKVLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *mKVLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *mKVLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *mKVLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *mKVLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the logger factory interface
func CreateLogger(pkgName string) logger.ILogger {
	// Create standard logger with custom flags
	stdLogger := log.New(os.Stderr, "", log.Ldate|log.Ltime)

	return &mKVLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// loggerNames lists every named logger the application uses
var loggerNames = []string{
	"server",
	"db",
	"client",
	"resp",
}

// InitLoggers installs the custom logger factory and applies the
// configured verbosity to every named logger.
func InitLoggers(logLevel string) error {
	level, err := ParseLogLevel(logLevel)
	if err != nil {
		return err
	}

	// Set as the global logger factory
	logger.SetLoggerFactory(CreateLogger)

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(level)
	}

	return nil
}
