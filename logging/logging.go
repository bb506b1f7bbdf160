package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	debugLogger zerolog.Logger
	logFile     *os.File
	mu          sync.Mutex
	isSetup     bool
	debugOn     bool
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DurationFieldInteger = true
	debugLogger = newConsoleLogger(os.Stderr, zerolog.InfoLevel)
}

func newConsoleLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
	}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// SetupLogger initializes the debug logger with the specified log file
func SetupLogger(logFilePath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Check if logger is already set up
	if isSetup {
		return nil
	}

	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	debugLogger = zerolog.New(logFile).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	debugLogger.Info().Msgf("--- lcdmatch debug log started at %s ---", time.Now().Format(time.RFC3339))

	debugOn = true
	isSetup = true
	return nil
}

// SetOutput redirects logging to an arbitrary writer. Used by tests and the
// HTTP server when running in the foreground.
func SetOutput(w io.Writer, debug bool) {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	debugLogger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	debugOn = debug
}

// CloseLogger closes the log file
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		debugLogger.Info().Msgf("--- lcdmatch debug log closed at %s ---", time.Now().Format(time.RFC3339))
		logFile.Close()
		logFile = nil
		isSetup = false
		debugOn = false
		debugLogger = newConsoleLogger(os.Stderr, zerolog.InfoLevel)
	}
}

// DebugEnabled reports whether debug-level messages are being written.
func DebugEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return debugOn
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	debugLogger.Info().Msgf(format, args...)
}

// DebugLog logs a message if debug mode is enabled
func DebugLog(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	debugLogger.Debug().Msgf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	debugLogger.Error().Msgf(format, args...)
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	debugLogger.Warn().Msgf(format, args...)
}

// Event writes a structured debug record for a pipeline component.
func Event(component, message string, fields map[string]interface{}) {
	mu.Lock()
	defer mu.Unlock()

	event := debugLogger.Debug()
	if !event.Enabled() {
		return
	}
	event = event.Str("component", component)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

// LogReferenceProcessed logs when a reference image is registered
func LogReferenceProcessed(path string, success bool, errMsg string) {
	mu.Lock()
	defer mu.Unlock()

	if success {
		debugLogger.Debug().Str("path", path).Msg("PROCESSED")
	} else {
		debugLogger.Warn().Str("path", path).Str("error", errMsg).Msg("FAILED")
	}
}
