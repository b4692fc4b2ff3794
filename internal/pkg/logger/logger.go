package logger

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Logger defines the interface for structured logging. Handlers, services
// and repositories depend only on this interface.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error)
	Fatal(msg string, err error)
}

// LogEntry is the JSON shape of a single log line.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// SimpleLogger is a concrete Logger built on the standard log package
// with structured JSON output.
type SimpleLogger struct {
	logLevel string // "debug", "info", "warn", "error"
}

// NewLogger creates a Logger filtering below the given level.
func NewLogger(level string) Logger {
	log.SetFlags(0)
	return &SimpleLogger{logLevel: level}
}

func (l *SimpleLogger) logf(level, msg string, fields map[string]interface{}, err error) {
	if !l.shouldLog(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Message:   msg,
	}
	if fields != nil {
		entry.Fields = fields
	}
	if err != nil {
		entry.Error = err.Error()
	}

	jsonBytes, _ := json.Marshal(entry)
	log.Println(string(jsonBytes))

	if level == "FATAL" {
		os.Exit(1)
	}
}

func (l *SimpleLogger) shouldLog(level string) bool {
	levels := map[string]int{
		"debug": 0,
		"info":  1,
		"warn":  2,
		"error": 3,
		"fatal": 4,
	}

	currentLevel, ok := levels[l.logLevel]
	if !ok {
		currentLevel = 1 // default to info
	}

	targetLevel, ok := levels[level]
	if !ok {
		// logf passes upper-case level names
		switch level {
		case "DEBUG":
			targetLevel = 0
		case "INFO":
			targetLevel = 1
		case "WARN":
			targetLevel = 2
		case "ERROR":
			targetLevel = 3
		case "FATAL":
			targetLevel = 4
		default:
			return false
		}
	}

	return targetLevel >= currentLevel
}

func (l *SimpleLogger) Debug(msg string, fields map[string]interface{}) {
	l.logf("DEBUG", msg, fields, nil)
}

func (l *SimpleLogger) Info(msg string, fields map[string]interface{}) {
	l.logf("INFO", msg, fields, nil)
}

func (l *SimpleLogger) Warn(msg string, fields map[string]interface{}) {
	l.logf("WARN", msg, fields, nil)
}

func (l *SimpleLogger) Error(msg string, err error) {
	l.logf("ERROR", msg, nil, err)
}

func (l *SimpleLogger) Fatal(msg string, err error) {
	l.logf("FATAL", msg, nil, err)
}
