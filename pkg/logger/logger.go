// Package logger is the structured, area-filtered file logger used by all
// retrocalc packages. Until Initialize is called every call is a no-op.
package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antibyte/retrocalc/pkg/configuration"
)

// LogLevel orders log severities.
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return "UNKNOWN"
}

// LogArea selects a subsystem that can be switched on or off in [Debug].
type LogArea string

const (
	AreaInterpreter LogArea = "interpreter"
	AreaCalculator  LogArea = "calculator"
	AreaWebSocket   LogArea = "websocket"
	AreaSession     LogArea = "session"
	AreaAuth        LogArea = "auth"
	AreaDatabase    LogArea = "database"
	AreaPrograms    LogArea = "programs"
	AreaConfig      LogArea = "config"
	AreaTUI         LogArea = "tui"
	AreaGeneral     LogArea = "general"
)

var allAreas = []LogArea{
	AreaInterpreter, AreaCalculator, AreaWebSocket, AreaSession, AreaAuth,
	AreaDatabase, AreaPrograms, AreaConfig, AreaTUI, AreaGeneral,
}

// Logger writes formatted entries to a size-rotated file.
type Logger struct {
	enabled     atomic.Bool
	level       atomic.Int32
	areaEnabled map[LogArea]*atomic.Bool

	mu            sync.Mutex
	file          *os.File
	logPath       string
	maxSizeMB     int64
	rotationCount int
	currentSize   int64
}

var (
	globalLogger *Logger
	initOnce     sync.Once
)

// Initialize sets up the global logger from the configuration.
func Initialize() error {
	var err error
	initOnce.Do(func() {
		globalLogger, err = newLogger()
	})
	return err
}

func newLogger() (*Logger, error) {
	l := &Logger{areaEnabled: make(map[LogArea]*atomic.Bool, len(allAreas))}
	for _, area := range allAreas {
		l.areaEnabled[area] = new(atomic.Bool)
	}
	l.loadConfig()
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) loadConfig() {
	l.enabled.Store(configuration.GetBool("Debug", "enable_debug_logging", true))
	l.level.Store(int32(parseLogLevel(configuration.GetString("Debug", "log_level", "INFO"))))

	l.logPath = configuration.GetString("Debug", "log_file", "retrocalc.log")
	l.maxSizeMB = int64(configuration.GetInt("Debug", "max_log_size_mb", 10))
	l.rotationCount = configuration.GetInt("Debug", "log_rotation_count", 3)

	for area, flag := range l.areaEnabled {
		flag.Store(configuration.GetBool("Debug", "log_"+string(area), false))
	}
}

func (l *Logger) openLogFile() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}
	if err := os.MkdirAll(filepath.Dir(l.logPath), 0755); err != nil {
		return err
	}
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	l.file = file
	if stat, err := file.Stat(); err == nil {
		l.currentSize = stat.Size()
	}
	return nil
}

// rotate shifts debug.log -> debug.log.1 -> debug.log.2 ... Caller holds mu.
func (l *Logger) rotate() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	for i := l.rotationCount - 1; i >= 1; i-- {
		oldName := fmt.Sprintf("%s.%d", l.logPath, i)
		newName := fmt.Sprintf("%s.%d", l.logPath, i+1)
		if i == l.rotationCount-1 {
			os.Remove(newName)
		}
		os.Rename(oldName, newName)
	}
	os.Rename(l.logPath, l.logPath+".1")

	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	l.file = file
	l.currentSize = 0
	return nil
}

func (l *Logger) shouldLog(level LogLevel, area LogArea) bool {
	if !l.enabled.Load() || l.level.Load() > int32(level) {
		return false
	}
	flag, ok := l.areaEnabled[area]
	return ok && flag.Load()
}

func (l *Logger) write(level LogLevel, area LogArea, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	_, file, line, _ := runtime.Caller(3)
	entry := fmt.Sprintf("[%s] %s [%s:%d] [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		level,
		filepath.Base(file),
		line,
		strings.ToUpper(string(area)),
		message)

	l.mu.Lock()
	if l.file != nil {
		if n, err := l.file.WriteString(entry); err == nil {
			l.currentSize += int64(n)
			if l.currentSize > l.maxSizeMB*1024*1024 {
				l.rotate()
			}
		}
	}
	l.mu.Unlock()

	// Warnungen und Fehler zusätzlich ins Standard-Log
	if level >= WARN {
		log.Printf("[%s] [%s] %s", level, strings.ToUpper(string(area)), message)
	}
}

func logAt(level LogLevel, area LogArea, format string, args ...interface{}) {
	if globalLogger != nil && globalLogger.shouldLog(level, area) {
		globalLogger.write(level, area, format, args...)
	}
}

// Debug writes a debug entry for area.
func Debug(area LogArea, format string, args ...interface{}) { logAt(DEBUG, area, format, args...) }

// Info writes an info entry for area.
func Info(area LogArea, format string, args ...interface{}) { logAt(INFO, area, format, args...) }

// Warn writes a warning entry for area.
func Warn(area LogArea, format string, args ...interface{}) { logAt(WARN, area, format, args...) }

// Error writes an error entry for area.
func Error(area LogArea, format string, args ...interface{}) { logAt(ERROR, area, format, args...) }

// Fatal logs regardless of area switches and exits the process.
func Fatal(area LogArea, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.write(FATAL, area, format, args...)
	}
	log.Fatalf("[FATAL] [%s] %s", strings.ToUpper(string(area)), fmt.Sprintf(format, args...))
}

// Convenience wrappers for the busiest areas

func WebSocketDebug(format string, args ...interface{}) { Debug(AreaWebSocket, format, args...) }
func WebSocketInfo(format string, args ...interface{})  { Info(AreaWebSocket, format, args...) }
func WebSocketWarn(format string, args ...interface{})  { Warn(AreaWebSocket, format, args...) }
func WebSocketError(format string, args ...interface{}) { Error(AreaWebSocket, format, args...) }

func AuthInfo(format string, args ...interface{})  { Info(AreaAuth, format, args...) }
func AuthWarn(format string, args ...interface{})  { Warn(AreaAuth, format, args...) }
func AuthError(format string, args ...interface{}) { Error(AreaAuth, format, args...) }

func SessionDebug(format string, args ...interface{}) { Debug(AreaSession, format, args...) }
func SessionInfo(format string, args ...interface{})  { Info(AreaSession, format, args...) }

func ConfigInfo(format string, args ...interface{}) { Info(AreaConfig, format, args...) }
func ConfigWarn(format string, args ...interface{}) { Warn(AreaConfig, format, args...) }

// ReloadConfig re-reads level and area switches.
func ReloadConfig() error {
	if globalLogger == nil {
		return fmt.Errorf("logger not initialized")
	}
	globalLogger.loadConfig()
	return nil
}

// EnableArea switches logging for area on at runtime.
func EnableArea(area LogArea) { setArea(area, true) }

// DisableArea switches logging for area off at runtime.
func DisableArea(area LogArea) { setArea(area, false) }

func setArea(area LogArea, on bool) {
	if globalLogger == nil {
		return
	}
	if flag, ok := globalLogger.areaEnabled[area]; ok {
		flag.Store(on)
	}
}

// ListAreas returns every known area.
func ListAreas() []LogArea {
	return append([]LogArea(nil), allAreas...)
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Close flushes and closes the log file.
func Close() {
	if globalLogger == nil {
		return
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	if globalLogger.file != nil {
		globalLogger.file.Sync()
		globalLogger.file.Close()
		globalLogger.file = nil
	}
}
