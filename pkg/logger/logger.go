// Package logger is the leveled process-wide logger. Messages are written
// as "<RFC3339 time> [LEVEL] message". The *w variants append key=value
// pairs so log lines about items and actors stay greppable.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	s := strings.ToLower(strings.TrimSpace(l))
	switch s {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	case "fatal":
		level = LevelFatal
	default:
		level = LevelInfo
	}
}

func header(lvl string) string {
	return fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(lvl))
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func Debugf(format string, v ...interface{}) {
	if !shouldLog(LevelDebug) {
		return
	}
	output().Printf(header("debug")+format, v...)
}

func Infof(format string, v ...interface{}) {
	if !shouldLog(LevelInfo) {
		return
	}
	output().Printf(header("info")+format, v...)
}

func Warnf(format string, v ...interface{}) {
	if !shouldLog(LevelWarn) {
		return
	}
	output().Printf(header("warn")+format, v...)
}

func Errorf(format string, v ...interface{}) {
	if !shouldLog(LevelError) {
		return
	}
	output().Printf(header("error")+format, v...)
}

func Debugw(msg string, kv ...interface{}) { logw(LevelDebug, "debug", msg, kv) }
func Infow(msg string, kv ...interface{}) { logw(LevelInfo, "info", msg, kv) }
func Warnw(msg string, kv ...interface{}) { logw(LevelWarn, "warn", msg, kv) }
func Errorw(msg string, kv ...interface{}) { logw(LevelError, "error", msg, kv) }

func logw(l Level, name, msg string, kv []interface{}) {
	if !shouldLog(l) {
		return
	}
	output().Print(header(name) + msg + Fields(kv...))
}

// Fields renders pairs as " k=v k2=v2". Values with spaces or quotes are
// quoted; a trailing key without value gets "(missing)".
func Fields(kv ...interface{}) string {
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteByte('=')
		if i+1 >= len(kv) {
			b.WriteString("(missing)")
			break
		}
		v := fmt.Sprint(kv[i+1])
		if v == "" || strings.ContainsAny(v, " \t\"=") {
			v = strconv.Quote(v)
		}
		b.WriteString(v)
	}
	return b.String()
}

// Writer returns an io.Writer that logs each write as one line at level l,
// for libraries that want a writer (gin's access log).
func Writer(l Level) io.Writer { return levelWriter(l) }

type levelWriter Level

func (w levelWriter) Write(p []byte) (int, error) {
	l := Level(w)
	if shouldLog(l) {
		output().Print(header(levelName(l)) + strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}

func Fatalf(format string, v ...interface{}) {
	output().Printf(header("fatal")+format, v...)
	os.Exit(1)
}

// SetOutput redirects log output and returns a func restoring the previous
// writer. Intended for tests.
func SetOutput(w io.Writer) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prev := logger
	logger = log.New(w, "", 0)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		logger = prev
	}
}

func output() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return levelName(level)
}

func levelName(l Level) string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
