// Leveled log wrapper shared by the whole module.
//
// Levels, from most to least severe: FATAL, ERROR, WARNING, INFO, DEBUG.
// The default output level is INFO; change it with log.SetLevel() or by
// setting the `LOG_LEVEL` environment variable before the process starts.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelFatal Level = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
)

var levelTags = [...]string{"fatal", "error", "warning", "info", "debug"}

func (l Level) String() string {
	if l < LevelFatal || l > LevelDebug {
		return "unknown"
	}
	return levelTags[l]
}

// ParseLevel maps a level name to a Level. Unknown names map to LevelInfo.
func ParseLevel(s string) Level {
	for i, tag := range levelTags {
		if strings.EqualFold(s, tag) || (tag == "warning" && strings.EqualFold(s, "warn")) {
			return Level(i)
		}
	}
	return LevelInfo
}

type Logger struct {
	out   *log.Logger
	level Level
}

func New() *Logger {
	level := LevelInfo
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = ParseLevel(env)
	}
	return &Logger{
		out:   log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile),
		level: level,
	}
}

func (l *Logger) SetLevel(level Level)  { l.level = level }
func (l *Logger) SetOutput(w io.Writer) { l.out.SetOutput(w) }

func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if level > l.level {
		return
	}
	l.out.Output(3, "["+level.String()+"] "+fmt.Sprintf(format, v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) { l.logf(LevelDebug, format, v...) }
func (l *Logger) Infof(format string, v ...interface{})  { l.logf(LevelInfo, format, v...) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.logf(LevelWarning, format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.logf(LevelError, format, v...) }

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logf(LevelFatal, format, v...)
	os.Exit(1)
}

var std = New()

func SetLevel(level Level)          { std.SetLevel(level) }
func SetLevelByString(level string) { std.SetLevel(ParseLevel(level)) }
func SetOutput(w io.Writer)         { std.SetOutput(w) }
func GetLevel() Level               { return std.level }

func Debugf(format string, v ...interface{}) { std.logf(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { std.logf(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { std.logf(LevelWarning, format, v...) }
func Errorf(format string, v ...interface{}) { std.logf(LevelError, format, v...) }
func Fatalf(format string, v ...interface{}) { std.Fatalf(format, v...) }

func Debug(v ...interface{}) { std.logf(LevelDebug, "%s", fmt.Sprint(v...)) }
func Info(v ...interface{})  { std.logf(LevelInfo, "%s", fmt.Sprint(v...)) }
func Warn(v ...interface{})  { std.logf(LevelWarning, "%s", fmt.Sprint(v...)) }
func Error(v ...interface{}) { std.logf(LevelError, "%s", fmt.Sprint(v...)) }
