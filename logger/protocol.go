package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
	libLog "github.com/ltick/tick-log"
)

var (
	errInitiate       = "logger: initiate '%s' error"
	errInvalidLogType = "logger: invalid log type '%s'"
)

// LogFunc logs a message using the given format and optional arguments.
// The usage of format and arguments is similar to that for fmt.Printf().
// LogFunc should be thread safe.
type LogFunc func(ctx context.Context, format string, data ...interface{})

func DiscardLogFunc(ctx context.Context, format string, data ...interface{}) {
}

// Type describes the type of a log target.
type Type int

const (
	TypeUnknown Type = iota
	TypeFile
	TypeConsole
)

var TypeNames = map[Type]string{
	TypeUnknown: "unknown",
	TypeFile:    "file",
	TypeConsole: "console",
}

func (t Type) String() string {
	if name, ok := TypeNames[t]; ok {
		return name
	}
	return TypeNames[TypeUnknown]
}

func StringToType(name string) Type {
	for typ, typeName := range TypeNames {
		if typeName == strings.ToLower(name) {
			return typ
		}
	}
	return TypeUnknown
}

// Level describes the level of a log message.
type Level int

// RFC5424 log message levels.
const (
	LevelEmergency Level = iota
	LevelAlert
	LevelCritical
	LevelError
	LevelWarning
	LevelNotice
	LevelInfo
	LevelDebug
)

// LevelNames maps log levels to names
var LevelNames = map[Level]string{
	LevelDebug:     "debug",
	LevelInfo:      "info",
	LevelNotice:    "notice",
	LevelWarning:   "warning",
	LevelError:     "error",
	LevelCritical:  "critical",
	LevelAlert:     "alert",
	LevelEmergency: "emergency",
}

// String returns the string representation of the log level
func (l Level) String() string {
	if name, ok := LevelNames[l]; ok {
		return name
	}
	return "Unknown"
}

func StringToLevel(name string) Level {
	for level, levelName := range LevelNames {
		if levelName == strings.ToLower(name) {
			return level
		}
	}
	return LevelDebug
}

func (l Level) tickLevel() libLog.Level {
	switch l {
	case LevelEmergency:
		return libLog.LevelEmergency
	case LevelAlert:
		return libLog.LevelAlert
	case LevelCritical:
		return libLog.LevelCritical
	case LevelError:
		return libLog.LevelError
	case LevelWarning:
		return libLog.LevelWarning
	case LevelNotice:
		return libLog.LevelNotice
	case LevelInfo:
		return libLog.LevelInfo
	}
	return libLog.LevelDebug
}

// TickLogFunc writes every message to l at the given level.
func TickLogFunc(l *libLog.Logger, level Level) LogFunc {
	return func(ctx context.Context, format string, data ...interface{}) {
		switch level {
		case LevelEmergency:
			l.Emergency(format, data...)
		case LevelAlert:
			l.Alert(format, data...)
		case LevelCritical:
			l.Critical(format, data...)
		case LevelError:
			l.Error(format, data...)
		case LevelWarning:
			l.Warning(format, data...)
		case LevelNotice:
			l.Notice(format, data...)
		case LevelInfo:
			l.Info(format, data...)
		default:
			l.Debug(format, data...)
		}
	}
}

// Logger keeps named loggers and their targets behind a registered
// provider.
type Logger struct {
	Provider string
	handler  Handler
}

func NewLogger(ctx context.Context) (*Logger, error) {
	l := &Logger{}
	err := Register("tick", NewTickHandler)
	if err != nil {
		return nil, errors.Annotatef(err, errInitiate, "tick")
	}
	err = l.Use(ctx, "tick")
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) Use(ctx context.Context, provider string) error {
	handler, err := Use(provider)
	if err != nil {
		return err
	}
	l.Provider = provider
	l.handler = handler()
	err = l.handler.Initiate(ctx)
	if err != nil {
		return errors.Annotatef(err, errInitiate, l.Provider)
	}
	return nil
}

// Open creates the named logger, writes it to a fresh target of the given
// type and opens it.
func (l *Logger) Open(name string, typ Type, targetConfig string, maxLevel Level) (*libLog.Logger, error) {
	if typ != TypeFile && typ != TypeConsole {
		return nil, errors.Errorf(errInvalidLogType, typ)
	}
	lg := l.handler.NewLogger(name)
	if err := l.handler.RegisterLoggerTarget(name, typ.String(), targetConfig); err != nil {
		return nil, errors.Trace(err)
	}
	if err := l.handler.SetLoggerTarget(name, name); err != nil {
		return nil, errors.Trace(err)
	}
	if err := l.handler.SetLoggerMaxLevel(name, maxLevel.tickLevel()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := l.handler.SetLoggerFormatter(name, DefaultLogFormatter()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := l.handler.OpenLogger(name); err != nil {
		return nil, errors.Trace(err)
	}
	return lg, nil
}

// LogFunc returns a LogFunc bound to the named logger, or DiscardLogFunc
// when it does not exist.
func (l *Logger) LogFunc(name string, level Level) LogFunc {
	lg, err := l.handler.GetLogger(name)
	if err != nil {
		return DiscardLogFunc
	}
	return TickLogFunc(lg, level)
}

func (l *Logger) GetLogger(name string) (*libLog.Logger, error) {
	return l.handler.GetLogger(name)
}

func (l *Logger) CloseLogger(name string) error {
	return l.handler.CloseLogger(name)
}

func DefaultLogFormatter() libLog.Formatter {
	return func(l *libLog.Logger, e *libLog.Entry) string {
		return fmt.Sprintf("%s|%s|%v%v", e.Time.Format(time.RFC3339), e.Level, e.Message, e.CallStack)
	}
}

func RawLogFormatter() libLog.Formatter {
	return func(l *libLog.Logger, e *libLog.Entry) string {
		return fmt.Sprintf("%v%v", e.Message, e.CallStack)
	}
}

type logHandler func() Handler

var logHandlers = make(map[string]logHandler)

func Register(name string, logHandler logHandler) error {
	if logHandler == nil {
		return errors.New("logger: Register log is nil")
	}
	if _, ok := logHandlers[name]; !ok {
		logHandlers[name] = logHandler
	}
	return nil
}

func Use(name string) (logHandler, error) {
	if _, exist := logHandlers[name]; !exist {
		return nil, errors.New(fmt.Sprintf("logger: unknown log '%s' (forgotten register?)", name))
	}
	return logHandlers[name], nil
}

type Handler interface {
	Initiate(ctx context.Context) error
	NewLogger(name string) *libLog.Logger
	GetLogger(name string) (*libLog.Logger, error)
	GetLoggerTarget(name string) (libLog.Target, error)
	RegisterLoggerTarget(name string, targetType string, targetConfig string) error
	SetLoggerTarget(name string, targetName string) error
	SetLoggerMaxLevel(name string, level libLog.Level) error
	SetLoggerFormatter(name string, f libLog.Formatter) error
	OpenLogger(name string) error
	CloseLogger(name string) error
}
