package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	libLogger "github.com/ltick/tick-log"
)

var (
	errGetLogger       = "logger: get '%s' logger error"
	errGetLoggerTarget = "logger: get '%s' logger target error"
	errTargetConfig    = "logger: invalid target config '%q' '%q'"
	errTargetType      = "logger: invalid target %q"
)

func NewTickHandler() Handler {
	return &TickHandler{}
}

type TickHandler struct {
	Loggers      map[string]*libLogger.Logger
	Targets      map[string]libLogger.Target
	loggerLocker sync.RWMutex
	targetLocker sync.RWMutex
}

func (this *TickHandler) Initiate(ctx context.Context) error {
	this.Loggers = make(map[string]*libLogger.Logger, 0)
	this.Targets = make(map[string]libLogger.Target, 0)
	return nil
}

func (this *TickHandler) NewLogger(name string) *libLogger.Logger {
	if this.Loggers != nil {
		l, err := this.GetLogger(name)
		if err == nil {
			return l
		}
		l = libLogger.NewLogger()
		this.loggerLocker.Lock()
		this.Loggers[name] = l
		this.loggerLocker.Unlock()
		return l
	}
	return nil
}

func (this *TickHandler) GetLogger(name string) (*libLogger.Logger, error) {
	this.loggerLocker.RLock()
	l, ok := this.Loggers[name]
	this.loggerLocker.RUnlock()
	if !ok {
		return nil, fmt.Errorf(errGetLogger+": logger not exists", name)
	}
	return l, nil
}

func (this *TickHandler) GetLoggerTarget(name string) (libLogger.Target, error) {
	this.targetLocker.RLock()
	t, ok := this.Targets[name]
	this.targetLocker.RUnlock()
	if !ok {
		return nil, fmt.Errorf(errGetLoggerTarget, name)
	}
	return t, nil
}

// RegisterLoggerTarget decodes targetConfig, a JSON object, into a new
// target of the given type. File config sample:
// {
//     "FileName": "/var/log/rediscluster.log",
//     "Rotate": true,
//     "BackupCount": 10,
//     "MaxBytes": 1048576
// }
func (this *TickHandler) RegisterLoggerTarget(name string, targetType string, targetConfig string) error {
	target, _ := this.GetLoggerTarget(name)
	if target != nil {
		return nil
	}
	if targetConfig == "" {
		targetConfig = "{}"
	}
	switch targetType {
	case "file":
		fileLogTarget := libLogger.NewFileTarget()
		err := json.Unmarshal([]byte(targetConfig), fileLogTarget)
		if err != nil {
			return fmt.Errorf(errTargetConfig, targetConfig, err.Error())
		}
		target = fileLogTarget
	case "console":
		consoleLogTarget := libLogger.NewConsoleTarget()
		err := json.Unmarshal([]byte(targetConfig), consoleLogTarget)
		if err != nil {
			return fmt.Errorf(errTargetConfig, targetConfig, err.Error())
		}
		target = consoleLogTarget
	default:
		return fmt.Errorf(errTargetType, targetType)
	}
	this.targetLocker.Lock()
	this.Targets[name] = target
	this.targetLocker.Unlock()
	return nil
}

func (this *TickHandler) SetLoggerTarget(name string, targetName string) error {
	logger, err := this.GetLogger(name)
	if err != nil {
		return err
	}
	target, err := this.GetLoggerTarget(targetName)
	if err != nil {
		return err
	}
	this.loggerLocker.Lock()
	logger.Targets = append(logger.Targets, target)
	this.loggerLocker.Unlock()
	return nil
}

func (this *TickHandler) SetLoggerMaxLevel(name string, level libLogger.Level) error {
	logger, err := this.GetLogger(name)
	if err != nil {
		return err
	}
	this.loggerLocker.Lock()
	logger.MaxLevel = level
	this.loggerLocker.Unlock()
	return nil
}

func (this *TickHandler) SetLoggerFormatter(name string, f libLogger.Formatter) error {
	logger, err := this.GetLogger(name)
	if err != nil {
		return err
	}
	this.loggerLocker.Lock()
	logger.Formatter = f
	this.loggerLocker.Unlock()
	return nil
}

func (this *TickHandler) OpenLogger(name string) error {
	logger, err := this.GetLogger(name)
	if err != nil {
		return err
	}
	return logger.Open()
}

// CloseLogger flushes and closes all targets of the logger.
func (this *TickHandler) CloseLogger(name string) error {
	logger, err := this.GetLogger(name)
	if err != nil {
		return err
	}
	logger.Close()
	return nil
}
