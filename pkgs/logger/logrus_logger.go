package logger

import (
	"os"
	"path/filepath"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

// LogrusLogger is the default Logger implementation. It wraps a
// logrus.Entry so that structured fields (key/value pairs passed to
// Debug/Info/Warn/Error/Fatal) and module namespaces compose cleanly
// with logrus's formatter and hook chain.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger creates a Logger that writes to stderr and, when
// logDir is non-empty, additionally writes daily-rotated files under
// logDir via lfshook+file-rotatelogs.
func NewLogrusLogger(logDir string) (*LogrusLogger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o700); err != nil {
			return nil, err
		}
		writer, err := rotatelogs.New(
			filepath.Join(logDir, "ngit.%Y%m%d.log"),
			rotatelogs.WithRotationTime(0),
		)
		if err != nil {
			return nil, err
		}
		logger.AddHook(lfshook.NewHook(lfshook.WriterMap{
			logrus.DebugLevel: writer,
			logrus.InfoLevel:  writer,
			logrus.WarnLevel:  writer,
			logrus.ErrorLevel: writer,
			logrus.FatalLevel: writer,
		}, &logrus.TextFormatter{FullTimestamp: true}))
	}

	return &LogrusLogger{entry: logrus.NewEntry(logger)}, nil
}

func (l *LogrusLogger) SetToDebug() { l.entry.Logger.SetLevel(logrus.DebugLevel) }
func (l *LogrusLogger) SetToInfo()  { l.entry.Logger.SetLevel(logrus.InfoLevel) }
func (l *LogrusLogger) SetToError() { l.entry.Logger.SetLevel(logrus.ErrorLevel) }

// Module returns a child logger tagged with the given namespace.
func (l *LogrusLogger) Module(ns string) Logger {
	return &LogrusLogger{entry: l.entry.WithField("module", ns)}
}

func fields(keyValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		f[key] = keyValues[i+1]
	}
	return f
}

func (l *LogrusLogger) Debug(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Error(msg)
}

func (l *LogrusLogger) Fatal(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fields(keyValues)).Fatal(msg)
}

// NewNullLogger returns a Logger that drops everything below error
// level and writes errors to stderr only. Useful for tests and for the
// remote-helper binary's stdout-safety requirement (the helper
// protocol demands the helper never write unsolicited output to
// stdout, so diagnostic logging there must be disabled by default and
// routed to stderr only).
func NewNullLogger() Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return &LogrusLogger{entry: logrus.NewEntry(logger)}
}
