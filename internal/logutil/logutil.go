package logutil

import "github.com/decred/slog"

// prefixLogger is an slog.Logger that tags every message with a fixed
// prefix before handing it to the wrapped logger.
type prefixLogger struct {
	log    slog.Logger
	prefix string
}

func (p *prefixLogger) args(v []interface{}) []interface{} {
	return append([]interface{}{p.prefix + " "}, v...)
}

func (p *prefixLogger) Tracef(format string, params ...interface{}) {
	p.log.Tracef(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Debugf(format string, params ...interface{}) {
	p.log.Debugf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Infof(format string, params ...interface{}) {
	p.log.Infof(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Warnf(format string, params ...interface{}) {
	p.log.Warnf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Errorf(format string, params ...interface{}) {
	p.log.Errorf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Criticalf(format string, params ...interface{}) {
	p.log.Criticalf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Trace(v ...interface{})    { p.log.Trace(p.args(v)...) }
func (p *prefixLogger) Debug(v ...interface{})    { p.log.Debug(p.args(v)...) }
func (p *prefixLogger) Info(v ...interface{})     { p.log.Info(p.args(v)...) }
func (p *prefixLogger) Warn(v ...interface{})     { p.log.Warn(p.args(v)...) }
func (p *prefixLogger) Error(v ...interface{})    { p.log.Error(p.args(v)...) }
func (p *prefixLogger) Critical(v ...interface{}) { p.log.Critical(p.args(v)...) }

// Level returns the current logging level of the wrapped logger.
func (p *prefixLogger) Level() slog.Level {
	return p.log.Level()
}

// SetLevel changes the logging level of the wrapped logger.
func (p *prefixLogger) SetLevel(level slog.Level) {
	p.log.SetLevel(level)
}

// PrefixLogger returns a logger that prepends prefix to every message. A nil
// log results in slog.Disabled.
func PrefixLogger(log slog.Logger, prefix string) slog.Logger {
	if log == nil {
		log = slog.Disabled
	}
	return &prefixLogger{log: log, prefix: prefix}
}
