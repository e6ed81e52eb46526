/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package log

import (
	"fmt"
	"io"
	"log"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// exit is swapped in tests.
var exit = os.Exit

type hclogLogger struct {
	opts  LoggerOptions
	level Level
	log   hclog.Logger
}

func newHclogLogger(opts LoggerOptions) *hclogLogger {
	return &hclogLogger{
		opts:  opts,
		level: opts.Level,
		log: hclog.New(&hclog.LoggerOptions{
			Name:                     opts.Name,
			Level:                    opts.Level.hclog(),
			Output:                   opts.Output,
			Mutex:                    opts.Mutex,
			TimeFormat:               opts.TimeFormat,
			IncludeLocation:          opts.IncludeLocation,
			AdditionalLocationOffset: 1,
		}),
	}
}

func (l *hclogLogger) Trace(msg string) {
	l.log.Trace(msg)
}

func (l *hclogLogger) Tracef(format string, args ...interface{}) {
	if l.log.IsTrace() {
		l.log.Trace(fmt.Sprintf(format, args...))
	}
}

func (l *hclogLogger) Debug(msg string) {
	l.log.Debug(msg)
}

func (l *hclogLogger) Debugf(format string, args ...interface{}) {
	if l.log.IsDebug() {
		l.log.Debug(fmt.Sprintf(format, args...))
	}
}

func (l *hclogLogger) Info(msg string) {
	l.log.Info(msg)
}

func (l *hclogLogger) Infof(format string, args ...interface{}) {
	if l.log.IsInfo() {
		l.log.Info(fmt.Sprintf(format, args...))
	}
}

func (l *hclogLogger) Warn(msg string) {
	l.log.Warn(msg)
}

func (l *hclogLogger) Warnf(format string, args ...interface{}) {
	if l.log.IsWarn() {
		l.log.Warn(fmt.Sprintf(format, args...))
	}
}

func (l *hclogLogger) Error(msg string) {
	l.log.Error(msg)
}

func (l *hclogLogger) Errorf(format string, args ...interface{}) {
	if l.log.IsError() {
		l.log.Error(fmt.Sprintf(format, args...))
	}
}

func (l *hclogLogger) Fatal(msg string) {
	l.log.Error(msg)
	exit(1)
}

func (l *hclogLogger) Fatalf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
	exit(1)
}

func (l *hclogLogger) Panic(msg string) {
	l.log.Error(msg)
	panic(msg)
}

func (l *hclogLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.log.Error(msg)
	panic(msg)
}

func (l *hclogLogger) Named(name string) Logger {
	sub := *l
	if sub.opts.Name != "" {
		sub.opts.Name = sub.opts.Name + "." + name
	} else {
		sub.opts.Name = name
	}
	sub.log = l.log.Named(name)
	return &sub
}

func (l *hclogLogger) ResetNamed(name string) Logger {
	sub := *l
	sub.opts.Name = name
	sub.log = l.log.ResetNamed(name)
	return &sub
}

func (l *hclogLogger) WithLevel(level Level) Logger {
	opts := l.opts
	opts.Level = level
	return newHclogLogger(opts)
}

func (l *hclogLogger) IsEnabled(level Level) bool {
	if l.level == Off || level == Off || level == NotSet {
		return false
	}
	return level <= l.level
}

func (l *hclogLogger) StdLogger(opts *StdLoggerOptions) *log.Logger {
	return l.log.StandardLogger(stdOptions(opts))
}

func (l *hclogLogger) StdWriter(opts *StdLoggerOptions) io.Writer {
	return l.log.StandardWriter(stdOptions(opts))
}

func (l *hclogLogger) HCLog() hclog.Logger {
	return l.log
}

func stdOptions(opts *StdLoggerOptions) *hclog.StandardLoggerOptions {
	if opts == nil {
		return &hclog.StandardLoggerOptions{}
	}
	std := &hclog.StandardLoggerOptions{InferLevels: opts.InferLevels}
	if opts.ForceLevel != NotSet {
		std.ForceLevel = opts.ForceLevel.hclog()
	}
	return std
}
