/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is what NewLogger hands out; packages keep one per LoggerName.
type Logger = logrus.Logger

var loggers = struct {
	sync.Mutex
	byName map[string]*logrus.Logger
	level  logrus.Level
	json   bool
	out    io.Writer
}{
	byName: make(map[string]*logrus.Logger),
	level:  ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info")),
	json:   strings.EqualFold(EnvDefaultString("CONSOLE_LOG_FORMAT", "text"), "json"),
	out:    os.Stdout,
}

// NewLogger returns the named logger, creating it on first use with the
// configured level, output and format.
func NewLogger(name string) *logrus.Logger {
	loggers.Lock()
	defer loggers.Unlock()
	if l, ok := loggers.byName[name]; ok {
		return l
	}
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetLevel(loggers.level)
	l.SetOutput(loggers.out)
	if loggers.json {
		l.SetFormatter(&JSONFormatter{Name: name})
	} else {
		l.SetFormatter(&TextFormatter{Name: name, Width: 10, Color: isTerminal(loggers.out)})
	}
	loggers.byName[name] = l
	return l
}

// SetLoggerLevel changes one logger; it reports false for unknown names.
func SetLoggerLevel(name, level string) bool {
	loggers.Lock()
	defer loggers.Unlock()
	l, ok := loggers.byName[name]
	if ok {
		l.SetLevel(ParseLogLevel(level))
	}
	return ok
}

// ConfigureLogLevel sets the level of every logger, existing and future.
func ConfigureLogLevel(level string) {
	lvl := ParseLogLevel(level)
	loggers.Lock()
	defer loggers.Unlock()
	loggers.level = lvl
	for _, l := range loggers.byName {
		l.SetLevel(lvl)
	}
}

// ConfigureConsoleLogFormat selects "json" or "text" for loggers created afterwards.
func ConfigureConsoleLogFormat(format string) {
	loggers.Lock()
	loggers.json = strings.EqualFold(strings.TrimSpace(format), "json")
	loggers.Unlock()
}

// ConfigureOutput redirects every logger, existing and future, to w.
func ConfigureOutput(w io.Writer) {
	if w == nil {
		return
	}
	loggers.Lock()
	defer loggers.Unlock()
	loggers.out = w
	for _, l := range loggers.byName {
		l.SetOutput(w)
	}
}

// ParseLogLevel maps a level name to logrus, defaulting to info.
func ParseLogLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Since formats the elapsed time the way request logs print it.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
