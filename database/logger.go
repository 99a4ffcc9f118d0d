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

package database

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/datajpa/utils"
)

// LoggerName is the registry name of the database logger.
const LoggerName = "DATABASE"

// Logger takes a message followed by alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

var (
	packageLogger     Logger
	packageLoggerOnce sync.Once
)

// GetLogger returns the logger used when none is passed explicitly.
func GetLogger() Logger {
	packageLoggerOnce.Do(func() {
		packageLogger = NewDefaultLogger(utils.NewLogger(LoggerName))
	})
	return packageLogger
}

// DefaultLogger adapts a logrus logger; key/value pairs become logrus fields
// and a key without a value is dropped.
type DefaultLogger struct {
	logger *utils.Logger
}

func NewDefaultLogger(logger *utils.Logger) *DefaultLogger {
	return &DefaultLogger{logger: logger}
}

func (l *DefaultLogger) Debug(msg string, kv ...interface{}) { l.log(logrus.DebugLevel, msg, kv) }
func (l *DefaultLogger) Info(msg string, kv ...interface{})  { l.log(logrus.InfoLevel, msg, kv) }
func (l *DefaultLogger) Warn(msg string, kv ...interface{})  { l.log(logrus.WarnLevel, msg, kv) }
func (l *DefaultLogger) Error(msg string, kv ...interface{}) { l.log(logrus.ErrorLevel, msg, kv) }

func (l *DefaultLogger) log(level logrus.Level, msg string, kv []interface{}) {
	if !l.logger.IsLevelEnabled(level) {
		return
	}
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			fields[key] = kv[i+1]
		}
	}
	l.logger.WithFields(fields).Log(level, msg)
}
