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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000"

var levelColors = map[logrus.Level]*color.Color{
	logrus.PanicLevel: color.New(color.FgRed),
	logrus.FatalLevel: color.New(color.FgRed),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.DebugLevel: color.New(color.FgBlue),
	logrus.TraceLevel: color.New(color.FgMagenta),
}

// TextFormatter writes Spring Boot style console lines:
//
//	2025-01-02 03:04:05.000  INFO 4242   --- [  DATABASE] manager.go:88 : connected type=sqlite
type TextFormatter struct {
	Name  string
	Width int
	Color bool
}

func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := fmt.Sprintf("%5s", strings.ToUpper(entry.Level.String()))
	name := []rune(f.Name)
	if f.Width > 0 && len(name) > f.Width {
		name = name[:f.Width]
	}
	label := fmt.Sprintf("%*s", f.Width, string(name))
	if f.Color {
		if c, ok := levelColors[entry.Level]; ok {
			level = c.Sprint(level)
		}
		label = color.CyanString(label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %-6d --- [%s]", entry.Time.Format(timestampFormat), level, os.Getpid(), label)
	if entry.Caller != nil {
		fmt.Fprintf(&b, " %s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	b.WriteString(" : " + entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// topLevelFields are request fields the JSON formatter lifts out of "fields".
var topLevelFields = map[string]string{
	"client_ip": "client_ip",
	"method":    "method",
	"path":      "path",
	"latency":   "latency",
	"status":    "status_code",
}

// JSONFormatter writes one object per line with time, level, logger,
// caller and message keys.
type JSONFormatter struct {
	Name string
}

func (f *JSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	rec := map[string]interface{}{
		"time":    entry.Time.Format(timestampFormat),
		"level":   entry.Level.String(),
		"logger":  f.Name,
		"message": entry.Message,
	}
	if entry.Caller != nil {
		rec["caller"] = fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}

	fields := make(map[string]interface{})
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		if key, ok := topLevelFields[k]; ok {
			rec[key] = v
			continue
		}
		fields[k] = v
	}
	if len(fields) > 0 {
		rec["fields"] = fields
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
