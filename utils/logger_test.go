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
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel(" warning "))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("verbose"))
}

func TestNewLoggerIsRegisteredOnce(t *testing.T) {
	a := NewLogger("TEST_ONCE")
	b := NewLogger("TEST_ONCE")
	assert.Same(t, a, b)

	assert.True(t, SetLoggerLevel("TEST_ONCE", "error"))
	assert.Equal(t, logrus.ErrorLevel, a.GetLevel())
	assert.False(t, SetLoggerLevel("NOT_REGISTERED", "error"))
}

func TestTextFormatter(t *testing.T) {
	f := &TextFormatter{Name: "DATABASE", Width: 10}
	entry := &logrus.Entry{
		Time:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local),
		Level:   logrus.InfoLevel,
		Message: "connected",
		Data:    logrus.Fields{"type": "sqlite", "host": "local"},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.True(t, strings.HasPrefix(line, "2025-01-02 03:04:05.000  INFO"))
	assert.Contains(t, line, "[  DATABASE]")
	assert.True(t, strings.HasSuffix(line, ": connected host=local type=sqlite\n"))
}

func TestJSONFormatterLiftsRequestFields(t *testing.T) {
	f := &JSONFormatter{Name: "WEB"}
	entry := &logrus.Entry{
		Time:    time.Now(),
		Level:   logrus.WarnLevel,
		Message: "request",
		Data:    logrus.Fields{"method": "GET", "path": "/members", "status": 404, "trace": "abc"},
	}
	out, err := f.Format(entry)
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, "WEB", rec["logger"])
	assert.Equal(t, "warning", rec["level"])
	assert.Equal(t, "GET", rec["method"])
	assert.Equal(t, "/members", rec["path"])
	assert.EqualValues(t, 404, rec["status_code"])
	assert.Equal(t, map[string]interface{}{"trace": "abc"}, rec["fields"])
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("UTILS_TEST_INT", "42")
	t.Setenv("UTILS_TEST_BAD_INT", "x")
	t.Setenv("UTILS_TEST_BOOL", "true")

	assert.Equal(t, 42, EnvDefaultInt("UTILS_TEST_INT", 1))
	assert.Equal(t, 1, EnvDefaultInt("UTILS_TEST_BAD_INT", 1))
	assert.True(t, EnvDefaultBool("UTILS_TEST_BOOL", false))
	assert.Equal(t, "def", EnvDefaultString("UTILS_TEST_MISSING", "def"))
}

func TestConfigureOutputRedirectsLoggers(t *testing.T) {
	var buf bytes.Buffer
	existing := NewLogger("TEST_OUTPUT")
	ConfigureOutput(&buf)
	t.Cleanup(func() { ConfigureOutput(os.Stdout) })

	existing.Warn("redirected")
	NewLogger("TEST_OUTPUT_LATER").Warn("created after")
	assert.Contains(t, buf.String(), "redirected")
	assert.Contains(t, buf.String(), "created after")
}
