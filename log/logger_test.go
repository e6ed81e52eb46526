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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func stripTime(s string) string {
	return s[strings.IndexByte(s, ' ')+1:]
}

func TestLevelFromString(t *testing.T) {

	testCases := []struct {
		input    string
		expected Level
	}{
		{"off", Off},
		{"silent", Off},
		{"fatal", Fatal},
		{" Error ", Error},
		{"warn", Warn},
		{"INFO", Info},
		{"debug", Debug},
		{"trace", Trace},
		{"verbose", NotSet},
	}

	for _, c := range testCases {
		require.Equal(t, c.expected, LevelFromString(c.input), "Wrong level for %q", c.input)
	}
}

func TestLogger(t *testing.T) {

	t.Run("default with info level", func(t *testing.T) {

		var buf bytes.Buffer
		SetDefault(New(&LoggerOptions{
			Output: &buf,
			Level:  Info,
		}))

		L().Info("this is a test")

		require.Equal(t, "[INFO]  this is a test\n", stripTime(buf.String()))
	})

	t.Run("default with error level", func(t *testing.T) {

		var buf bytes.Buffer
		SetDefault(New(&LoggerOptions{
			Output: &buf,
			Level:  Error,
		}))

		L().Info("this is a test")

		require.Equal(t, "", buf.String())

		L().Error("this is a test")

		require.Equal(t, "[ERROR] this is a test\n", stripTime(buf.String()))
	})

	t.Run("named from default", func(t *testing.T) {

		var buf bytes.Buffer
		SetDefault(New(&LoggerOptions{
			Name:   "default",
			Output: &buf,
			Level:  Info,
		}))

		L().Named("test").Info("this is a test")

		require.Equal(t, "[INFO]  default.test: this is a test\n", stripTime(buf.String()))
	})

	t.Run("package helpers use the default logger", func(t *testing.T) {

		var buf bytes.Buffer
		SetDefault(New(&LoggerOptions{
			Output: &buf,
			Level:  Warn,
		}))

		Infof("hidden %d", 1)
		Warnf("shown %d", 2)

		require.Equal(t, "[WARN]  shown 2\n", stripTime(buf.String()))
		require.Equal(t, "error", Error.String())
		require.Equal(t, "fatal", Fatal.String())
	})

	t.Run("formatted messages", func(t *testing.T) {

		var buf bytes.Buffer
		logger := New(&LoggerOptions{
			Name:   "chain",
			Output: &buf,
			Level:  Debug,
		})

		logger.Debugf("iteration %d of %d", 10, 100)
		logger.Tracef("hidden %d", 1)

		require.Equal(t, "[DEBUG] chain: iteration 10 of 100\n", stripTime(buf.String()))
	})

	t.Run("uses default output if none is given", func(t *testing.T) {

		var buf bytes.Buffer
		prev := DefaultOutput
		DefaultOutput = &buf
		defer func() { DefaultOutput = prev }()

		logger := New(&LoggerOptions{
			Name:  "test",
			Level: Info,
		})

		logger.Info("this is a test")

		require.Equal(t, "[INFO]  test: this is a test\n", stripTime(buf.String()))
	})

	t.Run("off level is silent", func(t *testing.T) {

		var buf bytes.Buffer
		logger := New(&LoggerOptions{
			Output: &buf,
			Level:  Off,
		})

		logger.Error("nobody listens")
		require.Equal(t, "", buf.String())
		require.False(t, logger.IsEnabled(Error))
	})

	t.Run("with level", func(t *testing.T) {

		var buf bytes.Buffer
		logger := New(&LoggerOptions{
			Name:   "op",
			Output: &buf,
			Level:  Error,
		})

		logger.Info("hidden")
		logger.WithLevel(Info).Info("shown")

		require.Equal(t, "[INFO]  op: shown\n", stripTime(buf.String()))
		require.True(t, logger.IsEnabled(Fatal))
		require.False(t, logger.IsEnabled(Warn))
	})

	t.Run("fatal exits", func(t *testing.T) {

		var buf bytes.Buffer
		code := 0
		prev := exit
		exit = func(c int) { code = c }
		defer func() { exit = prev }()

		logger := New(&LoggerOptions{
			Output: &buf,
			Level:  Info,
		})
		logger.Fatalf("broken %s", "invariant")

		require.Equal(t, 1, code)
		require.Equal(t, "[ERROR] broken invariant\n", stripTime(buf.String()))
	})

	t.Run("panic", func(t *testing.T) {

		var buf bytes.Buffer
		logger := New(&LoggerOptions{
			Output: &buf,
			Level:  Info,
		})

		require.PanicsWithValue(t, "boom 1", func() { logger.Panicf("boom %d", 1) })
	})

	t.Run("std logger infers levels", func(t *testing.T) {

		var buf bytes.Buffer
		logger := New(&LoggerOptions{
			Output: &buf,
			Level:  Info,
		})

		std := logger.StdLogger(&StdLoggerOptions{InferLevels: true})
		std.Print("[DEBUG] hidden")
		std.Print("[WARN] shown")

		require.NotContains(t, buf.String(), "hidden")
		require.Contains(t, buf.String(), "[WARN]  shown")
	})
}
