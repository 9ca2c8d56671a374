// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging prints progress and diagnostic lines for the CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	logger   = newLogger(os.Stdout)
	exitFunc = os.Exit
)

// lineFormatter prints only the message, one line per entry, the way a
// user expects CLI progress output to look.
type lineFormatter struct {
	colored bool
}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	msg := strings.TrimRight(entry.Message, "\n")
	switch entry.Level {
	case logrus.WarnLevel:
		msg = f.paint(color.FgYellow, "warning: ") + msg
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		msg = f.paint(color.FgRed, "error: ") + msg
	case logrus.DebugLevel, logrus.TraceLevel:
		msg = f.paint(color.Faint, msg)
	}
	return []byte(msg + "\n"), nil
}

func (f *lineFormatter) paint(attr color.Attribute, s string) string {
	if !f.colored {
		return s
	}
	return color.New(attr).Sprint(s)
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&lineFormatter{colored: isTerminal(w) && !color.NoColor})
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetOutput redirects all log output to w. Color is only used when w is a terminal.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
	logger.SetFormatter(&lineFormatter{colored: isTerminal(w) && !color.NoColor})
}

// SetVerbose toggles debug output.
func SetVerbose(verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	logger.SetLevel(logrus.InfoLevel)
}

// DisableColor turns off colorized output globally.
func DisableColor() {
	color.NoColor = true
	logger.SetFormatter(&lineFormatter{colored: false})
}

// Writer returns the writer log lines currently go to.
func Writer() io.Writer {
	return logger.Out
}

// IsTerminal reports whether log output goes to an interactive terminal.
func IsTerminal() bool {
	return isTerminal(logger.Out)
}

// Info prints a progress line.
func Info(format string, a ...any) {
	logger.Infof(format, a...)
}

// Debug prints a line only in verbose mode.
func Debug(format string, a ...any) {
	logger.Debugf(format, a...)
}

func Warn(format string, a ...any) {
	logger.Warnf(format, a...)
}

func Error(format string, a ...any) {
	logger.Errorf(format, a...)
}

// Fatal prints an error line and terminates the process with exit status 1.
func Fatal(format string, a ...any) {
	logger.Errorf(format, a...)
	exitFunc(1)
}

// SetExitFunc replaces the function Fatal terminates the process with and
// returns the previous one.
func SetExitFunc(f func(code int)) func(code int) {
	prev := exitFunc
	exitFunc = f
	return prev
}
