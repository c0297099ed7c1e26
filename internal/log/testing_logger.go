/*
SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"os"
	"sync"
	"testing"
)

var (
	// reuse the same logger across all tests
	testingLoggerMtx = sync.Mutex{}
	testingLogger    Logger
)

// TestingLogger returns a Logger which writes to stdout if the tests run
// with the verbose (-v) flag, and discards otherwise.
//
// It must be called inside a test, not in an init func, because the verbose
// flag is only set once testing has started.
func TestingLogger() Logger {
	testingLoggerMtx.Lock()
	defer testingLoggerMtx.Unlock()
	if testingLogger != nil {
		return testingLogger
	}

	if testing.Verbose() {
		testingLogger, _ = NewLogger(os.Stdout, LogFormatPlain, LogLevelDebug)
	} else {
		testingLogger = NewNopLogger()
	}

	return testingLogger
}
