// Copyright 2025 VexFS Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// AsyncLogger buffers writes to an underlying io.Writer (typically a
// lumberjack.Logger rotating a file on the journal device) on a bounded
// channel so a stalled or slow disk never blocks the goroutine issuing the
// filesystem operation that triggered the log line. When the buffer fills,
// new messages are dropped rather than applying backpressure to callers.
type AsyncLogger struct {
	dest   io.Writer
	lines  chan []byte
	done   chan struct{}
	closed sync.Once
	dropMu sync.Mutex
}

// NewAsyncLogger starts the background writer goroutine and returns the
// AsyncLogger. bufferSize is the number of pending writes that may queue
// before new writes are dropped.
func NewAsyncLogger(dest io.Writer, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		dest:  dest,
		lines: make(chan []byte, bufferSize),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for line := range a.lines {
		_, _ = a.dest.Write(line)
	}
}

// Write implements io.Writer. It copies p (the caller retains ownership of
// its slice) and enqueues it, dropping the message and logging a warning to
// stderr if the buffer is full.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case a.lines <- buf:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close stops accepting writes, drains the buffer, and closes the
// underlying writer if it implements io.Closer.
func (a *AsyncLogger) Close() error {
	a.closed.Do(func() {
		close(a.lines)
	})
	<-a.done

	if c, ok := a.dest.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
