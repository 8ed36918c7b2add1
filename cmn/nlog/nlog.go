// Package nlog provides a small buffered, severity-leveled logger used
// across the relay: one writer, timestamped lines, and an explicit Flush
// on shutdown.
package nlog

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

func (s severity) tag() byte {
	switch s {
	case sevWarn:
		return 'W'
	case sevErr:
		return 'E'
	default:
		return 'I'
	}
}

var (
	toStderr     bool
	alsoToStderr bool

	mu  sync.Mutex
	out = bufio.NewWriter(os.Stderr)
)

// InitFlags registers the -logtostderr/-alsologtostderr flags on flset,
// mirroring the teacher's nlog.InitFlags.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", true, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func log(sev severity, depth int, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	var line string
	if format == "" {
		line = fmt.Sprintln(args...)
	} else {
		line = fmt.Sprintf(format+"\n", args...)
	}
	prefix := header(sev, now, depth)
	out.WriteString(prefix)
	out.WriteString(line)
	if sev == sevErr {
		out.Flush()
	}
}

func header(sev severity, now time.Time, depth int) string {
	_, file, line, ok := runtime.Caller(depth + 3)
	if !ok {
		file, line = "???", 0
	} else {
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				file = file[i+1:]
				break
			}
		}
	}
	return fmt.Sprintf("%c %s %s:%s] ", sev.tag(), now.Format("15:04:05.000000"), file, strconv.Itoa(line))
}

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

// Flush forces any buffered log lines to the underlying writer. Called on
// shutdown and, periodically, from a background ticker in cmd/relay.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	out.Flush()
}
