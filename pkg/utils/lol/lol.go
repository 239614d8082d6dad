// Package lol (log of location) is a leveled logger that prints the code
// location of the log call site, a relative timestamp since process start, and
// colorized level tags. It provides the three families of helpers used
// throughout this repository:
//
//   - log.T/D/I/W/E/F level printers with Ln, F, S (spew), C (closure) and Err
//     methods,
//
//   - chk.T/D/I/W/E/F error checkers that log a non-nil error with its
//     location and return whether it was non-nil, enabling the
//     `if chk.E(err) { return }` guard idiom,
//
//   - errorf.T/D/I/W/E/F error constructors that log at the point of creation
//     and return the formatted error.
//
// Log output goes to stderr by default; UseLogFile tees it into a rotating
// file (10 MiB, 5 backups).
package lol

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"go.uber.org/atomic"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels, lowest to highest verbosity.
const (
	Off = iota
	Fatal
	Error
	Warn
	Info
	Debug
	Trace
)

// LevelNames maps level constants to the names accepted by SetLogLevel.
var LevelNames = []string{"off", "fatal", "error", "warn", "info", "debug", "trace"}

type (
	// Ln prints a list of values separated by spaces.
	Ln func(a ...any)
	// F prints a formatted string, fmt.Printf style.
	F func(format string, a ...any)
	// S spew-dumps the given values for structure inspection.
	S func(a ...any)
	// C runs the closure and prints its result, only paying the cost of
	// rendering when the level is enabled.
	C func(closure func() string)
	// Chk logs an error if it is non-nil and reports whether it was.
	Chk func(e error) bool
	// Err formats an error, logs it at the point of creation and returns it.
	Err func(format string, a ...any) error
)

// LevelPrinter bundles the printer method set for one log level.
type LevelPrinter struct {
	Ln
	F
	S
	C
	Err
}

// Log is the set of level printers.
type Log struct {
	F, E, W, I, D, T LevelPrinter
}

// Check is the set of error-check helpers.
type Check struct {
	F, E, W, I, D, T Chk
}

// Errorf is the set of logging error constructors.
type Errorf struct {
	F, E, W, I, D, T Err
}

// Logger aggregates the three helper families over one writer.
type Logger struct {
	*Log
	*Check
	*Errorf
}

var (
	started = time.Now()

	writerMx sync.Mutex
	writer   io.Writer = os.Stderr

	level      = atomic.NewInt32(Info)
	production = atomic.NewBool(false)

	levelColors = []func(a ...any) string{
		color.New(color.Faint).Sprint,
		color.New(color.FgHiRed, color.Bold).Sprint,
		color.New(color.FgRed).Sprint,
		color.New(color.FgYellow).Sprint,
		color.New(color.FgGreen).Sprint,
		color.New(color.FgBlue).Sprint,
		color.New(color.FgMagenta).Sprint,
	}
	levelTags = []string{"", "FTL", "ERR", "WRN", "INF", "DBG", "TRC"}
)

// Main is the process-wide logger that the log, chk and errorf packages
// re-export.
var Main = New()

// GetLogLevel returns the numeric level for a name, defaulting to Info when
// the name is unknown.
func GetLogLevel(name string) (l int) {
	l = Info
	for i, n := range LevelNames {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return
}

// SetLogLevel switches the global log level by name.
func SetLogLevel(name string) {
	level.Store(int32(GetLogLevel(name)))
}

// SetProduction switches to the compact format: no colour, no code location.
func SetProduction(on bool) { production.Store(on) }

// SetWriter replaces the log writer.
func SetWriter(w io.Writer) {
	writerMx.Lock()
	defer writerMx.Unlock()
	writer = w
}

// UseLogFile tees log output into path with rotation at 10 MiB keeping 5
// backups.
func UseLogFile(path string) {
	SetWriter(
		io.MultiWriter(
			os.Stderr,
			&lumberjack.Logger{Filename: path, MaxSize: 10, MaxBackups: 5},
		),
	)
}

// Tracer prints an entry/exit trace line at Trace level.
func Tracer(a ...any) {
	if level.Load() < Trace {
		return
	}
	prt(Trace, loc(2), strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

func loc(skip int) (s string) {
	if production.Load() {
		return
	}
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return
	}
	// trim to the last two path segments, enough to identify the package
	split := strings.Split(file, "/")
	if len(split) > 2 {
		file = strings.Join(split[len(split)-2:], "/")
	}
	s = fmt.Sprintf("%s:%d", file, line)
	return
}

func prt(lvl int, location, text string) {
	writerMx.Lock()
	defer writerMx.Unlock()
	tag := levelTags[lvl]
	if !production.Load() {
		tag = levelColors[lvl](tag)
	}
	_, _ = fmt.Fprintf(
		writer, "%12s %s %s %s\n",
		time.Since(started).Round(time.Microsecond), tag, text, location,
	)
}

func joinln(a ...any) string {
	return strings.TrimSuffix(fmt.Sprintln(a...), "\n")
}

func printer(lvl int) LevelPrinter {
	return LevelPrinter{
		Ln: func(a ...any) {
			if level.Load() < int32(lvl) {
				return
			}
			prt(lvl, loc(2), joinln(a...))
		},
		F: func(format string, a ...any) {
			if level.Load() < int32(lvl) {
				return
			}
			prt(lvl, loc(2), fmt.Sprintf(format, a...))
		},
		S: func(a ...any) {
			if level.Load() < int32(lvl) {
				return
			}
			prt(lvl, loc(2), strings.TrimSpace(spew.Sdump(a...)))
		},
		C: func(closure func() string) {
			if level.Load() < int32(lvl) {
				return
			}
			prt(lvl, loc(2), strings.TrimSpace(closure()))
		},
		Err: func(format string, a ...any) (err error) {
			err = fmt.Errorf(format, a...)
			if level.Load() < int32(lvl) {
				return
			}
			prt(lvl, loc(2), err.Error())
			return
		},
	}
}

func checker(lvl int) Chk {
	return func(e error) bool {
		if e == nil {
			return false
		}
		if level.Load() >= int32(lvl) {
			prt(lvl, loc(2), e.Error())
		}
		return true
	}
}

func errf(lvl int) Err {
	return func(format string, a ...any) (err error) {
		err = fmt.Errorf(format, a...)
		if level.Load() >= int32(lvl) {
			prt(lvl, loc(2), err.Error())
		}
		return
	}
}

// New constructs a Logger writing through the package writer.
func New() (l *Logger) {
	return &Logger{
		Log: &Log{
			F: printer(Fatal),
			E: printer(Error),
			W: printer(Warn),
			I: printer(Info),
			D: printer(Debug),
			T: printer(Trace),
		},
		Check: &Check{
			F: checker(Fatal),
			E: checker(Error),
			W: checker(Warn),
			I: checker(Info),
			D: checker(Debug),
			T: checker(Trace),
		},
		Errorf: &Errorf{
			F: errf(Fatal),
			E: errf(Error),
			W: errf(Warn),
			I: errf(Info),
			D: errf(Debug),
			T: errf(Trace),
		},
	}
}
