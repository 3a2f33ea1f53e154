package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (grid size, scan summary, errors)
	LevelLive    = 2 // Live info (axis moves, measurements)
	LevelVerbose = 3 // Verbose (step arithmetic, accumulator state)
	LevelTrace   = 4 // Trace (serial bytes, GPIO)
)

var (
	mu     sync.Mutex
	level  int
	out    io.Writer = os.Stdout
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (grid, scan summary)
// 2 = live info (moves, measurements)
// 3 = verbose (step arithmetic, accumulators)
// 4 = trace (serial traffic, GPIO)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	if level > LevelOff {
		logger = log.New(out, "[XYScan] ", log.LstdFlags|log.Lmicroseconds)
	} else {
		logger = nil
	}
}

// SetOutput redirects debug output (e.g. to stdout and the web status stream).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

func printf(minLevel int, format string, args ...interface{}) {
	if level >= minLevel && logger != nil {
		logger.Printf(format, args...)
	}
}

// --- Level 1 functions (Info) ---

// Info prints a level 1 message.
func Info(format string, args ...interface{}) {
	printf(LevelInfo, "[INFO] "+format, args...)
}

// Summary prints a framed title (level 1).
func Summary(title string) {
	printf(LevelInfo, "═══════════════════════════════════════")
	printf(LevelInfo, "  %s", title)
	printf(LevelInfo, "═══════════════════════════════════════")
}

// Grid prints the scan grid dimensions (level 1).
func Grid(rows, cols int) {
	printf(LevelInfo, "[INFO] Grid: %d rows x %d columns = %d points", rows, cols, rows*cols)
}

// Value prints a named value (level 1).
func Value(name string, value interface{}) {
	printf(LevelInfo, "[INFO]   %s = %v", name, value)
}

// Error prints an error (level 1+).
func Error(err error) {
	printf(LevelInfo, "[ERROR] %v", err)
}

// --- Level 2 functions (Live) ---

// Live prints a level 2 message.
func Live(format string, args ...interface{}) {
	printf(LevelLive, "[LIVE] "+format, args...)
}

// Move prints an axis movement (level 2).
func Move(axis int, steps int, direction string) {
	printf(LevelLive, "[LIVE] Axis %d: %d steps (%s)", axis, steps, direction)
}

// Measure prints a measurement taken at a grid point (level 2).
func Measure(index, row, col int, value float64) {
	printf(LevelLive, "[LIVE] Point %d (row=%d, col=%d) = %.4f", index, row, col, value)
}

// --- Level 3 functions (Verbose) ---

// Verbose prints a level 3 message.
func Verbose(format string, args ...interface{}) {
	printf(LevelVerbose, "[VERBOSE] "+format, args...)
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	printf(LevelVerbose, "[VERBOSE] %s: %+v", name, v)
}

// Section prints a section separator (level 3).
func Section(name string) {
	printf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	printf(LevelVerbose, "  %s", name)
	printf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	printf(LevelVerbose, "[VERBOSE] Step %d: %s", num, description)
}

// --- Level 4 functions (Trace) ---

// Trace prints a level 4 message.
func Trace(format string, args ...interface{}) {
	printf(LevelTrace, "[TRACE] "+format, args...)
}

// Serial prints raw serial traffic (level 4).
func Serial(direction string, data []byte) {
	printf(LevelTrace, "[SERIAL] %s %q", direction, data)
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	printf(LevelTrace, "[GPIO] %s pin=%d value=%v", operation, pin, value)
}

// Fmt returns a formatted string only if debug is enabled.
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
