package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/silver2dream/autodev/internal/buildinfo"
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func init() {
	// Disable colors on Windows or when not a terminal
	if runtime.GOOS == "windows" || os.Getenv("NO_COLOR") != "" {
		colorReset = ""
		colorRed = ""
		colorGreen = ""
		colorYellow = ""
		colorCyan = ""
		colorBold = ""
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	// Handle --version and -v at top level
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--version", "-v":
			fmt.Println(buildinfo.Version)
			return 0
		case "--help", "-h":
			usage()
			return 0
		}
	}

	if len(os.Args) < 2 {
		usage()
		return 2
	}

	switch os.Args[1] {
	case "version":
		fmt.Println(buildinfo.Version)
		return 0
	case "run":
		return cmdRun(os.Args[2:])
	case "watch":
		return cmdWatch(os.Args[2:])
	case "help":
		if len(os.Args) >= 3 {
			return cmdHelp(os.Args[2])
		}
		usage()
		return 0
	default:
		errorf("Unknown command: %s\n\n", os.Args[1])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `autodev - autonomous issue worker

Usage:
  autodev <command> [options]

Commands:
  run      Process a batch of issues and review targets
  watch    Keep polling for work until interrupted
  version  Show version
  help     Show help for a command

Examples:
  autodev run
  autodev run --issues 12,34 --skip-triage
  autodev run --iterations 5 --parallel 2
  autodev watch --poll-interval 2m --live

Run 'autodev help <command>' for more information.
`)
}

func cmdHelp(command string) int {
	switch command {
	case "run":
		usageRun()
	case "watch":
		usageWatch()
	case "version":
		fmt.Println("Show the autodev version.")
	default:
		errorf("Unknown command: %s\n", command)
		return 2
	}
	return 0
}

// Helper functions for colored output
func success(format string, args ...interface{}) {
	fmt.Printf("%s✓%s %s", colorGreen, colorReset, fmt.Sprintf(format, args...))
}

func warn(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s⚠%s %s", colorYellow, colorReset, fmt.Sprintf(format, args...))
}

func errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%sError:%s %s", colorRed, colorReset, fmt.Sprintf(format, args...))
}

func bold(s string) string {
	return colorBold + s + colorReset
}

func cyan(s string) string {
	return colorCyan + s + colorReset
}
