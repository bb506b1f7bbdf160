package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Commands understood by the command line tool
var Commands = []string{"compare", "classify", "debug", "pattern", "register", "search", "serve", "list"}

func isCommand(s string) bool {
	for _, c := range Commands {
		if s == c {
			return true
		}
	}
	return false
}

// ParseArguments converts os.Args into a map of flags and values
func ParseArguments() map[string]string {
	return ParseArgs(os.Args[1:])
}

// ParseArgs converts arguments into a map of flags and values. The first
// known command word is stored under "command".
func ParseArgs(argv []string) map[string]string {
	args := make(map[string]string)

	commandIndex := -1
	for i, arg := range argv {
		if isCommand(arg) {
			args["command"] = arg
			commandIndex = i
			break
		}
	}

	for i := 0; i < len(argv); i++ {
		if i == commandIndex {
			continue
		}

		arg := argv[i]
		if !strings.HasPrefix(arg, "--") {
			continue
		}

		// --key=value
		if strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			args[strings.TrimPrefix(parts[0], "--")] = parts[1]
			continue
		}

		// --key value, or a boolean --key
		flagName := strings.TrimPrefix(arg, "--")
		if i+1 >= len(argv) || strings.HasPrefix(argv[i+1], "--") || i+1 == commandIndex {
			args[flagName] = "true"
		} else {
			args[flagName] = argv[i+1]
			i++
		}
	}

	return args
}

// GetDefaultDatabasePath returns the default path for the database file
func GetDefaultDatabasePath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "references.db"
	}

	return filepath.Join(filepath.Dir(exePath), "references.db")
}

// PrintUsage outputs the command-line usage instructions
func PrintUsage(w io.Writer) {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  %s compare --image=CAPTURE (--reference=PATH | --name=NAME [--group=G]) [--json]\n", name)
	fmt.Fprintf(w, "  %s classify --image=PATH [--json]\n", name)
	fmt.Fprintf(w, "  %s debug --image=PATH --out=DIR\n", name)
	fmt.Fprintf(w, "  %s pattern --out=PATH [--width=N] [--height=N] [--cell=N] [--seed=N] [--noisy]\n", name)
	fmt.Fprintf(w, "  %s register --folder=PATH [--group=G] [--force]\n", name)
	fmt.Fprintf(w, "  %s list [--group=G] [--json]\n", name)
	fmt.Fprintf(w, "  %s search --image=CAPTURE [--group=G] [--threshold=SCORE] [--hashdistance=BITS]\n", name)
	fmt.Fprintf(w, "  %s serve [--addr=:8080] [--timeout=30s]\n", name)
	fmt.Fprintf(w, "\nCommon parameters:\n")
	fmt.Fprintf(w, "  --database    : Path to reference catalogue (default: %s)\n", GetDefaultDatabasePath())
	fmt.Fprintf(w, "  --tuning      : TOML file overriding heuristic constants\n")
	fmt.Fprintf(w, "  --debug       : Enable debug mode (logs detailed information)\n")
	fmt.Fprintf(w, "  --logfile     : Specify custom log file path (default: lcdmatch.log)\n")
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  %s register --folder=/path/to/patterns --group=panel-a\n", name)
	fmt.Fprintf(w, "  %s compare --image=capture.jpg --name=checker --json\n", name)
	fmt.Fprintf(w, "  %s search --image=capture.jpg --threshold=70\n", name)
}

// ParseThreshold parses a score threshold in [0,100]
func ParseThreshold(thresholdStr string) (float64, error) {
	parsedThreshold, err := strconv.ParseFloat(thresholdStr, 64)
	if err != nil || parsedThreshold < 0 || parsedThreshold > 100 {
		return 70, fmt.Errorf("invalid threshold value '%s', using default (70)", thresholdStr)
	}
	return parsedThreshold, nil
}

// IntArg returns a positive integer flag or def when it is absent.
func IntArg(args map[string]string, key string, def int) (int, error) {
	return IntArgMin(args, key, def, 1)
}

// IntArgMin returns an integer flag of at least floor, or def when it is
// absent or invalid.
func IntArgMin(args map[string]string, key string, def, floor int) (int, error) {
	s, ok := args[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < floor {
		return def, fmt.Errorf("invalid value for --%s: '%s'", key, s)
	}
	return v, nil
}

// DurationArg returns a duration flag or def when it is absent.
func DurationArg(args map[string]string, key string, def time.Duration) (time.Duration, error) {
	s, ok := args[key]
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("invalid value for --%s: '%s'", key, s)
	}
	return d, nil
}

// BoolArg reports whether a boolean flag was given and not set to false.
func BoolArg(args map[string]string, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}
