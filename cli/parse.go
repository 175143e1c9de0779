// Package cli turns a job's argv into etl.Options.
//
// The grammar is shared by every job:
//
//	<job> [legislatura] [--limite|-l N] [--pc|--emulator|--mock] [--dry-run]
//	      [--verbose|-v] [--id X] [--inicio AAAA-MM-DD --fim AAAA-MM-DD]
//	      [--ajuda|-h] [job flags...]
//
// Flags the parser does not know are kept in Options.Extra so jobs can add
// their own without touching this package.
package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/etl"
	"github.com/teranos/legisync/internal/util"
)

// ErrHelp is returned when --ajuda or -h was given
var ErrHelp = errors.New("help requested")

const dateLayout = "2006-01-02"

var numericFlag = regexp.MustCompile(`^--(\d+)$`)

// destinationFlags maps selector flags to destinations
var destinationFlags = map[string]etl.Destination{
	"--pc":       etl.DestinationLocalFiles,
	"--emulator": etl.DestinationEmulatedStore,
	"--mock":     etl.DestinationMock,
}

// Parse parses argv (without the program and job names). Warnings are
// non-fatal observations, such as more than one destination selector.
func Parse(argv []string) (etl.Options, []string, error) {
	for _, arg := range argv {
		if arg == "--ajuda" || arg == "-h" || arg == "--help" {
			return etl.Options{}, nil, ErrHelp
		}
	}

	opts := etl.Options{Destination: etl.DestinationStore}
	var (
		warnings  []string
		destFlag  string
		start     *time.Time
		end       *time.Time
		extra     = map[string]string{}
		setPeriod = func(raw string) error {
			n, err := parsePeriod(raw)
			if err != nil {
				return err
			}
			if opts.PeriodNumber != nil && *opts.PeriodNumber != n {
				warnings = append(warnings, fmt.Sprintf("legislature given twice (%d, %d), using %d", *opts.PeriodNumber, n, n))
			}
			opts.PeriodNumber = util.Ptr(n)
			return nil
		}
	)

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, inline, hasInline := strings.Cut(arg, "=")

		// value returns the flag's argument, inline or the next token
		value := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			if i+1 >= len(argv) {
				return "", errors.NewValidationError("%s needs a value", name)
			}
			i++
			return argv[i], nil
		}

		switch {
		case i == 0 && isNumber(arg):
			if err := setPeriod(arg); err != nil {
				return etl.Options{}, nil, err
			}

		case numericFlag.MatchString(arg):
			if err := setPeriod(numericFlag.FindStringSubmatch(arg)[1]); err != nil {
				return etl.Options{}, nil, err
			}

		case name == "--limite" || name == "-l":
			raw, err := value()
			if err != nil {
				return etl.Options{}, nil, err
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return etl.Options{}, nil, errors.NewValidationError("%s expects a positive number, got %q", name, raw)
			}
			opts.ItemLimit = util.Ptr(n)

		case destinationFlags[arg] != "":
			if destFlag != "" && destFlag != arg {
				warnings = append(warnings, fmt.Sprintf("%s and %s both select a destination, using %s", destFlag, arg, arg))
			}
			destFlag = arg
			opts.Destination = destinationFlags[arg]

		case arg == "--dry-run":
			opts.DryRun = true

		case arg == "--verbose" || arg == "-v":
			opts.Verbose = true

		case name == "--id":
			raw, err := value()
			if err != nil {
				return etl.Options{}, nil, err
			}
			if strings.TrimSpace(raw) == "" {
				return etl.Options{}, nil, errors.NewValidationError("--id cannot be empty")
			}
			opts.EntityID = raw

		case name == "--inicio" || name == "--fim":
			raw, err := value()
			if err != nil {
				return etl.Options{}, nil, err
			}
			d, err := time.Parse(dateLayout, raw)
			if err != nil {
				return etl.Options{}, nil, errors.NewValidationError("%s expects a date as AAAA-MM-DD, got %q", name, raw)
			}
			if name == "--inicio" {
				start = &d
			} else {
				end = &d
			}

		case strings.HasPrefix(arg, "--") && len(name) > 2:
			key := strings.TrimPrefix(name, "--")
			switch {
			case hasInline:
				extra[key] = inline
			case i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "-"):
				i++
				extra[key] = argv[i]
				if opts.PeriodNumber == nil && isNumber(argv[i]) {
					warnings = append(warnings, fmt.Sprintf("--%s took %s as its value; put the legislature first or write --%s=true", key, argv[i], key))
				}
			default:
				extra[key] = "true"
			}

		case strings.HasPrefix(arg, "-") && len(arg) > 1 && !isNumber(arg):
			extra[strings.TrimPrefix(name, "-")] = "true"

		default:
			return etl.Options{}, nil, errors.NewValidationError("unexpected argument %q", arg)
		}
	}

	switch {
	case start != nil && end != nil:
		if end.Before(*start) {
			return etl.Options{}, nil, errors.NewValidationError("--fim (%s) is before --inicio (%s)", end.Format(dateLayout), start.Format(dateLayout))
		}
		opts.DateRange = &etl.DateRange{Start: *start, End: *end}
	case start != nil || end != nil:
		return etl.Options{}, nil, errors.NewValidationError("--inicio and --fim must be given together")
	}

	if len(extra) > 0 {
		opts.Extra = extra
	}
	return opts, warnings, nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parsePeriod(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError("legislature must be a number, got %q", raw)
	}
	if n < etl.MinPeriod || n > etl.MaxPeriod {
		return 0, errors.NewValidationError("legislature must be between %d and %d, got %d", etl.MinPeriod, etl.MaxPeriod, n)
	}
	return n, nil
}
