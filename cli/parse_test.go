package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/etl"
)

func TestParse_Canonical(t *testing.T) {
	opts, warnings, err := Parse([]string{"57", "--limite", "5", "--mock"})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.NotNil(t, opts.PeriodNumber)
	assert.Equal(t, 57, *opts.PeriodNumber)
	require.NotNil(t, opts.ItemLimit)
	assert.Equal(t, 5, *opts.ItemLimit)
	assert.Equal(t, etl.DestinationMock, opts.Destination)
	assert.False(t, opts.DryRun)
	assert.Nil(t, opts.Extra)
}

func TestParse_OutOfRangePeriod(t *testing.T) {
	for _, argv := range [][]string{{"--200"}, {"0"}, {"101", "--mock"}, {"--0"}} {
		opts, warnings, err := Parse(argv)
		require.Error(t, err, argv)
		assert.True(t, errors.IsValidation(err), argv)
		assert.Equal(t, etl.Options{}, opts, "no partial options")
		assert.Nil(t, warnings)
	}
}

func TestParse_Defaults(t *testing.T) {
	opts, _, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, etl.DestinationStore, opts.Destination)
	assert.Nil(t, opts.PeriodNumber)
	assert.Nil(t, opts.ItemLimit)
}

func TestParse_PeriodFlag(t *testing.T) {
	opts, _, err := Parse([]string{"--pc", "--56"})
	require.NoError(t, err)
	assert.Equal(t, 56, *opts.PeriodNumber)
	assert.Equal(t, etl.DestinationLocalFiles, opts.Destination)
}

func TestParse_LimitForms(t *testing.T) {
	for _, argv := range [][]string{{"-l", "9"}, {"--limite=9"}, {"-l=9"}} {
		opts, _, err := Parse(argv)
		require.NoError(t, err, argv)
		assert.Equal(t, 9, *opts.ItemLimit, argv)
	}

	for _, argv := range [][]string{{"--limite"}, {"--limite", "x"}, {"--limite", "0"}, {"-l", "-3"}} {
		_, _, err := Parse(argv)
		assert.True(t, errors.IsValidation(err), argv)
	}
}

func TestParse_LastDestinationWins(t *testing.T) {
	opts, warnings, err := Parse([]string{"--pc", "--emulator", "--mock"})
	require.NoError(t, err)
	assert.Equal(t, etl.DestinationMock, opts.Destination)
	assert.Len(t, warnings, 2)
	assert.Contains(t, warnings[1], "using --mock")
}

func TestParse_HelpShortCircuits(t *testing.T) {
	for _, argv := range [][]string{{"--ajuda"}, {"-h"}, {"--200", "-h"}, {"57", "--limite", "x", "--ajuda"}} {
		_, _, err := Parse(argv)
		assert.ErrorIs(t, err, ErrHelp, argv)
	}
}

func TestParse_UnknownFlagsArePreserved(t *testing.T) {
	opts, _, err := Parse([]string{"57", "--membros", "--tipo=PL", "--ano", "2024", "-x", "--json"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"membros": "true",
		"tipo":    "PL",
		"ano":     "2024",
		"x":       "true",
		"json":    "true",
	}, opts.Extra)
}

func TestParse_UnknownFlagTakesNumber(t *testing.T) {
	opts, warnings, err := Parse([]string{"--membros", "57"})
	require.NoError(t, err)
	assert.Nil(t, opts.PeriodNumber)
	assert.Equal(t, "57", opts.Extra["membros"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "--membros took 57")

	_, warnings, err = Parse([]string{"57", "--ano", "2024"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestParse_CommonFlags(t *testing.T) {
	opts, _, err := Parse([]string{"--dry-run", "-v", "--id", "204554", "--inicio", "2024-02-01", "--fim=2024-06-30"})
	require.NoError(t, err)
	assert.True(t, opts.DryRun)
	assert.True(t, opts.Verbose)
	assert.Equal(t, "204554", opts.EntityID)
	require.NotNil(t, opts.DateRange)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), opts.DateRange.Start)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), opts.DateRange.End)
}

func TestParse_DateErrors(t *testing.T) {
	for _, argv := range [][]string{
		{"--inicio", "2024-02-01"},
		{"--inicio", "01/02/2024", "--fim", "2024-03-01"},
		{"--inicio", "2024-03-01", "--fim", "2024-02-01"},
	} {
		_, _, err := Parse(argv)
		assert.True(t, errors.IsValidation(err), argv)
	}
}

func TestParse_UnexpectedArgument(t *testing.T) {
	_, _, err := Parse([]string{"--mock", "57"})
	assert.True(t, errors.IsValidation(err))
}

func TestUsage(t *testing.T) {
	out := Usage("orgaos", "Syncs committees.", []FlagDoc{{Name: "membros", Help: "also fetch members"}})
	assert.Contains(t, out, "legisync orgaos [legislatura]")
	assert.Contains(t, out, "--limite, -l N")
	assert.Contains(t, out, "--membros")
	assert.Contains(t, out, "orgaos flags:")
}
