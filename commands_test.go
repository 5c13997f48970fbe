package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/trinomial/lattice"
	"github.com/bcdannyboy/trinomial/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--env", t.TempDir()+"/absent.env"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseSteps(t *testing.T) {
	steps, err := parseSteps("400, 25,100,,25")
	require.NoError(t, err)
	assert.Equal(t, []int{25, 100, 400}, steps)

	_, err = parseSteps("10,ten")
	assert.Error(t, err)
}

func TestParseDates(t *testing.T) {
	dates, err := parseDates("2024-03-01, 2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	}, dates)

	dates, err = parseDates("")
	require.NoError(t, err)
	assert.Empty(t, dates)

	_, err = parseDates("03/01/2024")
	assert.Error(t, err)
}

func TestContractFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addContractFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--style", "bermudan", "--kind", "put", "--strike", "95", "--maturity", "0.5",
		"--start", "2024-01-02", "--exercise-dates", "2024-03-01,2024-05-01",
		"--dividend", "1.5", "--dividend-date", "2024-02-15",
	}))

	market, option, err := contractFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, 1.5, market.Dividend)
	assert.Equal(t, time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC), market.DividendDate)

	v, ok := option.(*models.Vanilla)
	require.True(t, ok)
	assert.Equal(t, models.Bermudan, v.Style)
	assert.Equal(t, models.Put, v.Kind)
	assert.Equal(t, 95.0, v.Strike)
	assert.Len(t, v.ExerciseDates, 2)

	digital := &cobra.Command{Use: "digital"}
	addContractFlags(digital)
	require.NoError(t, digital.ParseFlags([]string{"--payout", "10"}))
	_, option, err = contractFromFlags(digital)
	require.NoError(t, err)
	assert.IsType(t, &models.Digital{}, option)

	bad := &cobra.Command{Use: "bad"}
	addContractFlags(bad)
	require.NoError(t, bad.ParseFlags([]string{"--dividend", "1"}))
	_, _, err = contractFromFlags(bad)
	assert.Error(t, err)
}

func TestPriceCommand(t *testing.T) {
	out, err := run(t, "price", "--style", "american", "--kind", "put", "--steps", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "american put K=100")
	assert.Contains(t, out, "price")
	assert.Contains(t, out, "nodes")
	assert.NotContains(t, out, "bsm")
}

func TestBoundedCommand_RejectsDividend(t *testing.T) {
	start := time.Now().UTC().Format(dateLayout)
	divDate := time.Now().UTC().AddDate(0, 3, 0).Format(dateLayout)
	_, err := run(t, "bounded", "--steps", "40", "--start", start, "--dividend", "1", "--dividend-date", divDate)
	assert.ErrorIs(t, err, lattice.ErrUnsupportedConfiguration)
}
