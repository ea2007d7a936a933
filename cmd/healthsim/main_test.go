package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausphi/healthsim/internal/simulation"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"daily"}, {"historical"}, {"enhanced"},
		{"migrate", "up"}, {"migrate", "status"},
		{"cdc", "enable"}, {"cdc", "report"},
		{"import-fhir"}, {"serve"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.NotNil(t, cmd.RunE, path)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("seed"))
	assert.NotNil(t, root.PersistentFlags().Lookup("strict"))
}

func TestCountFlagsBindOptions(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"daily"})
	require.NoError(t, err)

	require.NoError(t, cmd.Flags().Parse([]string{"--members", "3", "--general-claims", "0", "--enhanced"}))
	v, err := cmd.Flags().GetInt("members")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	def := simulation.DefaultDailyOptions()
	hc, err := cmd.Flags().GetInt("hospital-claims")
	require.NoError(t, err)
	assert.Equal(t, def.HospitalClaims, hc)
}

func TestParseDateFlag(t *testing.T) {
	d, err := parseDateFlag("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDateFlag("15/03/2024")
	assert.Error(t, err)

	today, err := parseDateFlag("")
	require.NoError(t, err)
	assert.Equal(t, 0, today.Hour())
}

func TestEnhancedToggleFlags(t *testing.T) {
	cmd, _, err := newRootCmd().Find([]string{"enhanced"})
	require.NoError(t, err)
	for _, name := range []string{"no-fraud", "no-transactions", "no-billing", "no-patterns", "no-actuarial", "force-actuarial"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	daily, _, err := newRootCmd().Find([]string{"daily"})
	require.NoError(t, err)
	for _, name := range []string{"skip-members", "skip-policies", "skip-payments", "skip-assessments"} {
		assert.NotNil(t, daily.Flags().Lookup(name), name)
	}
}
