package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
)

func TestParsePolicy_EmptyKeepsDefaults(t *testing.T) {
	p, err := factory.NewPolicyFactory().ParsePolicy(`{}`)
	require.NoError(t, err)

	def := rewards.DefaultPolicy()
	assert.Equal(t, def.Version, p.Version)
	assert.Equal(t, def.TrialReward, p.TrialReward)
	assert.Equal(t, def.PayDay, p.PayDay)
	assert.True(t, def.WithholdingRate.Equal(p.WithholdingRate))
	require.Len(t, p.Tiers.Tiers, 4)
}

func TestParsePolicyYAML_OverridesAndSortsTiers(t *testing.T) {
	// GIVEN: A YAML policy with unsorted tiers, a fee and Tokyo time
	// WHEN: Parsing
	// THEN: Tiers are highest first and the overrides apply

	data := []byte(`
version: "2025-04"
averaging: active_months
tiers:
  - {name: low, threshold: "10", rate: "0.52"}
  - {name: high, threshold: "40", rate: "0.75"}
default_rate: "0.45"
trial_reward: 5000
transfer_fee: 250
pay_day: 20
timezone: Asia/Tokyo
`)
	p, err := factory.NewPolicyFactory().ParsePolicyYAML(data)
	require.NoError(t, err)

	assert.Equal(t, "2025-04", p.Version)
	assert.Equal(t, rewards.AverageOverActiveMonths, p.Averaging)
	require.Len(t, p.Tiers.Tiers, 2)
	assert.Equal(t, "high", p.Tiers.Tiers[0].Name)
	assert.True(t, decimal.RequireFromString("0.45").Equal(p.Tiers.Default))
	assert.Equal(t, generic.Money(5000), p.TrialReward)
	assert.Equal(t, generic.Money(250), p.TransferFee)
	assert.Equal(t, 20, p.PayDay)
	require.NotNil(t, p.Location)
	assert.Equal(t, "Asia/Tokyo", p.Location.String())

	assert.True(t, decimal.RequireFromString("0.75").Equal(p.Tiers.Rate(decimal.NewFromInt(41))))
	assert.True(t, decimal.RequireFromString("0.45").Equal(p.Tiers.Rate(decimal.NewFromInt(9))))
}

func TestParsePolicy_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"bad decimal":      `{"withholding_rate": "ten percent"}`,
		"bad averaging":    `{"averaging": "median"}`,
		"non monotone":     `{"tiers": [{"threshold": "30", "rate": "0.50"}, {"threshold": "10", "rate": "0.60"}]}`,
		"bad pay day":      `{"pay_day": 40}`,
		"unknown timezone": `{"timezone": "Mars/Olympus"}`,
		"negative trial":   `{"trial_reward": -1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := factory.NewPolicyFactory().ParsePolicy(body)
			require.Error(t, err)
			assert.ErrorIs(t, err, generic.ErrInvalidPolicy)
		})
	}
}

func TestToJSON_RoundTrips(t *testing.T) {
	f := factory.NewPolicyFactory()
	p, err := f.FromJSON(factory.ToJSON(rewards.DefaultPolicy()))
	require.NoError(t, err)

	def := rewards.DefaultPolicy()
	assert.Equal(t, def.Version, p.Version)
	assert.Equal(t, def.LabelLayout, p.LabelLayout)
	require.Len(t, p.Tiers.Tiers, len(def.Tiers.Tiers))
	for i := range def.Tiers.Tiers {
		assert.True(t, def.Tiers.Tiers[i].Rate.Equal(p.Tiers.Tiers[i].Rate))
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"file-v2","trial_reward":4800}`), 0o600))

	f := factory.NewPolicyFactory()
	p, err := f.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-v2", p.Version)
	assert.Equal(t, generic.Money(4800), p.TrialReward)

	def, err := f.LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, rewards.DefaultPolicy().Version, def.Version)

	_, err = f.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
