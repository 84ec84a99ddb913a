/*
Package factory provides JSON/YAML to Go reward policy conversion.

PURPOSE:
  Converts policy definitions into rewards.Policy. Operators can change the
  tier table, trial reward, tax rates or pay day without a code change:
  the file is named by the `rewards.policy_file` config key and loaded at
  startup.

SCHEMA (YAML shown; JSON uses the same keys):
  version: "2025-04"
  rank_window_months: 3
  averaging: full_window          # or active_months
  tiers:
    - {name: platinum, threshold: "30", rate: "0.70"}
    - {name: gold,     threshold: "25", rate: "0.65"}
    - {name: silver,   threshold: "20", rate: "0.60"}
    - {name: bronze,   threshold: "15", rate: "0.55"}
  default_rate: "0.50"
  trial_reward: 4500
  two_person_surcharge: 1000
  consumption_tax_rate: "0.10"
  withholding_rate: "0.1021"
  system_fee_rate: "0"
  transfer_fee: 0
  pay_day: 25
  label_layout: "2006年1月分"
  timezone: Asia/Tokyo

KEY FEATURES:
  - Omitted fields keep DefaultPolicy() values
  - Rates are decimal strings, never floats
  - Tiers are sorted highest threshold first
  - The result is validated before it is returned

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.ParsePolicyYAML(data)

SEE ALSO:
  - rewards/policies.go: Policy type and defaults
  - config/config.go: where the policy file is configured
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve on minimal images

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// PolicyJSON is the serialized form of a reward policy. Pointer fields
// distinguish "omitted" from zero.
type PolicyJSON struct {
	Version            string     `json:"version" yaml:"version"`
	RankWindowMonths   *int       `json:"rank_window_months,omitempty" yaml:"rank_window_months,omitempty"`
	Averaging          string     `json:"averaging,omitempty" yaml:"averaging,omitempty"`
	Tiers              []TierJSON `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	DefaultRate        string     `json:"default_rate,omitempty" yaml:"default_rate,omitempty"`
	TrialReward        *int64     `json:"trial_reward,omitempty" yaml:"trial_reward,omitempty"`
	TwoPersonSurcharge *int64     `json:"two_person_surcharge,omitempty" yaml:"two_person_surcharge,omitempty"`
	ConsumptionTaxRate string     `json:"consumption_tax_rate,omitempty" yaml:"consumption_tax_rate,omitempty"`
	WithholdingRate    string     `json:"withholding_rate,omitempty" yaml:"withholding_rate,omitempty"`
	SystemFeeRate      string     `json:"system_fee_rate,omitempty" yaml:"system_fee_rate,omitempty"`
	TransferFee        *int64     `json:"transfer_fee,omitempty" yaml:"transfer_fee,omitempty"`
	PayDay             *int       `json:"pay_day,omitempty" yaml:"pay_day,omitempty"`
	LabelLayout        string     `json:"label_layout,omitempty" yaml:"label_layout,omitempty"`
	TrialTitle         string     `json:"trial_title,omitempty" yaml:"trial_title,omitempty"`
	RegularTitle       string     `json:"regular_title,omitempty" yaml:"regular_title,omitempty"`
	Timezone           string     `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// TierJSON is one commission tier.
type TierJSON struct {
	Name      string `json:"name" yaml:"name"`
	Threshold string `json:"threshold" yaml:"threshold"`
	Rate      string `json:"rate" yaml:"rate"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts serialized policies to rewards.Policy.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (rewards.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return rewards.Policy{}, fmt.Errorf("%w: failed to parse policy JSON: %v", generic.ErrInvalidPolicy, err)
	}
	return f.FromJSON(pj)
}

// ParsePolicyYAML parses a YAML policy.
func (f *PolicyFactory) ParsePolicyYAML(data []byte) (rewards.Policy, error) {
	var pj PolicyJSON
	if err := yaml.Unmarshal(data, &pj); err != nil {
		return rewards.Policy{}, fmt.Errorf("%w: failed to parse policy YAML: %v", generic.ErrInvalidPolicy, err)
	}
	return f.FromJSON(pj)
}

// LoadFile reads a policy file, choosing the format from its extension.
// An empty path returns DefaultPolicy().
func (f *PolicyFactory) LoadFile(path string) (rewards.Policy, error) {
	if path == "" {
		return rewards.DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return rewards.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return f.ParsePolicy(string(data))
	default:
		return f.ParsePolicyYAML(data)
	}
}

// FromJSON overlays pj on DefaultPolicy() and validates the result.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (rewards.Policy, error) {
	p := rewards.DefaultPolicy()
	var errs []string

	dec := func(field, s string, dst *decimal.Decimal) {
		if s == "" {
			return
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not a decimal", field, s))
			return
		}
		*dst = d
	}

	if pj.Version != "" {
		p.Version = pj.Version
	}
	if pj.RankWindowMonths != nil {
		p.RankWindowMonths = *pj.RankWindowMonths
	}
	if pj.Averaging != "" {
		p.Averaging = parseAveraging(pj.Averaging)
	}

	if len(pj.Tiers) > 0 {
		tiers := make([]rewards.Tier, 0, len(pj.Tiers))
		for i, tj := range pj.Tiers {
			var tier rewards.Tier
			tier.Name = tj.Name
			dec(fmt.Sprintf("tiers[%d].threshold", i), tj.Threshold, &tier.Threshold)
			dec(fmt.Sprintf("tiers[%d].rate", i), tj.Rate, &tier.Rate)
			tiers = append(tiers, tier)
		}
		p.Tiers = rewards.TierTable{Tiers: tiers, Default: p.Tiers.Default}.Sorted()
	}
	dec("default_rate", pj.DefaultRate, &p.Tiers.Default)

	if pj.TrialReward != nil {
		p.TrialReward = generic.Money(*pj.TrialReward)
	}
	if pj.TwoPersonSurcharge != nil {
		p.TwoPersonSurcharge = generic.Money(*pj.TwoPersonSurcharge)
	}
	dec("consumption_tax_rate", pj.ConsumptionTaxRate, &p.ConsumptionTaxRate)
	dec("withholding_rate", pj.WithholdingRate, &p.WithholdingRate)
	dec("system_fee_rate", pj.SystemFeeRate, &p.SystemFeeRate)
	if pj.TransferFee != nil {
		p.TransferFee = generic.Money(*pj.TransferFee)
	}
	if pj.PayDay != nil {
		p.PayDay = *pj.PayDay
	}
	if pj.LabelLayout != "" {
		p.LabelLayout = pj.LabelLayout
	}
	if pj.TrialTitle != "" {
		p.TrialTitle = pj.TrialTitle
	}
	if pj.RegularTitle != "" {
		p.RegularTitle = pj.RegularTitle
	}
	if pj.Timezone != "" {
		loc, err := time.LoadLocation(pj.Timezone)
		if err != nil {
			errs = append(errs, fmt.Sprintf("timezone: %v", err))
		} else {
			p.Location = loc
		}
	}

	if len(errs) > 0 {
		return rewards.Policy{}, fmt.Errorf("%w: %s", generic.ErrInvalidPolicy, strings.Join(errs, "; "))
	}
	if err := p.Validate(); err != nil {
		return rewards.Policy{}, err
	}
	return p, nil
}

// ToJSON is the inverse of FromJSON, used by the policy endpoint.
func ToJSON(p rewards.Policy) PolicyJSON {
	window := p.RankWindowMonths
	trial := int64(p.TrialReward)
	surcharge := int64(p.TwoPersonSurcharge)
	transfer := int64(p.TransferFee)
	payDay := p.PayDay

	pj := PolicyJSON{
		Version:            p.Version,
		RankWindowMonths:   &window,
		Averaging:          string(p.Averaging),
		DefaultRate:        p.Tiers.Default.String(),
		TrialReward:        &trial,
		TwoPersonSurcharge: &surcharge,
		ConsumptionTaxRate: p.ConsumptionTaxRate.String(),
		WithholdingRate:    p.WithholdingRate.String(),
		SystemFeeRate:      p.SystemFeeRate.String(),
		TransferFee:        &transfer,
		PayDay:             &payDay,
		LabelLayout:        p.LabelLayout,
		TrialTitle:         p.TrialTitle,
		RegularTitle:       p.RegularTitle,
	}
	if p.Location != nil {
		pj.Timezone = p.Location.String()
	}
	for _, t := range p.Tiers.Tiers {
		pj.Tiers = append(pj.Tiers, TierJSON{Name: t.Name, Threshold: t.Threshold.String(), Rate: t.Rate.String()})
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseAveraging(s string) rewards.AveragingPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full_window", "full", "fixed":
		return rewards.AverageOverFullWindow
	case "active_months", "active":
		return rewards.AverageOverActiveMonths
	default:
		// Unknown values are rejected by Validate.
		return rewards.AveragingPolicy(s)
	}
}
