// Package rules holds the hand-maintained reconciliation data: the participant
// roster, the out-of-band allow-lists, the claim override rules and the
// operator wallets allowed to see the dashboard.
package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mint-desk/pkg/models"
)

// Config is loaded once at startup and never mutated afterwards.
type Config struct {
	CountryCode  string               `yaml:"countryCode"`
	Roster       []models.Participant `yaml:"roster"`
	Paid         []string             `yaml:"paid"`
	KYC          []string             `yaml:"kyc"`
	Overrides    []Override           `yaml:"overrides"`
	AdminWallets []string             `yaml:"adminWallets"`

	paid      map[string]struct{}
	kyc       map[string]struct{}
	overrides map[string]Override
	admins    map[string]struct{}
}

// Override ties a participant email to the record that proves their claim
// when neither email nor name lines up. Every non-empty field must hold.
type Override struct {
	Email                   string `yaml:"email"`
	RecordTokenID           string `yaml:"recordTokenId,omitempty"`
	RecordEmail             string `yaml:"recordEmail,omitempty"`
	PersonName              string `yaml:"personName,omitempty"`
	RecordFirstNameContains string `yaml:"recordFirstNameContains,omitempty"`
}

const DefaultCountryCode = "+39"

// Load reads and indexes a YAML rules file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML rules and builds the lookup indexes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := cfg.index(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New builds an indexed Config from in-memory values.
func New(cfg Config) (*Config, error) {
	if err := cfg.index(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) index() error {
	if c.CountryCode == "" {
		c.CountryCode = DefaultCountryCode
	}
	if !strings.HasPrefix(c.CountryCode, "+") {
		return fmt.Errorf("countryCode %q must start with +", c.CountryCode)
	}

	seen := make(map[string]struct{}, len(c.Roster))
	for i, p := range c.Roster {
		key := Key(p.Email)
		if key == "" {
			return fmt.Errorf("roster[%d]: email is required", i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("roster[%d]: duplicate email %s", i, key)
		}
		seen[key] = struct{}{}
	}

	c.paid = toSet(c.Paid)
	c.kyc = toSet(c.KYC)
	c.admins = toSet(c.AdminWallets)

	c.overrides = make(map[string]Override, len(c.Overrides))
	for i, o := range c.Overrides {
		key := Key(o.Email)
		if key == "" {
			return fmt.Errorf("overrides[%d]: email is required", i)
		}
		if o.RecordTokenID == "" && o.RecordEmail == "" && o.PersonName == "" && o.RecordFirstNameContains == "" {
			return fmt.Errorf("overrides[%d]: at least one condition is required", i)
		}
		if _, dup := c.overrides[key]; dup {
			return fmt.Errorf("overrides[%d]: duplicate email %s", i, key)
		}
		c.overrides[key] = o
	}
	return nil
}

// Key normalises an email or wallet address for set membership.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		if k := Key(v); k != "" {
			m[k] = struct{}{}
		}
	}
	return m
}

func (c *Config) IsPaid(email string) bool {
	_, ok := c.paid[Key(email)]
	return ok
}

func (c *Config) IsKYC(email string) bool {
	_, ok := c.kyc[Key(email)]
	return ok
}

// IsAdmin reports whether a connected wallet may see the dashboard.
func (c *Config) IsAdmin(wallet string) bool {
	_, ok := c.admins[Key(wallet)]
	return ok
}

// OverrideFor returns the override rule registered for an email, if any.
func (c *Config) OverrideFor(email string) (Override, bool) {
	o, ok := c.overrides[Key(email)]
	return o, ok
}

// Matches evaluates the rule against a person and a candidate record.
func (o Override) Matches(person models.Participant, rec models.SubmissionRecord) bool {
	if o.RecordTokenID != "" && rec.TokenID != o.RecordTokenID {
		return false
	}
	if o.RecordEmail != "" && Key(rec.Email) != Key(o.RecordEmail) {
		return false
	}
	if o.PersonName != "" && person.Name != o.PersonName {
		return false
	}
	if o.RecordFirstNameContains != "" &&
		!strings.Contains(strings.ToLower(rec.FirstName), strings.ToLower(o.RecordFirstNameContains)) {
		return false
	}
	return true
}
