package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tokendrop/crypto"
	"tokendrop/native/distribution"
)

// EmissionInterval is the on-disk form of one mining emission step.
type EmissionInterval struct {
	RateWei         string `toml:"RateWei"`
	DurationSeconds uint64 `toml:"DurationSeconds"`
}

// Config carries the daemon configuration. Curve parameters, caps and the
// verifier identity are fixed at deployment and never mutated at runtime.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`

	ChainID               uint64 `toml:"ChainID"`
	LaunchTime            int64  `toml:"LaunchTime"`
	SignerAddress         string `toml:"SignerAddress"`
	VaultAddress          string `toml:"VaultAddress"`
	OwnerAddress          string `toml:"OwnerAddress"`
	MigrationGraceSeconds int64  `toml:"MigrationGraceSeconds"`

	MiningCapWei           string             `toml:"MiningCapWei"`
	Emission               []EmissionInterval `toml:"Emission"`
	ReferralCapWei         string             `toml:"ReferralCapWei"`
	VestingDurationSeconds uint64             `toml:"VestingDurationSeconds"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = "127.0.0.1:9464"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./tokendrop-data"
	}
	if cfg.MigrationGraceSeconds == 0 {
		cfg.MigrationGraceSeconds = distribution.DefaultMigrationGrace
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ChainID:                1,
		LaunchTime:             time.Now().Add(24 * time.Hour).Unix(),
		MiningCapWei:           "150000000000000000000000000",
		ReferralCapWei:         "30000000000000000000000000",
		VestingDurationSeconds: 730 * 24 * 60 * 60,
		Emission: []EmissionInterval{
			{RateWei: "8000000000000000000", DurationSeconds: 10000000},
			{RateWei: "4000000000000000000", DurationSeconds: 10000000},
			{RateWei: "2000000000000000000", DurationSeconds: 10000000},
			{RateWei: "1000000000000000000", DurationSeconds: 10000000},
		},
	}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for deployment correctness: addresses
// decode, curves are well formed, the emission schedule sums exactly to the
// mining cap, and the launch time sits in the future.
func (c *Config) Validate(now time.Time) error {
	if c == nil {
		return errors.New("config: nil config")
	}
	if _, err := c.decodeAddress(c.SignerAddress, "SignerAddress"); err != nil {
		return err
	}
	if _, err := c.decodeAddress(c.VaultAddress, "VaultAddress"); err != nil {
		return err
	}
	if _, err := c.decodeAddress(c.OwnerAddress, "OwnerAddress"); err != nil {
		return err
	}
	params, err := c.Params()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if params.Emission.Total().Cmp(params.MiningCap) != 0 {
		return fmt.Errorf("config: emission schedule total %s does not equal mining cap %s",
			params.Emission.Total(), params.MiningCap)
	}
	if c.LaunchTime <= now.Unix() {
		return errors.New("config: launch time must be in the future")
	}
	return nil
}

// Params converts the on-disk representation into engine parameters.
func (c *Config) Params() (distribution.Params, error) {
	miningCap, err := parseWei(c.MiningCapWei, "MiningCapWei")
	if err != nil {
		return distribution.Params{}, err
	}
	referralCap, err := parseWei(c.ReferralCapWei, "ReferralCapWei")
	if err != nil {
		return distribution.Params{}, err
	}
	schedule := distribution.EmissionSchedule{
		Intervals: make([]distribution.EmissionInterval, 0, len(c.Emission)),
	}
	for i, interval := range c.Emission {
		rate, err := parseWei(interval.RateWei, fmt.Sprintf("Emission[%d].RateWei", i))
		if err != nil {
			return distribution.Params{}, err
		}
		schedule.Intervals = append(schedule.Intervals, distribution.EmissionInterval{
			Rate:     rate,
			Duration: interval.DurationSeconds,
		})
	}
	return distribution.Params{
		LaunchTime: c.LaunchTime,
		Emission:   schedule,
		MiningCap:  miningCap,
		Vesting: distribution.VestingTerms{
			Cap:      referralCap,
			Duration: c.VestingDurationSeconds,
		},
		MigrationGrace: c.MigrationGraceSeconds,
	}, nil
}

// SignerBytes returns the configured verifier address as raw bytes.
func (c *Config) SignerBytes() ([20]byte, error) {
	return c.decodeAddress(c.SignerAddress, "SignerAddress")
}

// VaultBytes returns the configured vault address as raw bytes.
func (c *Config) VaultBytes() ([20]byte, error) {
	return c.decodeAddress(c.VaultAddress, "VaultAddress")
}

// OwnerBytes returns the configured owner address as raw bytes.
func (c *Config) OwnerBytes() ([20]byte, error) {
	return c.decodeAddress(c.OwnerAddress, "OwnerAddress")
}

func (c *Config) decodeAddress(value, field string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("config: %s required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("config: %s: %w", field, err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func parseWei(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("config: %s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: %s: invalid amount %q", field, value)
	}
	return amount, nil
}
