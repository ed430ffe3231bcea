// Package config loads and validates the relayer's typed configuration,
// in the teacher's two-layer style: a YAML file for structural settings
// (silver-realtime-transformer/go/config.go's Config/LoadConfig/Validate
// shape) overlaid with environment variables for secrets and deployment
// overrides (stellar-live-source/go/server/config.go's getEnvOrDefault
// family).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/stellar/go/strkey"
	"gopkg.in/yaml.v3"

	"github.com/withobsrvr/zkvote-relayer/internal/relayererr"
)

// Config is the full recognized option set from spec.md §6.
type Config struct {
	RPCURL               string        `yaml:"rpc_url"`
	NetworkPassphrase    string        `yaml:"network_passphrase"`
	RelayerSecretKey     string        `yaml:"relayer_secret_key"`
	VotingContractID     string        `yaml:"voting_contract_id"`
	TreeContractID       string        `yaml:"tree_contract_id"`
	CommentsContractID   string        `yaml:"comments_contract_id"`
	RegistryContractID   string        `yaml:"registry_contract_id"`
	MembershipContractID string        `yaml:"membership_contract_id"`
	RPCTimeout           time.Duration `yaml:"-"`
	IndexerPollInterval  time.Duration `yaml:"-"`
	OrgSyncInterval      time.Duration `yaml:"-"`
	MembershipSyncInterval time.Duration `yaml:"-"`
	DataDir              string        `yaml:"data_dir"`

	RPCTimeoutMS            int64 `yaml:"rpc_timeout_ms"`
	IndexerPollIntervalMS   int64 `yaml:"indexer_poll_interval_ms"`
	OrgSyncIntervalMS       int64 `yaml:"org_sync_interval_ms"`
	MembershipSyncIntervalMS int64 `yaml:"membership_sync_interval_ms"`
}

const (
	defaultRPCTimeoutMS             = 10000
	defaultIndexerPollIntervalMS    = 5000
	defaultOrgSyncIntervalMS        = 30000
	defaultMembershipSyncIntervalMS = 600000
)

// Load reads a YAML file at path, then applies environment variable
// overrides for the relayer secret key and RPC URL (the two values that
// should not be checked into a config file) and for rpc_timeout_ms
// (RPC_TIMEOUT_MS, ignored if not an integer), then derives duration
// fields and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, relayererr.Config("failed to read config file: " + err.Error())
	}

	c := &Config{
		RPCTimeoutMS:             defaultRPCTimeoutMS,
		IndexerPollIntervalMS:    defaultIndexerPollIntervalMS,
		OrgSyncIntervalMS:        defaultOrgSyncIntervalMS,
		MembershipSyncIntervalMS: defaultMembershipSyncIntervalMS,
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, relayererr.Config("failed to parse config: " + err.Error())
	}

	if v := os.Getenv("RPC_URL"); v != "" {
		c.RPCURL = v
	}
	if v := os.Getenv("RELAYER_SECRET_KEY"); v != "" {
		c.RelayerSecretKey = v
	}
	if v := os.Getenv("RPC_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.RPCTimeoutMS = n
		}
	}

	c.deriveDurations()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) deriveDurations() {
	c.RPCTimeout = time.Duration(c.RPCTimeoutMS) * time.Millisecond
	c.IndexerPollInterval = time.Duration(c.IndexerPollIntervalMS) * time.Millisecond
	c.OrgSyncInterval = time.Duration(c.OrgSyncIntervalMS) * time.Millisecond
	c.MembershipSyncInterval = time.Duration(c.MembershipSyncIntervalMS) * time.Millisecond
}

// Validate checks every required option and the 56-character base32
// "C..." shape of contract IDs (spec.md §6). It is meant to run once, at
// startup; a failure here is fatal (relayererr.CodeConfig).
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return relayererr.Config("rpc_url is required")
	}
	if c.NetworkPassphrase == "" {
		return relayererr.Config("network_passphrase is required")
	}
	if c.RelayerSecretKey == "" {
		return relayererr.Config("relayer_secret_key is required")
	}
	if !strkey.IsValidEd25519SecretSeed(c.RelayerSecretKey) {
		return relayererr.Config("relayer_secret_key is not a valid secret seed")
	}
	if err := validateContractID("voting_contract_id", c.VotingContractID, true); err != nil {
		return err
	}
	if err := validateContractID("tree_contract_id", c.TreeContractID, true); err != nil {
		return err
	}
	if err := validateContractID("comments_contract_id", c.CommentsContractID, true); err != nil {
		return err
	}
	if err := validateContractID("registry_contract_id", c.RegistryContractID, false); err != nil {
		return err
	}
	if err := validateContractID("membership_contract_id", c.MembershipContractID, false); err != nil {
		return err
	}
	if c.RPCTimeoutMS <= 0 {
		return relayererr.Config("rpc_timeout_ms must be positive")
	}
	if c.IndexerPollIntervalMS <= 0 {
		return relayererr.Config("indexer_poll_interval_ms must be positive")
	}
	if c.OrgSyncIntervalMS <= 0 {
		return relayererr.Config("org_sync_interval_ms must be positive")
	}
	if c.MembershipSyncIntervalMS <= 0 {
		return relayererr.Config("membership_sync_interval_ms must be positive")
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	return nil
}

func validateContractID(field, id string, required bool) error {
	if id == "" {
		if required {
			return relayererr.Config(fmt.Sprintf("%s is required", field))
		}
		return nil
	}
	if len(id) != 56 || id[0] != 'C' {
		return relayererr.Config(fmt.Sprintf("%s must be a 56-character base32 string starting with 'C'", field))
	}
	if !strkey.IsValidContractAddress(id) {
		return relayererr.Config(fmt.Sprintf("%s is not a valid contract address", field))
	}
	return nil
}

// DBPath returns the path to the embedded relayer.db file inside DataDir.
func (c *Config) DBPath() string {
	return c.DataDir + "/relayer.db"
}

// WatchedContracts returns the contract IDs the Indexer's poll loop
// should query get_events for.
func (c *Config) WatchedContracts() []string {
	ids := []string{c.VotingContractID, c.TreeContractID, c.CommentsContractID, c.RegistryContractID, c.MembershipContractID}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
