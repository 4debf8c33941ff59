package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variables.
const (
	EnvConfig           = "FHETUTOR_CONFIG"
	EnvLedgerDriver     = "FHETUTOR_LEDGER_DRIVER"
	EnvLedgerPath       = "FHETUTOR_LEDGER_PATH"
	EnvContractAddress  = "FHETUTOR_CONTRACT_ADDRESS"
	EnvChainID          = "FHETUTOR_CHAIN_ID"
	EnvDurationDays     = "FHETUTOR_CHALLENGE_DURATION_DAYS"
	EnvSettleDelay      = "FHETUTOR_SETTLE_DELAY"
	EnvVerifySignatures = "FHETUTOR_VERIFY_SIGNATURES"
	EnvSignerKey        = "FHETUTOR_SIGNER_KEY"
	EnvMaxRetries       = "FHETUTOR_INDEX_MAX_RETRIES"
	EnvRetryInterval    = "FHETUTOR_INDEX_RETRY_INTERVAL"
	EnvSubjects         = "FHETUTOR_SUBJECTS"
	EnvLogLevel         = "FHETUTOR_LOG_LEVEL"
)

// applyEnv overlays every set, non-empty variable onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvLedgerDriver); ok {
		cfg.Ledger.Driver = v
	}
	if v, ok := get(EnvLedgerPath); ok {
		cfg.Ledger.Path = v
	}
	if v, ok := get(EnvContractAddress); ok {
		cfg.Chain.ContractAddress = v
	}
	if v, ok := get(EnvChainID); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return envError(EnvChainID, err)
		}
		cfg.Chain.ChainID = n
	}
	if v, ok := get(EnvDurationDays); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvDurationDays, err)
		}
		cfg.Challenge.DurationDays = n
	}
	if v, ok := get(EnvSettleDelay); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError(EnvSettleDelay, err)
		}
		cfg.Decrypt.SettleDelay = d
	}
	if v, ok := get(EnvVerifySignatures); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(EnvVerifySignatures, err)
		}
		cfg.Decrypt.VerifySignatures = b
	}
	if v, ok := get(EnvSignerKey); ok {
		cfg.Decrypt.SignerKey = v
	}
	if v, ok := get(EnvMaxRetries); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvMaxRetries, err)
		}
		cfg.Index.MaxRetries = n
	}
	if v, ok := get(EnvRetryInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError(EnvRetryInterval, err)
		}
		cfg.Index.RetryInterval = d
	}
	if v, ok := get(EnvSubjects); ok {
		cfg.Subjects = splitList(v)
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Log.Level = strings.ToLower(v)
	}
	return nil
}

func envError(key string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
