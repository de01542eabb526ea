package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	TerraformApply    time.Duration // Timeout for terraform apply
	TerraformDestroy  time.Duration // Timeout for terraform destroy
	SSHConnect        time.Duration // Timeout for establishing the SSH session
	BootstrapStep     time.Duration // Timeout per remote installation step
	ClusterReady      time.Duration // Timeout for all k3d nodes to report ready
	Rollout           time.Duration // Timeout per workload rollout
	RetryMaxAttempts  int           // Maximum SSH dial attempts
	RetryInitialDelay time.Duration // Initial delay between SSH dial attempts
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - K3DOPS_TIMEOUT_TERRAFORM_APPLY (default: 15m)
//   - K3DOPS_TIMEOUT_TERRAFORM_DESTROY (default: 10m)
//   - K3DOPS_TIMEOUT_SSH_CONNECT (default: 5m)
//   - K3DOPS_TIMEOUT_BOOTSTRAP_STEP (default: 10m)
//   - K3DOPS_TIMEOUT_CLUSTER_READY (default: 5m)
//   - K3DOPS_TIMEOUT_ROLLOUT (default: 3m)
//   - K3DOPS_RETRY_MAX_ATTEMPTS (default: 5)
//   - K3DOPS_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		TerraformApply:    parseDuration("K3DOPS_TIMEOUT_TERRAFORM_APPLY", 15*time.Minute),
		TerraformDestroy:  parseDuration("K3DOPS_TIMEOUT_TERRAFORM_DESTROY", 10*time.Minute),
		SSHConnect:        parseDuration("K3DOPS_TIMEOUT_SSH_CONNECT", 5*time.Minute),
		BootstrapStep:     parseDuration("K3DOPS_TIMEOUT_BOOTSTRAP_STEP", 10*time.Minute),
		ClusterReady:      parseDuration("K3DOPS_TIMEOUT_CLUSTER_READY", 5*time.Minute),
		Rollout:           parseDuration("K3DOPS_TIMEOUT_ROLLOUT", 3*time.Minute),
		RetryMaxAttempts:  parseInt("K3DOPS_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("K3DOPS_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
