package task

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// Settings captures engine defaults a host loads from configuration:
// the halt-status set, the callback failure mode, and the retry policy.
type Settings struct {
	HaltOn          []string      `yaml:"halt_on" json:"halt_on"`
	HookFailureMode string        `yaml:"hook_failure_mode" json:"hook_failure_mode"`
	Retry           RetrySettings `yaml:"retry" json:"retry"`
}

// RetrySettings is the declarative form of RetryPolicy. Backoff durations
// use Go duration syntax, e.g. "100ms" or "5s".
type RetrySettings struct {
	MaxRetries    int     `yaml:"max_retries" json:"max_retries"`
	BackoffBase   string  `yaml:"backoff_base" json:"backoff_base"`
	BackoffFactor float64 `yaml:"backoff_factor" json:"backoff_factor"`
	BackoffMax    string  `yaml:"backoff_max" json:"backoff_max"`
}

// DefaultSettings returns the engine defaults: halt on failed, fail-open
// callbacks, no retries.
func DefaultSettings() Settings {
	return Settings{
		HaltOn:          []string{string(StatusFailed)},
		HookFailureMode: string(HookFailOpen),
	}
}

// ParseSettings parses YAML (or JSON, which yaml handles too) into
// validated Settings.
func ParseSettings(data []byte) (Settings, error) {
	cfg := DefaultSettings()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, errors.CategoryBadInput, "cannot parse settings").
			WithTextCode("SETTINGS_PARSE_FAILED")
	}
	return cfg, cfg.Validate()
}

// Validate checks status names, hook mode and retry knobs.
func (s Settings) Validate() error {
	if _, err := s.haltSet(); err != nil {
		return err
	}
	switch HookFailureMode(s.HookFailureMode) {
	case "", HookFailOpen, HookFailClosed:
	default:
		return errors.New("invalid hook failure mode", errors.CategoryBadInput).
			WithTextCode("INVALID_HOOK_MODE").
			WithMetadata(map[string]any{"mode": s.HookFailureMode})
	}
	if s.Retry.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative", errors.CategoryBadInput).
			WithTextCode("INVALID_RETRY_SETTINGS")
	}
	if _, _, err := s.Retry.durations(); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "invalid retry backoff duration").
			WithTextCode("INVALID_RETRY_SETTINGS")
	}
	return nil
}

// Options expands the settings into definition options, applied before any
// per-definition overrides.
func (s Settings) Options() ([]Option, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var opts []Option

	halt, err := s.haltSet()
	if err != nil {
		return nil, err
	}
	if len(halt) > 0 {
		opts = append(opts, WithHaltOn(halt...))
	}
	if s.HookFailureMode != "" {
		opts = append(opts, WithHookFailureMode(HookFailureMode(s.HookFailureMode)))
	}
	if policy := s.Retry.policy(); policy != nil {
		opts = append(opts, WithRetry(policy))
	}

	return opts, nil
}

func (s Settings) haltSet() ([]Status, error) {
	statuses := make([]Status, 0, len(s.HaltOn))
	for _, raw := range s.HaltOn {
		statuses = append(statuses, Status(raw))
	}
	return normalizeHaltSet(statuses)
}

func (s RetrySettings) policy() *RetryPolicy {
	if s.MaxRetries <= 0 {
		return nil
	}
	policy := &RetryPolicy{MaxRetries: s.MaxRetries, Strategy: NoDelayStrategy{}}
	base, max, err := s.durations()
	if err == nil && base > 0 {
		factor := s.BackoffFactor
		if factor <= 0 {
			factor = 2
		}
		policy.Strategy = ExponentialBackoffStrategy{
			Base:   base,
			Factor: factor,
			Max:    max,
		}
	}
	return policy
}

func (s RetrySettings) durations() (time.Duration, time.Duration, error) {
	base, err := parseDuration(s.BackoffBase)
	if err != nil {
		return 0, 0, err
	}
	max, err := parseDuration(s.BackoffMax)
	if err != nil {
		return 0, 0, err
	}
	return base, max, nil
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
