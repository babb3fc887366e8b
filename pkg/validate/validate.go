package validate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/net/publicsuffix"
)

// Rejection reasons
const (
	ReasonInvalidFormat    = "Invalid URL format"
	ReasonInvalidScheme    = "Invalid scheme"
	ReasonBlockedDomain    = "Blocked domain"
	ReasonBlockedExtension = "Blocked file extension"
	ReasonTooLong          = "URL too long"
)

// ErrInvalidMaxLength is returned by Config.Validate for a non-positive MaxLength
var ErrInvalidMaxLength = errors.New("invalid max length: must be positive")

// Config holds validator rules
type Config struct {
	BlockedDomains    []string `yaml:"blocked_domains"    env:"BLOCKED_DOMAINS"    envSeparator:","`
	BlockedExtensions []string `yaml:"blocked_extensions" env:"BLOCKED_EXTENSIONS" envSeparator:","`
	MaxLength         int      `yaml:"max_length"         env:"MAX_LENGTH"`
}

// DefaultConfig returns the default validator rules
func DefaultConfig() Config {
	return Config{
		BlockedDomains: []string{
			"facebook.com", "twitter.com", "instagram.com",
			"youtube.com", "linkedin.com",
		},
		BlockedExtensions: []string{
			".pdf", ".doc", ".docx", ".xls", ".xlsx",
			".zip", ".rar", ".tar", ".gz", ".jpg",
			".jpeg", ".png", ".gif", ".mp4", ".mp3",
		},
		MaxLength: 2000,
	}
}

// Validate checks the rules are usable
func (c Config) Validate() error {
	if c.MaxLength <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidMaxLength, c.MaxLength)
	}
	return nil
}

// Validator gates URLs before they are scheduled
type Validator struct {
	blockedDomains    mapset.Set[string]
	blockedExtensions mapset.Set[string]
	maxLength         int
	logger            *slog.Logger
}

// New creates a validator from config
func New(cfg Config, logger *slog.Logger) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	domains := mapset.NewSet[string]()
	for _, domain := range cfg.BlockedDomains {
		if domain = strings.ToLower(strings.TrimSpace(domain)); domain != "" {
			domains.Add(domain)
		}
	}

	extensions := mapset.NewSet[string]()
	for _, ext := range cfg.BlockedExtensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			extensions.Add(ext)
		}
	}

	return &Validator{
		blockedDomains:    domains,
		blockedExtensions: extensions,
		maxLength:         cfg.MaxLength,
		logger:            logger.With("component", "validate"),
	}, nil
}

// Validate runs the checks in order and reports the first failure
func (v *Validator) Validate(raw string) (result entity.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("url validation error", "url", raw, "panic", r)
			result = entity.ValidationResult{Reason: fmt.Sprintf("Validation error: %v", r)}
		}
	}()

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return reject(ReasonInvalidFormat)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return reject(ReasonInvalidScheme)
	}

	if v.blockedDomains.Contains(RegistrableDomain(u.Hostname())) {
		return reject(ReasonBlockedDomain)
	}

	lower := strings.ToLower(raw)
	blocked := false
	v.blockedExtensions.Each(func(ext string) bool {
		blocked = strings.HasSuffix(lower, ext)
		return blocked
	})
	if blocked {
		return reject(ReasonBlockedExtension)
	}

	if utf8.RuneCountInString(raw) > v.maxLength {
		return reject(ReasonTooLong)
	}

	return entity.ValidationResult{IsValid: true}
}

// RegistrableDomain returns the eTLD+1 of host, or host itself when it has none
// (IP addresses, single-label hosts, bare public suffixes).
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if root, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return root
	}
	return host
}

func reject(reason string) entity.ValidationResult {
	return entity.ValidationResult{IsValid: false, Reason: reason}
}
