package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	ScopeGroup = "group"
	ScopeOrder = "order"
)

// ScopePrefix maps an identifier prefix to the local record kind it addresses.
type ScopePrefix struct {
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Scope  string `mapstructure:"scope" yaml:"scope"`
}

// ScopeTable is the versioned prefix alphabet shared with the gateway-side
// custom_id configuration.
type ScopeTable struct {
	Version      int           `mapstructure:"version" yaml:"version"`
	DefaultScope string        `mapstructure:"default_scope" yaml:"default_scope"`
	Prefixes     []ScopePrefix `mapstructure:"prefixes" yaml:"prefixes"`
}

func DefaultScopeTable() ScopeTable {
	return ScopeTable{
		Version:      1,
		DefaultScope: ScopeOrder,
		Prefixes: []ScopePrefix{
			{Prefix: "OG", Scope: ScopeGroup},
			{Prefix: "G", Scope: ScopeOrder},
			{Prefix: "P", Scope: ScopeGroup},
			{Prefix: "C", Scope: ScopeOrder},
		},
	}
}

type ScopeTableHolder struct {
	current atomic.Value // holds ScopeTable
}

// NewStaticScopeTableHolder serves a fixed table without watching any file.
func NewStaticScopeTableHolder(table ScopeTable) (*ScopeTableHolder, error) {
	table = normalizeScopeTable(table)
	if err := ValidateScopeTable(table); err != nil {
		return nil, err
	}
	holder := &ScopeTableHolder{}
	holder.current.Store(table)
	return holder, nil
}

func NewScopeTableHolder(log *zap.Logger) (*ScopeTableHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.scopes")

	v := viper.New()

	v.SetConfigName("scopes")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/paybridge/config")
	v.AddConfigPath("/etc/paybridge")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultScopeTable()
	v.SetDefault("scopes.version", defaults.Version)
	v.SetDefault("scopes.default_scope", defaults.DefaultScope)
	v.SetDefault("scopes.prefixes", defaults.Prefixes)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var table ScopeTable
	if err := v.UnmarshalKey("scopes", &table); err != nil {
		return nil, err
	}
	table = normalizeScopeTable(table)
	if err := ValidateScopeTable(table); err != nil {
		return nil, err
	}

	holder := &ScopeTableHolder{}
	holder.current.Store(table)

	if !fileLoaded {
		log.Info("scope table file not found, using defaults", zap.Int("version", table.Version))
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ScopeTable
		if err := v.UnmarshalKey("scopes", &updated); err != nil {
			log.Warn("scope table reload failed", zap.Error(err))
			return
		}
		updated = normalizeScopeTable(updated)
		if err := ValidateScopeTable(updated); err != nil {
			log.Warn("invalid scope table ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("scope table reloaded", zap.String("file", e.Name), zap.Int("version", updated.Version))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *ScopeTableHolder) Get() ScopeTable {
	return h.current.Load().(ScopeTable)
}

// Resolve maps an external reference such as "G-42", "OG7" or "42" to a
// scope and numeric id. The longest matching prefix wins, the hyphen is
// optional and the remainder must be all digits. A bare number falls back to
// DefaultScope.
func (t ScopeTable) Resolve(reference string) (string, int64, bool) {
	ref := strings.ToUpper(strings.TrimSpace(reference))
	if ref == "" {
		return "", 0, false
	}

	if id, ok := parseNumericID(ref); ok {
		if t.DefaultScope == "" {
			return "", 0, false
		}
		return t.DefaultScope, id, true
	}

	var best *ScopePrefix
	for i := range t.Prefixes {
		p := &t.Prefixes[i]
		if !strings.HasPrefix(ref, p.Prefix) {
			continue
		}
		if best == nil || len(p.Prefix) > len(best.Prefix) {
			best = p
		}
	}
	if best == nil {
		return "", 0, false
	}

	rest := strings.TrimPrefix(ref[len(best.Prefix):], "-")
	id, ok := parseNumericID(rest)
	if !ok {
		return "", 0, false
	}
	return best.Scope, id, true
}

// Format renders the canonical reference for a scope using its first prefix.
func (t ScopeTable) Format(scope string, id int64) (string, bool) {
	for _, p := range t.Prefixes {
		if p.Scope == scope {
			return fmt.Sprintf("%s-%d", p.Prefix, id), true
		}
	}
	return "", false
}

func parseNumericID(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func normalizeScopeTable(table ScopeTable) ScopeTable {
	table.DefaultScope = strings.ToLower(strings.TrimSpace(table.DefaultScope))
	prefixes := make([]ScopePrefix, 0, len(table.Prefixes))
	for _, p := range table.Prefixes {
		prefixes = append(prefixes, ScopePrefix{
			Prefix: strings.ToUpper(strings.TrimSpace(p.Prefix)),
			Scope:  strings.ToLower(strings.TrimSpace(p.Scope)),
		})
	}
	table.Prefixes = prefixes
	return table
}

func ValidateScopeTable(table ScopeTable) error {
	if len(table.Prefixes) == 0 {
		return errors.New("scopes.prefixes cannot be empty")
	}
	if table.DefaultScope != "" && !validScope(table.DefaultScope) {
		return fmt.Errorf("scopes.default_scope %q is not a known scope", table.DefaultScope)
	}
	seen := make(map[string]struct{}, len(table.Prefixes))
	for _, p := range table.Prefixes {
		if p.Prefix == "" {
			return errors.New("scopes.prefixes entries need a prefix")
		}
		if strings.ContainsAny(p.Prefix, "0123456789-") {
			return fmt.Errorf("scope prefix %q must not contain digits or hyphens", p.Prefix)
		}
		if !validScope(p.Scope) {
			return fmt.Errorf("scope prefix %q maps to unknown scope %q", p.Prefix, p.Scope)
		}
		if _, dup := seen[p.Prefix]; dup {
			return fmt.Errorf("scope prefix %q is declared twice", p.Prefix)
		}
		seen[p.Prefix] = struct{}{}
	}
	return nil
}

func validScope(scope string) bool {
	return scope == ScopeGroup || scope == ScopeOrder
}
