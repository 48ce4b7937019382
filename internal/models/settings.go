package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SettingKey identifies a rule toggle. Persisted as "<site>.<ruleId>".
type SettingKey struct {
	Site   string
	RuleID string
}

// Key builds the setting key of a rule
func Key(site, ruleID string) SettingKey {
	return SettingKey{Site: site, RuleID: ruleID}
}

func (k SettingKey) String() string {
	return k.Site + "." + k.RuleID
}

// ParseSettingKey splits a persisted key at its first dot
func ParseSettingKey(s string) (SettingKey, error) {
	site, rule, ok := strings.Cut(s, ".")
	if !ok || site == "" || rule == "" {
		return SettingKey{}, fmt.Errorf("invalid setting key %q", s)
	}
	return SettingKey{Site: site, RuleID: rule}, nil
}

// Settings maps rule toggles to their enabled state
type Settings map[SettingKey]bool

// Enabled reports whether a rule is switched on. Keys that were never
// stored (a rule added after install) follow the rule's default.
func (s Settings) Enabled(site string, rule BlockRule) bool {
	if v, ok := s[Key(site, rule.ID)]; ok {
		return v
	}
	return rule.DefaultEnabled
}

// Keys returns the keys in a stable order
func (s Settings) Keys() []SettingKey {
	keys := make([]SettingKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// MarshalJSON writes the flat "<site>.<ruleId>" map
func (s Settings) MarshalJSON() ([]byte, error) {
	flat := make(map[string]bool, len(s))
	for k, v := range s {
		flat[k.String()] = v
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat map. Keys without a site prefix are dropped.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var flat map[string]bool
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	out := make(Settings, len(flat))
	for raw, v := range flat {
		k, err := ParseSettingKey(raw)
		if err != nil {
			continue
		}
		out[k] = v
	}
	*s = out
	return nil
}
