package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// tree converts cfg into its JSON key tree, the same shape the config file uses.
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// lookup walks to the map holding the last element of path.
func lookup(m map[string]any, path string) (map[string]any, string, error) {
	parts := strings.Split(path, ".")
	parent := m
	for _, key := range parts[:len(parts)-1] {
		child, ok := parent[key].(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("unknown section %q in %s", key, path)
		}
		parent = child
	}
	last := parts[len(parts)-1]
	if _, ok := parent[last]; !ok {
		return nil, "", fmt.Errorf("unknown key: %s", path)
	}
	return parent, last, nil
}

// GetByPath returns the value at a dot path such as "relay.endpoint".
// Sections are returned as maps.
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := tree(cfg)
	if err != nil {
		return nil, err
	}
	parent, key, err := lookup(m, path)
	if err != nil {
		return nil, err
	}
	return parent[key], nil
}

// SetByPath assigns raw to the setting at path, converted to the setting's
// current type. Unknown keys are rejected rather than created.
func SetByPath(cfg *Config, path string, raw string) error {
	m, err := tree(cfg)
	if err != nil {
		return err
	}
	parent, key, err := lookup(m, path)
	if err != nil {
		return err
	}

	switch parent[key].(type) {
	case string:
		// Discord and Telegram IDs look numeric but are stored as strings.
		parent[key] = raw
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: expected true or false, got %q", path, raw)
		}
		parent[key] = b
	case float64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", path, raw)
		}
		parent[key] = n
	default:
		return fmt.Errorf("%s is a section, not a setting", path)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// Sanitize returns a copy of cfg with credentials masked. cfg is untouched.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Discord.Token = mask(cfg.Discord.Token)
	out.Alerts.Telegram.Token = mask(cfg.Alerts.Telegram.Token)
	// For Slack the webhook URL is the credential.
	out.Alerts.Slack.WebhookURL = mask(cfg.Alerts.Slack.WebhookURL)
	return &out
}

// mask keeps the first and last four characters of s.
func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

// ListPaths flattens cfg into dot path → value.
func ListPaths(cfg *Config) map[string]any {
	m, err := tree(cfg)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	flatten("", m, out)
	return out
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if section, ok := v.(map[string]any); ok {
			flatten(path, section, out)
			continue
		}
		out[path] = v
	}
}
