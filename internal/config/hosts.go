// Package config loads the hosts inventory that names the fleet a run
// targets. Three formats are supported, chosen by file extension: the
// classic one-host-per-line CSV, TOML with a [default] table, and YAML with
// a default mapping. Malformed entries are skipped with a warning rather
// than failing the whole run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cwt/ananta/internal/errors"
	"github.com/cwt/ananta/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Host is one inventory entry.
type Host struct {
	Name     string
	Address  string // IP address or hostname
	Port     int
	Username string
	KeyPath  string // "#" when the entry names no key
	Tags     []string
}

// DefaultPort is used when an entry does not name one.
const DefaultPort = 22

// LoadHosts reads the inventory at path and returns the hosts matching the
// tag filter, plus the length of the longest matching name (for prompt
// alignment). tagFilter is a comma-separated list; a host matches when any
// of its tags is listed, and an empty filter matches everything.
func LoadHosts(path, tagFilter string, log logger.Logger) ([]Host, int, error) {
	if log == nil {
		log = logger.Noop()
	}

	var hosts []Host
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		hosts, err = loadTOML(path, log)
	case ".yaml", ".yml":
		hosts, err = loadYAML(path, log)
	default:
		hosts, err = loadCSV(path, log)
	}
	if err != nil {
		return nil, 0, err
	}

	hosts = filterByTags(hosts, tagFilter)

	maxNameLength := 0
	for _, h := range hosts {
		if len(h.Name) > maxNameLength {
			maxNameLength = len(h.Name)
		}
	}
	return hosts, maxNameLength, nil
}

// filterByTags keeps hosts carrying at least one of the requested tags.
func filterByTags(hosts []Host, tagFilter string) []Host {
	tagFilter = strings.TrimSpace(tagFilter)
	if tagFilter == "" {
		return hosts
	}

	wanted := make(map[string]bool)
	for _, tag := range strings.Split(tagFilter, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			wanted[tag] = true
		}
	}

	var matched []Host
	for _, h := range hosts {
		for _, tag := range h.Tags {
			if wanted[strings.TrimSpace(tag)] {
				matched = append(matched, h)
				break
			}
		}
	}
	return matched
}

// loadCSV parses the line-oriented format: name,ip,port,user,key[,tags]
// with colon-separated tags. Lines starting with # are comments. Row
// numbers in warnings are physical 1-indexed lines so they can be found in
// an editor.
func loadCSV(path string, log logger.Logger) ([]Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Hosts file '%s' could not be read", path),
			"Check the path, or create one with: ananta init")
	}

	var hosts []Host
	for i, line := range strings.Split(string(data), "\n") {
		row := i + 1
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 5 {
			log.Warn("Hosts file (CSV): '%s' parse error at row %d (row is incomplete). Skipping!", path, row)
			continue
		}

		port, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			log.Warn("Hosts file (CSV): '%s' parse error at row %d (port must be an integer). Skipping!", path, row)
			continue
		}

		host := Host{
			Name:     strings.TrimSpace(fields[0]),
			Address:  strings.TrimSpace(fields[1]),
			Port:     port,
			Username: strings.TrimSpace(fields[3]),
			KeyPath:  strings.TrimSpace(fields[4]),
		}
		if len(fields) > 5 {
			for _, tag := range strings.Split(fields[5], ":") {
				if tag = strings.TrimSpace(tag); tag != "" {
					host.Tags = append(host.Tags, tag)
				}
			}
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// hostDefaults carries the [default] table values applied to entries that
// omit a field.
type hostDefaults struct {
	Port     int
	Username string
	KeyPath  string
	Tags     []string
}

// loadTOML parses the table-per-host format. The [default] table supplies
// port, username, key_path, and tags for hosts that omit them; default tags
// are merged with (not replaced by) a host's own tags.
func loadTOML(path string, log logger.Logger) ([]Host, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Error decoding TOML file '%s'", path),
			"Check the file for syntax errors.")
	}

	settings := v.AllSettings()
	defaults := hostDefaults{Port: DefaultPort, KeyPath: sshutilUnspecifiedKey}
	if raw, ok := settings["default"]; ok {
		if table, ok := raw.(map[string]interface{}); ok {
			applyDefaults(&defaults, table)
		}
		delete(settings, "default")
	}

	var hosts []Host
	for _, name := range sortedKeys(settings) {
		table, ok := settings[name].(map[string]interface{})
		if !ok {
			log.Warn("Hosts file (TOML): host '%s' is missing 'ip' or 'ip' is not a string. Skipping!", name)
			continue
		}
		host, ok := hostFromTable(name, table, defaults, log)
		if !ok {
			continue
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// sortedKeys keeps host ordering deterministic across runs.
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// yamlEntry mirrors one mapping value in the YAML format.
type yamlEntry struct {
	IP       string   `yaml:"ip"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	KeyPath  string   `yaml:"key_path"`
	Tags     []string `yaml:"tags"`
}

// loadYAML parses the mapping-per-host format, with the same default
// semantics as TOML.
func loadYAML(path string, log logger.Logger) ([]Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Hosts file '%s' could not be read", path),
			"Check the path, or create one with: ananta init")
	}

	var doc map[string]yamlEntry
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Error decoding YAML file '%s'", path),
			"Check the file for syntax errors.")
	}

	defaults := hostDefaults{Port: DefaultPort, KeyPath: sshutilUnspecifiedKey}
	if def, ok := doc["default"]; ok {
		if def.Port != 0 {
			defaults.Port = def.Port
		}
		if def.Username != "" {
			defaults.Username = def.Username
		}
		if def.KeyPath != "" {
			defaults.KeyPath = def.KeyPath
		}
		defaults.Tags = def.Tags
		delete(doc, "default")
	}

	var hosts []Host
	for _, name := range sortedKeys(doc) {
		entry := doc[name]
		if entry.IP == "" {
			log.Warn("Hosts file (YAML): host '%s' is missing 'ip' or 'ip' is not a string. Skipping!", name)
			continue
		}
		username := entry.Username
		if username == "" {
			username = defaults.Username
		}
		if username == "" {
			log.Warn("Hosts file (YAML): host '%s' is missing 'username' or 'username' is not a string. Skipping!", name)
			continue
		}
		port := entry.Port
		if port == 0 {
			port = defaults.Port
		}
		keyPath := entry.KeyPath
		if keyPath == "" {
			keyPath = defaults.KeyPath
		}
		hosts = append(hosts, Host{
			Name:     name,
			Address:  entry.IP,
			Port:     port,
			Username: username,
			KeyPath:  keyPath,
			Tags:     mergeTags(entry.Tags, defaults.Tags),
		})
	}
	return hosts, nil
}

// sshutilUnspecifiedKey mirrors the hosts-file placeholder for "no key".
// Kept as a local constant so this package does not depend on sshutil.
const sshutilUnspecifiedKey = "#"

func applyDefaults(d *hostDefaults, table map[string]interface{}) {
	if port, ok := asInt(table["port"]); ok {
		d.Port = port
	}
	if username, ok := table["username"].(string); ok {
		d.Username = username
	}
	if keyPath, ok := table["key_path"].(string); ok {
		d.KeyPath = keyPath
	}
	d.Tags = asStringSlice(table["tags"])
}

// hostFromTable builds a Host from one TOML table, filling gaps from the
// defaults. A missing ip or username (with no default) skips the host.
func hostFromTable(name string, table map[string]interface{}, defaults hostDefaults, log logger.Logger) (Host, bool) {
	address, ok := table["ip"].(string)
	if !ok || address == "" {
		log.Warn("Hosts file (TOML): host '%s' is missing 'ip' or 'ip' is not a string. Skipping!", name)
		return Host{}, false
	}

	port := defaults.Port
	if raw, present := table["port"]; present {
		p, ok := asInt(raw)
		if !ok {
			log.Warn("Hosts file (TOML): Error parsing port for host '%s'. Skipping!", name)
			return Host{}, false
		}
		port = p
	}

	username := defaults.Username
	if u, ok := table["username"].(string); ok && u != "" {
		username = u
	}
	if username == "" {
		log.Warn("Hosts file (TOML): host '%s' is missing 'username' or 'username' is not a string. Skipping!", name)
		return Host{}, false
	}

	keyPath := defaults.KeyPath
	if k, ok := table["key_path"].(string); ok && k != "" {
		keyPath = k
	}

	return Host{
		Name:     name,
		Address:  address,
		Port:     port,
		Username: username,
		KeyPath:  keyPath,
		Tags:     mergeTags(asStringSlice(table["tags"]), defaults.Tags),
	}, true
}

// mergeTags unions a host's own tags with the default tags.
func mergeTags(own, defaults []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, tag := range append(append([]string(nil), own...), defaults...) {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}
	return merged
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func asStringSlice(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		var out []string
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
