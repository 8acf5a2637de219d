package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwt/ananta/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hostsCSV = `# This is a comment line
host-1,10.0.0.1,22,user1,/path/to/key1,web:db
host-2,10.0.0.2,2202,user2,#,web
host-3,10.0.0.3,22,user3,/specific/key3,app
#host-4,10.0.0.4,22,user4,#,disabled
host-5,10.0.0.5,22,user5,#
host-6,10.0.0.6,bad-port-format,user6,#,oops
`

const hostsTOML = `
[default]
port = 2222
username = "default_user"
key_path = "/default/key.pem"
tags = ["common"]

[host-toml-1]
ip = "192.168.1.1"

[host-toml-2]
ip = "192.168.1.2"
port = 22
username = "toml_user2"
tags = ["web", "prod"]

[host-toml-3]
ip = "192.168.1.3"
key_path = "#"
tags = ["db", "prod"]
`

func writeHosts(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHostsCSV(t *testing.T) {
	path := writeHosts(t, "hosts.csv", hostsCSV)
	log := logger.NewBufferLogger()

	hosts, maxLen, err := LoadHosts(path, "", log)
	require.NoError(t, err)

	// host-4 is commented out, host-6 has a bad port.
	require.Len(t, hosts, 4)
	assert.Equal(t, 6, maxLen)
	assert.Equal(t, Host{
		Name: "host-1", Address: "10.0.0.1", Port: 22,
		Username: "user1", KeyPath: "/path/to/key1", Tags: []string{"web", "db"},
	}, hosts[0])
	assert.Equal(t, Host{
		Name: "host-2", Address: "10.0.0.2", Port: 2202,
		Username: "user2", KeyPath: "#", Tags: []string{"web"},
	}, hosts[1])
	assert.Equal(t, "host-5", hosts[3].Name)

	assert.True(t, log.HasLevel("warn"))
	assert.Contains(t, log.String(), "parse error at row 7 (port must be an integer). Skipping!")
}

func TestLoadHostsCSVIncompleteRow(t *testing.T) {
	path := writeHosts(t, "hosts.csv", "host-1,10.0.0.1,22\nhost-2,10.0.0.2,22,user2,#\n")
	log := logger.NewBufferLogger()

	hosts, _, err := LoadHosts(path, "", log)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "host-2", hosts[0].Name)
	assert.Contains(t, log.String(), "parse error at row 1 (row is incomplete). Skipping!")
}

func TestLoadHostsCSVTagFilter(t *testing.T) {
	path := writeHosts(t, "hosts.csv", hostsCSV)

	hosts, maxLen, err := LoadHosts(path, "web", nil)
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "host-1", hosts[0].Name)
	assert.Equal(t, "host-2", hosts[1].Name)
	assert.Equal(t, 6, maxLen)

	hosts, _, err = LoadHosts(path, "db,app", nil)
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "host-1", hosts[0].Name)
	assert.Equal(t, "host-3", hosts[1].Name)

	hosts, maxLen, err = LoadHosts(path, "nomatch", nil)
	require.NoError(t, err)
	assert.Empty(t, hosts)
	assert.Zero(t, maxLen)
}

func TestLoadHostsCSVMissingFile(t *testing.T) {
	_, _, err := LoadHosts(filepath.Join(t.TempDir(), "absent.csv"), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be read")
}

func TestLoadHostsTOMLDefaults(t *testing.T) {
	path := writeHosts(t, "hosts.toml", hostsTOML)

	hosts, maxLen, err := LoadHosts(path, "", nil)
	require.NoError(t, err)
	require.Len(t, hosts, 3)
	assert.Equal(t, 11, maxLen)

	byName := make(map[string]Host)
	for _, h := range hosts {
		byName[h.Name] = h
	}

	// Gaps are filled from [default]; default tags are merged in.
	assert.Equal(t, Host{
		Name: "host-toml-1", Address: "192.168.1.1", Port: 2222,
		Username: "default_user", KeyPath: "/default/key.pem", Tags: []string{"common"},
	}, byName["host-toml-1"])
	assert.Equal(t, Host{
		Name: "host-toml-2", Address: "192.168.1.2", Port: 22,
		Username: "toml_user2", KeyPath: "/default/key.pem",
		Tags: []string{"web", "prod", "common"},
	}, byName["host-toml-2"])
	assert.Equal(t, "#", byName["host-toml-3"].KeyPath)
	assert.Equal(t, 2222, byName["host-toml-3"].Port)
}

func TestLoadHostsTOMLTagFilter(t *testing.T) {
	path := writeHosts(t, "hosts.toml", hostsTOML)

	// Default tags count for every host.
	hosts, _, err := LoadHosts(path, "common", nil)
	require.NoError(t, err)
	assert.Len(t, hosts, 3)

	hosts, maxLen, err := LoadHosts(path, "prod", nil)
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, 11, maxLen)
}

func TestLoadHostsTOMLSkipsBrokenEntries(t *testing.T) {
	content := `
[host-missing-ip]
port = 22
username = "user"

[host-no-user]
ip = "1.2.3.4"

[host-bad-port]
ip = "10.20.0.1"
port = "not-an-integer"
username = "user"

[host-good]
ip = "10.20.0.2"
username = "user"
`
	path := writeHosts(t, "hosts.toml", content)
	log := logger.NewBufferLogger()

	hosts, _, err := LoadHosts(path, "", log)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "host-good", hosts[0].Name)
	assert.Equal(t, DefaultPort, hosts[0].Port)

	logged := log.String()
	assert.Contains(t, logged, "missing 'ip' or 'ip' is not a string. Skipping!")
	assert.Contains(t, logged, "missing 'username' or 'username' is not a string. Skipping!")
	assert.Contains(t, logged, "Error parsing port for host 'host-bad-port'. Skipping!")
}

func TestLoadHostsTOMLMalformed(t *testing.T) {
	path := writeHosts(t, "hosts.toml", "this is not valid toml")

	_, _, err := LoadHosts(path, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error decoding TOML file")
}

func TestLoadHostsYAML(t *testing.T) {
	content := `
default:
  port: 2222
  username: default_user
  tags: [common]

web-1:
  ip: 192.168.1.1

db-1:
  ip: 192.168.1.2
  port: 22
  username: dba
  key_path: /keys/db
  tags: [db]
`
	path := writeHosts(t, "hosts.yaml", content)

	hosts, maxLen, err := LoadHosts(path, "", nil)
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, 5, maxLen)

	// Sorted by name: db-1 then web-1.
	assert.Equal(t, Host{
		Name: "db-1", Address: "192.168.1.2", Port: 22,
		Username: "dba", KeyPath: "/keys/db", Tags: []string{"db", "common"},
	}, hosts[0])
	assert.Equal(t, Host{
		Name: "web-1", Address: "192.168.1.1", Port: 2222,
		Username: "default_user", KeyPath: "#", Tags: []string{"common"},
	}, hosts[1])
}
