package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwt/ananta/internal/config"
)

func sampleEntries() []hostEntry {
	return []hostEntry{
		{Name: "web-1", IP: "192.168.1.10", Port: 22, Username: "deploy", KeyPath: "#", Tags: []string{"web", "production"}},
		{Name: "db-1", IP: "192.168.1.20", Port: 2222, Username: "admin", KeyPath: "~/.ssh/id_ed25519"},
	}
}

func TestMarshalCSVHostsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.csv")
	require.NoError(t, os.WriteFile(path, []byte(marshalCSVHosts(sampleEntries())), 0644))

	hosts, maxLen, err := config.LoadHosts(path, "", nil)
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	assert.Equal(t, "web-1", hosts[0].Name)
	assert.Equal(t, "192.168.1.10", hosts[0].Address)
	assert.Equal(t, 22, hosts[0].Port)
	assert.Equal(t, "deploy", hosts[0].Username)
	assert.Equal(t, "#", hosts[0].KeyPath)
	assert.Equal(t, []string{"web", "production"}, hosts[0].Tags)

	assert.Equal(t, "db-1", hosts[1].Name)
	assert.Equal(t, 2222, hosts[1].Port)
	assert.Equal(t, "~/.ssh/id_ed25519", hosts[1].KeyPath)
	assert.Equal(t, 5, maxLen)
}

func TestMarshalYAMLHostsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.yaml")
	data, err := marshalYAMLHosts(sampleEntries())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	hosts, _, err := config.LoadHosts(path, "", nil)
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	// The loader sorts YAML hosts by name.
	assert.Equal(t, "db-1", hosts[0].Name)
	assert.Equal(t, "~/.ssh/id_ed25519", hosts[0].KeyPath)
	assert.Equal(t, "web-1", hosts[1].Name)
	assert.Equal(t, "#", hosts[1].KeyPath, "an empty key marshals back to the placeholder")
	assert.Equal(t, []string{"web", "production"}, hosts[1].Tags)
}

func TestMarshalCSVHostsWithoutTags(t *testing.T) {
	out := marshalCSVHosts([]hostEntry{
		{Name: "web-1", IP: "10.0.0.1", Port: 22, Username: "deploy", KeyPath: "#"},
	})
	assert.Contains(t, out, "web-1,10.0.0.1,22,deploy,#\n")
}

func TestInitCommandHasForceFlag(t *testing.T) {
	flag := initCmd.Flags().Lookup("force")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
