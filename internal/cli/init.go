package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cwt/ananta/internal/errors"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Create a hosts file interactively",
	Long: `Walk through a short form for each host and write a hosts file.

The output format follows the file extension: .yaml/.yml writes YAML,
anything else writes the one-host-per-line CSV format. Defaults to hosts.csv.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "hosts.csv"
		if len(args) == 1 {
			path = args[0]
		}
		return initHostsFile(path, initForce)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file without asking")
}

// hostEntry is one host collected from the form.
type hostEntry struct {
	Name     string
	IP       string
	Port     int
	Username string
	KeyPath  string
	Tags     []string
}

func initHostsFile(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Hosts file '%s' already exists. Overwrite?", path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	var entries []hostEntry
	for {
		entry, err := promptHost(len(entries) + 1)
		if err != nil {
			return err
		}
		entries = append(entries, entry)

		var more bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().Title("Add another host?").Value(&more),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input", "")
		}
		if !more {
			break
		}
	}

	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := marshalYAMLHosts(entries)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to generate hosts file",
				"This shouldn't happen - please report this bug")
		}
		content = data
	default:
		content = marshalCSVHosts(entries)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write hosts file: %s", path),
			"Check directory permissions")
	}

	fmt.Printf("Created %s with %d host(s)\n\n", path, len(entries))
	fmt.Println("Next steps:")
	fmt.Printf("  ananta %s uptime    - run a command everywhere\n", path)
	fmt.Printf("  ananta %s           - open the interactive session\n", path)
	return nil
}

// promptHost runs the form for one host.
func promptHost(n int) (hostEntry, error) {
	entry := hostEntry{Port: 22}
	port := "22"
	key := ""
	tags := ""

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Host %d: name", n)).
				Description("The label shown in front of this host's output").
				Placeholder("web-1").
				Value(&entry.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					if strings.ContainsAny(s, ", \t\n") {
						return fmt.Errorf("name cannot contain commas or whitespace")
					}
					return nil
				}),
			huh.NewInput().
				Title("IP address or hostname").
				Placeholder("192.168.1.10").
				Value(&entry.IP).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("address is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("SSH port").
				Value(&port).
				Validate(func(s string) error {
					if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("port must be an integer")
					}
					return nil
				}),
			huh.NewInput().
				Title("Username").
				Placeholder("deploy").
				Value(&entry.Username).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("username is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("SSH key path (optional)").
				Description("Leave empty to use ssh-agent or the usual keys in ~/.ssh").
				Placeholder("~/.ssh/id_ed25519").
				Value(&key),
			huh.NewInput().
				Title("Tags (optional)").
				Description("Comma-separated, for targeting with -t").
				Placeholder("web,production").
				Value(&tags),
		),
	)
	if err := form.Run(); err != nil {
		return hostEntry{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility")
	}

	entry.Port, _ = strconv.Atoi(strings.TrimSpace(port))
	entry.KeyPath = strings.TrimSpace(key)
	if entry.KeyPath == "" {
		entry.KeyPath = "#"
	}
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			entry.Tags = append(entry.Tags, tag)
		}
	}
	return entry, nil
}

// marshalCSVHosts writes the line format: name,ip,port,user,key[,tags] with
// colon-separated tags.
func marshalCSVHosts(entries []hostEntry) string {
	var b strings.Builder
	b.WriteString("# name,ip,port,username,key_path[,tags]\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s", e.Name, e.IP, e.Port, e.Username, e.KeyPath))
		if len(e.Tags) > 0 {
			b.WriteString("," + strings.Join(e.Tags, ":"))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// marshalYAMLHosts writes the mapping-per-host format the loader reads back.
func marshalYAMLHosts(entries []hostEntry) (string, error) {
	type yamlHost struct {
		IP       string   `yaml:"ip"`
		Port     int      `yaml:"port"`
		Username string   `yaml:"username"`
		KeyPath  string   `yaml:"key_path,omitempty"`
		Tags     []string `yaml:"tags,omitempty"`
	}

	doc := make(map[string]yamlHost, len(entries))
	for _, e := range entries {
		key := e.KeyPath
		if key == "#" {
			key = ""
		}
		doc[e.Name] = yamlHost{
			IP:       e.IP,
			Port:     e.Port,
			Username: e.Username,
			KeyPath:  key,
			Tags:     e.Tags,
		}
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return "# ananta hosts file\n" + string(data), nil
}
