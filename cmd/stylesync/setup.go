package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const serverName = "stylesync"

// AgentDef defines how to detect and configure one MCP client.
type AgentDef struct {
	ID          string
	DisplayName string
	Method      string            // "cli" or "file"
	Binary      string            // for CLI agents: binary name on PATH
	DirMarkers  []string          // for file-based: dirs that indicate presence
	ConfigPath  func() string     // returns resolved config file path
	ServersKey  string            // JSON key: "servers" (VS Code) or "mcpServers" (others)
	ExtraFields map[string]string // extra JSON fields (e.g. "type": "stdio" for VS Code)
}

// DetectedAgent is an agent found on the system.
type DetectedAgent struct {
	Def            AgentDef
	AlreadySetup   bool
	ResolvedConfig string
}

// setupOptions holds parsed flags for the setup command.
type setupOptions struct {
	auto bool
	// serveArgs follow the binary in the registered command, starting with "serve".
	serveArgs []string
}

// Replaceable for testing.
var (
	lookPathFunc = exec.LookPath
	statFunc     = os.Stat
	runCommand   = func(name string, args ...string) error {
		cmd := exec.Command(name, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
)

// agentRegistry lists all supported agents in display order.
var agentRegistry = []AgentDef{
	{
		ID: "openai_codex", DisplayName: "OpenAI Codex",
		Method: "cli", Binary: "codex",
	},
	{
		ID: "vscode_copilot", DisplayName: "VS Code Copilot",
		Method: "file", DirMarkers: []string{".vscode"},
		ConfigPath:  func() string { return filepath.Join(".vscode", "mcp.json") },
		ServersKey:  "servers",
		ExtraFields: map[string]string{"type": "stdio"},
	},
	{
		ID: "cursor", DisplayName: "Cursor",
		Method: "file", DirMarkers: []string{".cursor"},
		ConfigPath: func() string { return filepath.Join(".cursor", "mcp.json") },
		ServersKey: "mcpServers",
	},
	{
		ID: "desktop", DisplayName: "Claude Desktop",
		Method:     "file",
		ConfigPath: desktopConfigPath,
		ServersKey: "mcpServers",
	},
}

func desktopConfigPath() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

func newSetupCmd(a *app) *cobra.Command {
	var opts setupOptions
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the stylesync MCP server with installed AI agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.serveArgs = []string{"serve"}
			if doc, err := a.resolveDocument(); err == nil {
				abs, err := filepath.Abs(doc)
				if err != nil {
					return err
				}
				opts.serveArgs = append(opts.serveArgs, "--document", abs)
			}
			executeSetup(a.stdin, cmd.OutOrStdout(), opts)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.auto, "auto", false, "configure every detected agent without prompting")
	return cmd
}

// detectAgents scans the system for installed or project-configured agents.
func detectAgents() []DetectedAgent {
	var detected []DetectedAgent

	for _, def := range agentRegistry {
		switch def.Method {
		case "cli":
			if _, err := lookPathFunc(def.Binary); err == nil {
				detected = append(detected, DetectedAgent{Def: def})
			}

		case "file":
			found := false
			configPath := ""

			for _, marker := range def.DirMarkers {
				if _, err := statFunc(marker); err == nil {
					found = true
					configPath = def.ConfigPath()
					break
				}
			}

			// Agents without dir markers count when their config directory exists.
			if !found && len(def.DirMarkers) == 0 && def.ConfigPath != nil {
				configPath = def.ConfigPath()
				if _, err := statFunc(filepath.Dir(configPath)); err == nil {
					found = true
				}
			}

			if found {
				detected = append(detected, DetectedAgent{
					Def:            def,
					ResolvedConfig: configPath,
					AlreadySetup:   isAlreadyConfiguredFile(configPath, def.ServersKey),
				})
			}
		}
	}

	return detected
}

// isAlreadyConfiguredFile checks if a stylesync entry exists in a JSON config file.
func isAlreadyConfiguredFile(configPath, serversKey string) bool {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return false
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return false
	}
	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		return false
	}
	_, exists := servers[serverName]
	return exists
}

// serverEntry returns the MCP server config object for stylesync.
func serverEntry(serveArgs []string, extra map[string]string) map[string]any {
	args := make([]any, len(serveArgs))
	for i, a := range serveArgs {
		args[i] = a
	}
	entry := map[string]any{
		"command": "stylesync",
		"args":    args,
	}
	for k, v := range extra {
		entry[k] = v
	}
	return entry
}

// mergeServerEntry reads existing JSON (or creates new), adds a stylesync entry
// under serversKey, and returns the merged JSON bytes.
// Returns nil, nil if stylesync is already configured.
func mergeServerEntry(existing []byte, serversKey string, serveArgs []string, extra map[string]string) ([]byte, error) {
	config := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &config); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	if _, exists := servers[serverName]; exists {
		return nil, nil
	}

	servers[serverName] = serverEntry(serveArgs, extra)
	config[serversKey] = servers

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// configureCLIAgent runs `<binary> mcp add stylesync -- stylesync serve ...`.
func configureCLIAgent(def AgentDef, serveArgs []string) error {
	args := append([]string{"mcp", "add", serverName, "--", "stylesync"}, serveArgs...)
	return runCommand(def.Binary, args...)
}

// configureFileAgent reads, merges, and writes the JSON config file.
func configureFileAgent(def AgentDef, configPath string, serveArgs []string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	var existing []byte
	if data, err := os.ReadFile(configPath); err == nil {
		existing = data
	}

	merged, err := mergeServerEntry(existing, def.ServersKey, serveArgs, def.ExtraFields)
	if err != nil {
		return err
	}
	if merged == nil {
		return nil
	}
	return os.WriteFile(configPath, merged, 0644)
}

// promptYesNo prints a question and reads Y/n. Returns true for yes (default).
func promptYesNo(scanner *bufio.Scanner, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s ", question)
	if !scanner.Scan() {
		return true
	}
	answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}

// executeSetup contains the testable core logic, parameterized on I/O.
func executeSetup(r io.Reader, w io.Writer, opts setupOptions) {
	detected := detectAgents()
	if len(detected) == 0 {
		fmt.Fprintln(w, "No supported AI agents detected.")
		return
	}

	fmt.Fprintln(w, "Detected AI agents:")
	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(w, "  * %s (already configured)\n", d.Def.DisplayName)
		} else {
			fmt.Fprintf(w, "  * %s\n", d.Def.DisplayName)
		}
	}
	fmt.Fprintln(w)

	scanner := bufio.NewScanner(r)
	if !opts.auto && !promptYesNo(scanner, w, "Configure agents? [Y/n]") {
		return
	}

	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(w, "\n%s: already configured, skipping\n", d.Def.DisplayName)
			continue
		}
		configureOneAgent(scanner, w, d, opts)
	}
}

func configureOneAgent(scanner *bufio.Scanner, w io.Writer, d DetectedAgent, opts setupOptions) {
	target := d.ResolvedConfig
	if d.Def.Method == "cli" {
		target = d.Def.Binary + " mcp add"
	}
	if !opts.auto && !promptYesNo(scanner, w, fmt.Sprintf("\n%s: add via %s? [Y/n]", d.Def.DisplayName, target)) {
		fmt.Fprintln(w, "  skipped")
		return
	}

	var err error
	switch d.Def.Method {
	case "cli":
		err = configureCLIAgent(d.Def, opts.serveArgs)
	case "file":
		err = configureFileAgent(d.Def, d.ResolvedConfig, opts.serveArgs)
	}
	if err != nil {
		fmt.Fprintf(w, "  ! %s: failed: %v\n", d.Def.DisplayName, err)
		return
	}
	fmt.Fprintf(w, "  + %s configured (%s)\n", d.Def.DisplayName, target)
}
