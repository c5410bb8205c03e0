// Package setup wires the mcp-server binary into Claude Desktop and
// manages the local data directory the embedded stores live in.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerKey is the entry name written into Claude Desktop's server map.
const ServerKey = "nris-interpreter"

// desktopConfigFile is the file Claude Desktop reads its MCP servers from.
const desktopConfigFile = "claude_desktop_config.json"

// DesktopConfig mirrors the part of Claude Desktop's configuration file
// this package edits.
type DesktopConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
}

// ServerEntry is one server registration inside the desktop config.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls how the desktop entry is written.
type Options struct {
	BinaryPath  string
	DataDir     string
	AutoConfirm bool
}

// DesktopConfigPath returns the location of Claude Desktop's config file
// for the current platform.
func DesktopConfigPath() (string, error) {
	dir, err := desktopConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, desktopConfigFile), nil
}

func desktopConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude"), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude"), nil
		}
		return filepath.Join(home, ".config", "Claude"), nil
	}

	return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
}

// LoadDesktopConfig reads the Claude Desktop configuration. A missing
// file yields an empty configuration rather than an error, so setup
// works on machines where Claude Desktop has never run.
func LoadDesktopConfig(path string) (*DesktopConfig, error) {
	cfg := &DesktopConfig{MCPServers: map[string]ServerEntry{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerEntry{}
	}
	return cfg, nil
}

// SaveDesktopConfig writes the configuration back, creating the parent
// directory if needed.
func SaveDesktopConfig(path string, cfg *DesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// InstallDesktopEntry adds or replaces the interpreter's entry in Claude
// Desktop's server map.
func InstallDesktopEntry(opts Options) error {
	path, err := DesktopConfigPath()
	if err != nil {
		return err
	}
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		return err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = locateBinary(); err != nil {
			return fmt.Errorf("locating server binary: %w", err)
		}
	}

	entry := ServerEntry{Command: binary, Env: map[string]string{}}
	if opts.DataDir != "" {
		entry.Env["NRIS_DATA_DIR"] = opts.DataDir
	}
	cfg.MCPServers[ServerKey] = entry

	return SaveDesktopConfig(path, cfg)
}

// locateBinary searches PATH and a few conventional install locations
// for the mcp-server binary.
func locateBinary() (string, error) {
	const name = "mcp-server"

	if found, err := exec.LookPath(name); err == nil {
		return found, nil
	}

	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(".", name),
		filepath.Join(".", "build", name),
		filepath.Join(home, ".local", "bin", name),
		filepath.Join("/usr/local/bin", name),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs, nil
		}
		return candidate, nil
	}

	return "", fmt.Errorf("%s not found on PATH or in conventional locations", name)
}

// Status describes how far setup has progressed on this machine.
type Status struct {
	DesktopConfigured bool
	DesktopConfigPath string
	BinaryPath        string
	DataDir           string
	Issues            []string
}

// Inspect reports the current setup state without changing anything.
func Inspect() *Status {
	st := &Status{}

	path, err := DesktopConfigPath()
	if err != nil {
		st.Issues = append(st.Issues, fmt.Sprintf("cannot determine Claude Desktop config path: %v", err))
	} else {
		st.DesktopConfigPath = path
		st.readDesktopEntry(path)
	}

	if st.DataDir == "" {
		st.DataDir = DefaultDataDir()
	}
	if _, err := os.Stat(st.DataDir); os.IsNotExist(err) {
		st.Issues = append(st.Issues, fmt.Sprintf("data directory does not exist: %s", st.DataDir))
	}

	return st
}

func (st *Status) readDesktopEntry(path string) {
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		st.Issues = append(st.Issues, fmt.Sprintf("cannot load Claude Desktop config: %v", err))
		return
	}

	entry, found := cfg.MCPServers[ServerKey]
	if !found {
		return
	}
	st.DesktopConfigured = true
	st.BinaryPath = entry.Command
	st.DataDir = entry.Env["NRIS_DATA_DIR"]

	if _, err := os.Stat(entry.Command); os.IsNotExist(err) {
		st.Issues = append(st.Issues, fmt.Sprintf("server binary missing at %s", entry.Command))
	}
}

// Validate checks that the recorded configuration would actually start.
// The returned issues may include non-blocking notes; ok is false only
// when something would prevent the server from running.
func Validate() (ok bool, issues []string) {
	path, err := DesktopConfigPath()
	if err != nil {
		return false, []string{fmt.Sprintf("cannot determine Claude Desktop config path: %v", err)}
	}
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		return false, []string{fmt.Sprintf("cannot load Claude Desktop config: %v", err)}
	}
	entry, found := cfg.MCPServers[ServerKey]
	if !found {
		return false, []string{"interpreter not registered in Claude Desktop; run: mcp-server setup claude-desktop"}
	}

	blocking := 0
	if info, err := os.Stat(entry.Command); os.IsNotExist(err) {
		issues = append(issues, fmt.Sprintf("server binary missing at %s", entry.Command))
		blocking++
	} else if err == nil && info.Mode()&0111 == 0 {
		issues = append(issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
		blocking++
	}

	dataDir := entry.Env["NRIS_DATA_DIR"]
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		issues = append(issues, fmt.Sprintf("data directory %s will be created on first run", dataDir))
	}

	return blocking == 0, issues
}

// DefaultDataDir is where the embedded stores live unless overridden
// through NRIS_DATA_DIR.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nris")
}

// EnsureDataDir creates the data directory and its exports subdirectory.
func EnsureDataDir(dir string) error {
	if dir == "" {
		dir = DefaultDataDir()
	}
	if err := os.MkdirAll(filepath.Join(dir, "exports"), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
