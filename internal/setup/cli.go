package setup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CLI drives the interactive `setup` subcommand.
type CLI struct {
	in *bufio.Reader
}

// NewCLI returns a CLI reading prompts from stdin.
func NewCLI() *CLI {
	return &CLI{in: bufio.NewReader(os.Stdin)}
}

// Run dispatches a setup subcommand.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		return c.help()
	}

	switch args[0] {
	case "wizard":
		return c.wizard()
	case "claude-desktop":
		return c.claudeDesktop(args[1:])
	case "status":
		return c.status()
	case "validate":
		return c.validate()
	case "help", "--help", "-h":
		return c.help()
	}

	fmt.Printf("unknown setup command %q\n\n", args[0])
	return c.help()
}

// ask prints a prompt and returns the trimmed reply, or def when the
// reply is empty.
func (c *CLI) ask(prompt, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", prompt, def)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	reply, _ := c.in.ReadString('\n')
	if reply = strings.TrimSpace(reply); reply == "" {
		return def
	}
	return reply
}

// confirm asks a yes/no question. def is the answer an empty reply maps to.
func (c *CLI) confirm(prompt string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	switch strings.ToLower(c.ask(fmt.Sprintf("%s [%s]", prompt, hint), "")) {
	case "y", "yes":
		return true
	case "":
		return def
	}
	return false
}

func (c *CLI) help() error {
	fmt.Print(`NRIS MCP server setup

Usage:
  mcp-server setup <command> [flags]

Commands:
  wizard          Guided first-time setup
  claude-desktop  Register the server with Claude Desktop
  status          Show what is configured on this machine
  validate        Check that the recorded configuration still works

Flags for claude-desktop:
  --binary, -b    Path to the server binary (defaults to this executable)
  --data-dir, -d  Directory for the embedded stores
  --auto, -y      Apply without asking

Examples:
  mcp-server setup wizard
  mcp-server setup claude-desktop --data-dir ~/.nris
  mcp-server setup status
`)
	return nil
}

func (c *CLI) claudeDesktop(args []string) error {
	opts := parseDesktopFlags(args)
	if opts.BinaryPath == "" {
		if self, err := os.Executable(); err == nil {
			opts.BinaryPath = self
		}
	}

	path, _ := DesktopConfigPath()
	fmt.Println("Registering with Claude Desktop")
	fmt.Printf("  config file:   %s\n", path)
	fmt.Printf("  server binary: %s\n", opts.BinaryPath)
	if opts.DataDir != "" {
		fmt.Printf("  data dir:      %s\n", opts.DataDir)
	}
	fmt.Println()

	if !opts.AutoConfirm && !c.confirm("Proceed?", true) {
		fmt.Println("Aborted, nothing written.")
		return nil
	}

	if err := InstallDesktopEntry(opts); err != nil {
		return fmt.Errorf("registering with Claude Desktop: %w", err)
	}

	fmt.Println()
	fmt.Println("Claude Desktop is configured. Restart it, then ask Claude to list")
	fmt.Println("its MCP tools or to interpret an NIPT sample to confirm the link.")
	return nil
}

func parseDesktopFlags(args []string) Options {
	var opts Options
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--binary", "-b":
			if i+1 < len(args) {
				i++
				opts.BinaryPath = args[i]
			}
		case "--data-dir", "-d":
			if i+1 < len(args) {
				i++
				opts.DataDir = args[i]
			}
		case "--auto", "-y":
			opts.AutoConfirm = true
		}
	}
	return opts
}

func (c *CLI) status() error {
	st := Inspect()

	fmt.Println("NRIS MCP server status")
	fmt.Println()

	fmt.Printf("Claude Desktop config: %s\n", st.DesktopConfigPath)
	if st.DesktopConfigured {
		fmt.Printf("  registered as %q, binary %s\n", ServerKey, st.BinaryPath)
		if _, err := os.Stat(st.BinaryPath); err != nil {
			fmt.Println("  binary is missing")
		}
	} else {
		fmt.Println("  not registered; run: mcp-server setup claude-desktop")
	}

	fmt.Printf("Data directory: %s\n", st.DataDir)
	if _, err := os.Stat(st.DataDir); err == nil {
		if _, err := os.Stat(filepath.Join(st.DataDir, "overrides.db")); err == nil {
			fmt.Println("  override store present")
		} else {
			fmt.Println("  override store not created yet")
		}
	} else {
		fmt.Println("  will be created on first run")
	}

	if len(st.Issues) > 0 {
		fmt.Println()
		fmt.Println("Issues:")
		for _, issue := range st.Issues {
			fmt.Printf("  - %s\n", issue)
		}
	}
	return nil
}

func (c *CLI) validate() error {
	valid, issues := Validate()

	switch {
	case valid && len(issues) == 0:
		fmt.Println("Configuration is valid.")
		return nil
	case valid:
		fmt.Println("Configuration is valid, with notes:")
	default:
		fmt.Println("Configuration has problems:")
	}
	for _, issue := range issues {
		fmt.Printf("  - %s\n", issue)
	}
	return nil
}

func (c *CLI) wizard() error {
	fmt.Println()
	fmt.Println("NRIS MCP server setup wizard")
	fmt.Println("----------------------------")
	fmt.Println()

	st := Inspect()
	if st.DesktopConfigured {
		fmt.Println("Claude Desktop already has an entry for this server.")
		if !c.confirm("Reconfigure it?", false) {
			fmt.Println("Keeping the existing configuration.")
			return nil
		}
		fmt.Println()
	}

	self, _ := os.Executable()
	binary := c.ask("Server binary", self)
	if _, err := os.Stat(binary); os.IsNotExist(err) {
		fmt.Printf("No binary at %s.\n", binary)
		if !c.confirm("Record it anyway?", false) {
			return fmt.Errorf("setup cancelled")
		}
	}

	dataDir := c.ask("Data directory", DefaultDataDir())

	if err := InstallDesktopEntry(Options{BinaryPath: binary, DataDir: dataDir}); err != nil {
		return fmt.Errorf("registering with Claude Desktop: %w", err)
	}
	if err := EnsureDataDir(dataDir); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	fmt.Println()
	fmt.Println("Setup complete. Restart Claude Desktop to pick up the new entry,")
	fmt.Println("then try: \"Interpret NIPT sample NRIS-2024-000117\".")
	return nil
}
