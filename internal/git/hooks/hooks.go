// Package hooks installs global git hooks that feed commits into the
// ledger as they happen.
package hooks

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const hookMarker = "Punchcard"

const hookScript = `#!/bin/bash
# Punchcard %s hook
# Chain existing hook if present
if [ -x "$0.legacy" ]; then
    "$0.legacy" "$@"
fi
# Record commit (silent, non-blocking)
punchcard ingest 2>/dev/null &
`

var hookNames = []string{"post-commit", "post-merge"}

// HooksDir returns the global git hooks directory punchcard manages.
func HooksDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "git", "hooks"), nil
}

// Install sets up global git hooks so every commit reaches the ledger.
// Existing hooks are preserved as .legacy and chained.
func Install() error {
	hooksDir, err := HooksDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(hooksDir, 0755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}

	currentPath, err := getGitConfig("core.hooksPath")
	if err == nil && currentPath != "" && currentPath != hooksDir {
		fmt.Printf("Note: Found existing hooks at %s\n", currentPath)
		if err := migrateExistingHooks(currentPath, hooksDir); err != nil {
			return fmt.Errorf("migrating existing hooks: %w", err)
		}
	}

	for _, name := range hookNames {
		if err := installHook(hooksDir, name); err != nil {
			return err
		}
	}

	if err := setGitConfig("core.hooksPath", hooksDir); err != nil {
		return fmt.Errorf("setting core.hooksPath: %w", err)
	}

	return nil
}

// Uninstall removes punchcard git hooks and restores any backed-up ones.
func Uninstall() error {
	hooksDir, err := HooksDir()
	if err != nil {
		return err
	}

	for _, name := range hookNames {
		hookPath := filepath.Join(hooksDir, name)
		legacyPath := hookPath + ".legacy"

		content, err := os.ReadFile(hookPath)
		if err != nil || !strings.Contains(string(content), hookMarker) {
			continue
		}

		os.Remove(hookPath)
		if _, err := os.Stat(legacyPath); err == nil {
			os.Rename(legacyPath, hookPath)
			fmt.Printf("Restored original %s hook\n", name)
		}
	}

	entries, err := os.ReadDir(hooksDir)
	if err == nil && len(entries) == 0 {
		os.Remove(hooksDir)
		unsetGitConfig("core.hooksPath")
	}

	return nil
}

func installHook(hooksDir, name string) error {
	hookPath := filepath.Join(hooksDir, name)
	legacyPath := hookPath + ".legacy"

	if existing, err := os.ReadFile(hookPath); err == nil {
		if !strings.Contains(string(existing), hookMarker) {
			if err := os.Rename(hookPath, legacyPath); err != nil {
				return fmt.Errorf("backing up existing %s hook: %w", name, err)
			}
			fmt.Printf("Backed up existing %s hook to %s.legacy\n", name, name)
		}
	}

	content := fmt.Sprintf(hookScript, name)
	if err := os.WriteFile(hookPath, []byte(content), 0755); err != nil {
		return fmt.Errorf("writing %s hook: %w", name, err)
	}

	return nil
}

func migrateExistingHooks(oldDir, newDir string) error {
	entries, err := os.ReadDir(oldDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		content, err := os.ReadFile(filepath.Join(oldDir, entry.Name()))
		if err != nil {
			continue
		}

		newPath := filepath.Join(newDir, entry.Name()+".legacy")
		if err := os.WriteFile(newPath, content, 0755); err != nil {
			return err
		}
		fmt.Printf("Migrated %s to %s\n", entry.Name(), newPath)
	}

	return nil
}

func getGitConfig(key string) (string, error) {
	output, err := exec.Command("git", "config", "--global", key).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func setGitConfig(key, value string) error {
	return exec.Command("git", "config", "--global", key, value).Run()
}

func unsetGitConfig(key string) error {
	return exec.Command("git", "config", "--global", "--unset", key).Run()
}
