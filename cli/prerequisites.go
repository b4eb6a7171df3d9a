// Package cli checks that the external tools a verification needs are
// installed.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zhubert/spinrun/command"
	"github.com/zhubert/spinrun/config"
	"github.com/zhubert/spinrun/exec"
)

// Prerequisite is an external program spinrun invokes.
type Prerequisite struct {
	Name        string   // program name or path
	VersionArgs []string // arguments that print a version banner
	Required    bool
	Description string
	InstallURL  string
}

// DefaultPrerequisites returns the tools named by the properties: the
// verifier itself and the C compiler used to build pan.
func DefaultPrerequisites(p *config.Properties) []Prerequisite {
	return []Prerequisite{
		{
			Name:        p.String(config.KeySpin),
			VersionArgs: []string{"-V"},
			Required:    true,
			Description: "Spin model checker",
			InstallURL:  "https://spinroot.com/spin/Man/README.html",
		},
		{
			Name:        p.String(config.KeyCCompiler),
			VersionArgs: []string{"--version"},
			Required:    false, // Only needed for verification
			Description: "C compiler (for verification)",
			InstallURL:  "https://gcc.gnu.org/install/",
		},
	}
}

// CheckResult is the outcome of checking one prerequisite.
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string
	Version      string
	Error        error
}

const (
	// versionTimeout bounds a single version probe.
	versionTimeout = 5 * time.Second
	maxVersionLen  = 100
)

// Check looks prereq up on PATH and asks it for its version.
func Check(ctx context.Context, prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}
	executor := exec.GetDefaultExecutor()

	path, err := executor.LookPath(prereq.Name)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH: %w", prereq.Name, err)
		return result
	}
	result.Found, result.Path = true, path
	result.Version = getVersion(ctx, executor, prereq)
	return result
}

// CheckAll checks every prerequisite in order.
func CheckAll(ctx context.Context, prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = Check(ctx, prereq)
	}
	return results
}

// MissingRequired returns an error naming every required tool results
// did not find, with install hints.
func MissingRequired(results []CheckResult) error {
	var b strings.Builder
	for _, r := range results {
		if r.Found || !r.Prerequisite.Required {
			continue
		}
		fmt.Fprintf(&b, "\n  - %s (%s)\n    Install: %s", r.Prerequisite.Name, r.Prerequisite.Description, r.Prerequisite.InstallURL)
	}
	if b.Len() == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools:%s", b.String())
}

// ValidateRequired checks prereqs and reports the missing required ones.
func ValidateRequired(ctx context.Context, prereqs []Prerequisite) error {
	return MissingRequired(CheckAll(ctx, prereqs))
}

// getVersion returns the first non-empty line the tool prints for its
// version arguments.
func getVersion(ctx context.Context, executor exec.CommandExecutor, prereq Prerequisite) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	cmd := command.Command{Path: prereq.Name, Args: append([]string{prereq.Name}, prereq.VersionArgs...)}
	output, err := executor.CombinedOutput(ctx, cmd)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(output), "\n") {
		version := strings.TrimSpace(line)
		if version == "" {
			continue
		}
		if len(version) > maxVersionLen {
			return version[:maxVersionLen] + "..."
		}
		return version
	}
	return ""
}

// Symbol is the one-character status shown by FormatCheckResults: found,
// missing and required, or missing and optional.
func (r CheckResult) Symbol() string {
	switch {
	case r.Found:
		return "✓"
	case r.Prerequisite.Required:
		return "✗"
	default:
		return "○"
	}
}

// FormatCheckResults renders results for the terminal.
func FormatCheckResults(results []CheckResult) string {
	lines := []string{"Prerequisites:"}
	for _, r := range results {
		line := fmt.Sprintf("  %s %s", r.Symbol(), r.Prerequisite.Name)
		switch {
		case r.Found && r.Version != "":
			line += " (" + r.Version + ")"
		case r.Found:
		case r.Prerequisite.Required:
			line += " [REQUIRED]"
		default:
			line += " [optional]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n"
}
