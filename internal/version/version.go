package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Build metadata, overridden with -ldflags "-X atomref/internal/version.Version=...".
var (
	Version   = "dev"
	Major     = "0"
	Minor     = "0"
	Patch     = "0"
	Built     = ""
	GitCommit = ""
)

type Info struct {
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

func Current() Info {
	return Info{
		Version:   strings.TrimSpace(Version),
		Major:     atoiOrZero(Major),
		Minor:     atoiOrZero(Minor),
		Patch:     atoiOrZero(Patch),
		Built:     strings.TrimSpace(Built),
		GitCommit: strings.TrimSpace(GitCommit),
	}
}

// IsDev reports whether the binary was built without release metadata.
func (i Info) IsDev() bool {
	return i.Version == "" || i.Version == "dev"
}

// String renders the one-line form printed by "atomref version".
func (i Info) String() string {
	if i.IsDev() {
		return "atomref dev"
	}
	line := fmt.Sprintf("atomref version %s", i.Version)
	if i.GitCommit != "" {
		line += " (" + shortCommit(i.GitCommit) + ")"
	}
	if i.Built != "" {
		line += " built " + i.Built
	}
	return line
}

// Fields returns the info as logger fields.
func (i Info) Fields() map[string]string {
	fields := map[string]string{"version": i.Version}
	if !i.IsDev() {
		fields["semver"] = fmt.Sprintf("%d.%d.%d", i.Major, i.Minor, i.Patch)
	}
	if i.GitCommit != "" {
		fields["commit"] = i.GitCommit
	}
	if i.Built != "" {
		fields["built"] = i.Built
	}
	return fields
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

func atoiOrZero(value string) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return parsed
}
