package tools

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/litlab/internal/config"
)

// DetectProject determines the project a request is scoped to.
// Priority: explicit input > configured default > git origin > cwd basename.
// The last two apply only when ProjectFromCWD is enabled.
func DetectProject(cfg *config.Config, explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if cfg == nil {
		return ""
	}
	if cfg.DefaultProject != "" {
		return cfg.DefaultProject
	}
	if !cfg.ProjectFromCWD {
		return ""
	}
	if origin := getGitOriginName(); origin != "" {
		return origin
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Base(cwd)
	}
	return ""
}

// getGitOriginName extracts repo name from git remote origin URL.
func getGitOriginName() string {
	cmd := exec.Command("git", "config", "--get", "remote.origin.url")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return parseRepoName(strings.TrimSpace(string(output)))
}

// parseRepoName extracts repo name from git URL.
// Handles: git@github.com:owner/repo.git, https://github.com/owner/repo.git
func parseRepoName(url string) string {
	if url == "" {
		return ""
	}
	url = strings.TrimSuffix(url, ".git")

	if strings.HasPrefix(url, "git@") {
		parts := strings.Split(url, ":")
		if len(parts) == 2 {
			pathParts := strings.Split(parts[1], "/")
			return pathParts[len(pathParts)-1]
		}
	}

	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		parts := strings.Split(url, "/")
		return parts[len(parts)-1]
	}
	return ""
}
