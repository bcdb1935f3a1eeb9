package version

import (
	"fmt"
	"log"
	"strings"

	"github.com/thushan/ferry/theme"
)

var (
	Name        = "ferry"
	Authors     = "Thushan Fernando"
	Description = "Serverless-on-edge dispatch fabric"
	Version     = "v0.1.0"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText  = "github.com/thushan/ferry"
	GithubHomeUri   = "https://github.com/thushan/ferry"
	GithubLatestUri = "https://github.com/thushan/ferry/releases/latest"
)

// PrintVersionInfo writes the startup banner, with build details when asked.
func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s - %s\n", Name, latestUri, Description))
	b.WriteString(fmt.Sprintf("  %s\n", githubUri))
	if extendedInfo {
		b.WriteString(fmt.Sprintf("  commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  built:  %s by %s\n", Date, User))
	}
	vlog.Print(b.String())
}
