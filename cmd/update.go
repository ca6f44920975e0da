package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/puku-sh/gateway/pkg/version"
)

type githubRelease struct {
	TagName string `json:"tag_name"`
}

// CheckForUpdates compares the build version against the latest published
// release. Best effort: any failure is silently ignored.
func CheckForUpdates() {
	url := "https://api.github.com/repos/puku-sh/gateway/releases/latest"

	client := http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return
	}

	current, err := goversion.NewVersion(version.Version)
	if err != nil {
		return
	}

	latest, err := goversion.NewVersion(release.TagName)
	if err != nil {
		return
	}

	if current.LessThan(latest) {
		fmt.Printf("A newer gateway release is available: %s (running %s)\n",
			release.TagName, version.Version)
	}
}
