// Package updater keeps the installed binary current against GitHub
// releases. Version checks are best-effort and never block the
// pipeline; the actual update downloads the release archive for this
// OS/arch and swaps the executable in place.
package updater

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const repoSlug = "taskforge/specdrive"

// Overridable in tests.
var (
	releaseEndpoint = "https://api.github.com/repos/" + repoSlug + "/releases/latest"
	httpClient      = &http.Client{Timeout: 10 * time.Second}
)

// Release is the subset of the GitHub release payload we consume.
type Release struct {
	TagName string         `json:"tag_name"`
	HTMLURL string         `json:"html_url"`
	Assets  []ReleaseAsset `json:"assets"`
}

// ReleaseAsset is one downloadable file attached to a release.
type ReleaseAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// UpdateResult reports the outcome of a version check.
type UpdateResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// CheckVersion compares the running version against the latest release.
// Network and API failures yield a result with UpdateAvailable=false;
// the check must never take the server down with it.
func CheckVersion(currentVersion string) *UpdateResult {
	result := &UpdateResult{CurrentVersion: normalizeVersion(currentVersion)}

	release, err := fetchLatest(currentVersion)
	if err != nil {
		return result
	}

	result.LatestVersion = normalizeVersion(release.TagName)
	result.ReleaseURL = release.HTMLURL
	result.UpdateAvailable = isNewer(result.CurrentVersion, result.LatestVersion)
	return result
}

// SelfUpdate downloads the release archive for this OS/arch and
// replaces the running executable.
func SelfUpdate(currentVersion string) error {
	release, err := fetchLatest(currentVersion)
	if err != nil {
		return err
	}

	latest := normalizeVersion(release.TagName)
	if !isNewer(normalizeVersion(currentVersion), latest) {
		return fmt.Errorf("already at latest version (%s)", currentVersion)
	}

	wanted := assetName(latest)
	var url string
	for _, a := range release.Assets {
		if a.Name == wanted {
			url = a.DownloadURL
			break
		}
	}
	if url == "" {
		return fmt.Errorf("release has no asset %s for %s/%s", wanted, runtime.GOOS, runtime.GOARCH)
	}

	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("downloading release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %d", resp.StatusCode)
	}

	binary, err := unpackBinary(resp.Body, wanted)
	if err != nil {
		return fmt.Errorf("extracting binary: %w", err)
	}
	return install(binary)
}

// fetchLatest queries the releases endpoint.
func fetchLatest(currentVersion string) (*Release, error) {
	req, err := http.NewRequest(http.MethodGet, releaseEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "specdrive/"+currentVersion)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying releases: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("releases API returned %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release payload: %w", err)
	}
	return &release, nil
}

// install writes the new binary next to the current executable, then
// renames it over the old one. Windows cannot rename over a running
// binary, so the old one is moved aside first.
func install(binary []byte) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating current executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	staged := execPath + ".new"
	if err := os.WriteFile(staged, binary, 0o755); err != nil {
		return fmt.Errorf("staging new binary: %w", err)
	}

	if runtime.GOOS == "windows" {
		aside := execPath + ".old"
		_ = os.Remove(aside)
		if err := os.Rename(execPath, aside); err != nil {
			_ = os.Remove(staged)
			return fmt.Errorf("moving current binary aside: %w", err)
		}
	}

	if err := os.Rename(staged, execPath); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("replacing binary: %w", err)
	}
	return nil
}

// unpackBinary extracts the specdrive binary from a release archive.
// Only tar.gz archives are handled; zip (Windows) asks for a manual
// download instead.
func unpackBinary(r io.Reader, name string) ([]byte, error) {
	if strings.HasSuffix(name, ".zip") {
		return nil, fmt.Errorf("zip archives are not auto-extracted; download %s manually from the releases page", name)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("no specdrive binary in archive")
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}
		switch filepath.Base(header.Name) {
		case "specdrive", "specdrive.exe":
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("reading binary entry: %w", err)
			}
			return data, nil
		}
	}
}

// assetName is the archive filename the release workflow publishes for
// the current OS and architecture.
func assetName(version string) string {
	ext := "tar.gz"
	if runtime.GOOS == "windows" {
		ext = "zip"
	}
	return fmt.Sprintf("specdrive_%s_%s_%s.%s", version, runtime.GOOS, runtime.GOARCH, ext)
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// isNewer reports whether latest is strictly ahead of current. "dev"
// builds never update. Comparison is numeric per dotted part, with
// missing parts as zero and non-numeric suffixes ignored ("3rc1" → 3).
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}

	cur := strings.Split(current, ".")
	lat := strings.Split(latest, ".")
	for i := 0; i < 3; i++ {
		c, l := versionPart(cur, i), versionPart(lat, i)
		if l != c {
			return l > c
		}
	}
	return false
}

// versionPart returns the numeric prefix of parts[i], or zero when the
// part is missing or non-numeric.
func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n := 0
	for _, ch := range parts[i] {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
