// Package updater replaces the running binary with the latest GitHub
// release, when one exists. Releases ship as tar.xz on Linux and zip on
// Windows, one asset per platform.
package updater

import (
	"archive/tar"
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/ovallesco/attendly/internal/version"
)

const releaseURL = "https://api.github.com/repos/%s/%s/releases/latest"

type release struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// SelfUpdate checks the latest release and swaps the executable in place
// when a newer version is published. A "dev" build never updates.
func SelfUpdate(owner, repo string) error {
	if version.Version == "dev" {
		return nil
	}

	tag, downloadURL, err := latestAsset(owner, repo)
	if err != nil {
		return fmt.Errorf("check for updates: %w", err)
	}
	if tag == "" || compareVersions(version.Version, tag) >= 0 {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	return downloadAndReplace(downloadURL, exe)
}

// latestAsset returns the newest release tag and the download URL of this
// platform's asset. Empty strings mean no matching asset was published.
func latestAsset(owner, repo string) (string, string, error) {
	resp, err := http.Get(fmt.Sprintf(releaseURL, owner, repo))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", "", err
	}

	suffix := fmt.Sprintf("%s-%s%s", runtime.GOOS, runtime.GOARCH, archiveExt())
	for _, a := range rel.Assets {
		if strings.HasSuffix(a.Name, suffix) {
			return rel.TagName, a.BrowserDownloadURL, nil
		}
	}
	return "", "", nil
}

func archiveExt() string {
	if runtime.GOOS == "windows" {
		return ".zip"
	}
	return ".tar.xz"
}

func downloadAndReplace(downloadURL, exe string) error {
	tmpDir, err := os.MkdirTemp("", "attendly-update-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, filepath.Base(downloadURL))
	if err := download(downloadURL, archivePath); err != nil {
		return fmt.Errorf("download update: %w", err)
	}

	wantName := filepath.Base(exe)
	var extracted string
	if strings.HasSuffix(archivePath, ".zip") {
		extracted, err = extractZip(archivePath, tmpDir, wantName)
	} else {
		extracted, err = extractTarXz(archivePath, tmpDir, wantName)
	}
	if err != nil {
		return fmt.Errorf("extract update: %w", err)
	}
	if extracted == "" {
		return fmt.Errorf("executable %q not found in release archive", wantName)
	}

	return replaceExecutable(exe, extracted)
}

func download(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func extractTarXz(archivePath, destDir, wantName string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return "", err
	}
	tr := tar.NewReader(xzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if hdr.Typeflag != tar.TypeReg || filepath.Base(hdr.Name) != wantName {
			continue
		}
		dest := filepath.Join(destDir, wantName)
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, hdr.FileInfo().Mode())
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return "", err
		}
		out.Close()
		return dest, nil
	}
}

func extractZip(archivePath, destDir, wantName string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if filepath.Base(f.Name) != wantName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		dest := filepath.Join(destDir, wantName)
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode())
		if err != nil {
			rc.Close()
			return "", err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return "", err
		}
		return dest, nil
	}
	return "", nil
}

// replaceExecutable renames the running binary aside and moves the new one
// into place. On Windows the rename fails while the file is locked; the
// update then requires the app to be closed first.
func replaceExecutable(oldPath, newPath string) error {
	backup := oldPath + ".old"
	if err := os.Rename(oldPath, backup); err != nil {
		return fmt.Errorf("rename current executable: %w", err)
	}
	if err := os.Rename(newPath, oldPath); err != nil {
		os.Rename(backup, oldPath) // best-effort rollback
		return fmt.Errorf("move new executable into place: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(oldPath, 0755); err != nil {
			return err
		}
		os.Remove(backup)
	}
	return nil
}

// compareVersions orders two "vX.Y.Z" strings numerically per part.
func compareVersions(a, b string) int {
	aParts := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bParts := strings.Split(strings.TrimPrefix(b, "v"), ".")
	n := len(aParts)
	if len(bParts) > n {
		n = len(bParts)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(aParts) {
			av, _ = strconv.Atoi(aParts[i])
		}
		if i < len(bParts) {
			bv, _ = strconv.Atoi(bParts[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
