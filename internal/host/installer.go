package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/vrsandeep/vmfa-addons/internal/addons"
	"github.com/vrsandeep/vmfa-addons/internal/util"
	"go.uber.org/zap"
)

// stagingPrefix marks temporary extraction folders inside the plugin root.
const stagingPrefix = ".vmfa-staging-"

func errNoValidPlugin() *addons.HostError {
	return addons.NewHostError("incompatible_archive_no_plugins",
		"The package could not be installed. No valid plugins were found.")
}

// Install downloads the package at packageURL and unpacks it into the plugin
// directory. The archive must contain a single top-level folder holding a
// plugin file with a "Plugin Name" header. An existing folder is only
// replaced when overwrite is set.
func (p *PluginDir) Install(ctx context.Context, packageURL string, overwrite bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.InstallTimeout)
	defer cancel()

	p.logger.Info("installing package", zap.String("url", packageURL), zap.Bool("overwrite", overwrite))

	archive, err := p.download(ctx, packageURL)
	if err != nil {
		return false, err
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	staging, err := os.MkdirTemp(p.root, stagingPrefix)
	if err != nil {
		return false, addons.NewHostError("mkdir_failed", "Could not create directory.").Wrap(err)
	}
	defer os.RemoveAll(staging)

	if err := p.extract(ctx, archive, staging); err != nil {
		return false, err
	}

	folder, err := findPluginFolder(staging)
	if err != nil {
		return false, err
	}

	dest, err := util.SafeJoin(p.root, folder)
	if err != nil {
		return false, errNoValidPlugin()
	}
	if _, err := os.Stat(dest); err == nil {
		if !overwrite {
			return false, addons.NewHostError("folder_exists", "Destination folder already exists.")
		}
		if err := os.RemoveAll(dest); err != nil {
			return false, addons.NewHostError("remove_old_failed", "Could not remove the old plugin.").Wrap(err)
		}
	}

	if err := os.Rename(filepath.Join(staging, folder), dest); err != nil {
		return false, addons.NewHostError("copy_failed", "Could not copy files.").Wrap(err)
	}

	p.CleanCache()
	p.logger.Info("package installed", zap.String("folder", folder))
	return true, nil
}

func (p *PluginDir) download(ctx context.Context, packageURL string) (*os.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, packageURL, nil)
	if err != nil {
		return nil, addons.NewHostError("download_failed", "Download failed. A valid URL was not provided.").Wrap(err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, addons.NewHostError("download_failed", "Download failed. "+downloadReason(err)).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, addons.NewHostError("download_failed", "Download failed. "+http.StatusText(resp.StatusCode))
	}

	tmp, err := os.CreateTemp("", "vmfa-package-*.zip")
	if err != nil {
		return nil, addons.NewHostError("download_failed", "Download failed. Could not create a temporary file.").Wrap(err)
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, p.opts.MaxPackageBytes+1))
	if err == nil && n > p.opts.MaxPackageBytes {
		err = fmt.Errorf("package exceeds %d bytes", p.opts.MaxPackageBytes)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, addons.NewHostError("download_failed", "Download failed. "+downloadReason(err)).Wrap(err)
	}
	return tmp, nil
}

func downloadReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Operation timed out."
	}
	return err.Error()
}

// extract unpacks archive into dir. Entries that would land outside dir and
// symbolic links are skipped.
func (p *PluginDir) extract(ctx context.Context, archive *os.File, dir string) error {
	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return errNoValidPlugin().Wrap(err)
	}
	format, _, err := archives.Identify(ctx, archive.Name(), archive)
	if err != nil {
		return addons.NewHostError("incompatible_archive", "Incompatible Archive.").Wrap(err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return addons.NewHostError("incompatible_archive", "Incompatible Archive.")
	}
	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return errNoValidPlugin().Wrap(err)
	}

	handler := func(ctx context.Context, f archives.FileInfo) error {
		if f.LinkTarget != "" {
			p.logger.Debug("skipping link in package", zap.String("name", f.NameInArchive))
			return nil
		}
		target, err := util.SafeJoin(dir, f.NameInArchive)
		if err != nil {
			p.logger.Warn("skipping unsafe package entry", zap.String("name", f.NameInArchive))
			return nil
		}
		if f.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		src, err := f.Open()
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return err
		}
		return dst.Close()
	}

	if err := extractor.Extract(ctx, archive, handler); err != nil {
		return addons.NewHostError("incompatible_archive", "Incompatible Archive.").Wrap(err)
	}
	return nil
}

// findPluginFolder returns the single top-level folder of an extracted
// package, provided it holds a plugin file.
func findPluginFolder(staging string) (string, error) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", errNoValidPlugin().Wrap(err)
	}

	var folders []string
	for _, e := range entries {
		if e.Name() == "__MACOSX" || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !e.IsDir() {
			return "", errNoValidPlugin()
		}
		folders = append(folders, e.Name())
	}
	if len(folders) != 1 {
		return "", errNoValidPlugin()
	}

	files, err := os.ReadDir(filepath.Join(staging, folders[0]))
	if err != nil {
		return "", errNoValidPlugin().Wrap(err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".php") {
			continue
		}
		h, err := readHeader(filepath.Join(staging, folders[0], f.Name()))
		if err == nil && h.Name != "" {
			return folders[0], nil
		}
	}
	return "", errNoValidPlugin()
}
