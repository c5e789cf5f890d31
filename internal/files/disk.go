// Package files resolves named disks that hold uploaded spreadsheets.
package files

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fleetops/fleetops/internal/config"
	"github.com/fleetops/fleetops/internal/fetcher"
)

// maxFileSize caps how much of a single upload is read into memory.
const maxFileSize = 64 << 20

// Disk reads stored files by their relative path.
type Disk interface {
	Read(ctx context.Context, filePath string) ([]byte, error)
}

// LocalDisk reads files below a root directory.
type LocalDisk struct {
	root string
}

// NewLocalDisk creates a LocalDisk rooted at root.
func NewLocalDisk(root string) *LocalDisk {
	return &LocalDisk{root: root}
}

// Read returns the file content. Paths cannot escape the root.
func (d *LocalDisk) Read(ctx context.Context, filePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "files: local read")
	}
	clean := filepath.FromSlash(path.Clean("/" + filePath))
	full := filepath.Join(d.root, clean)

	f, err := os.Open(full)
	if err != nil {
		return nil, eris.Wrapf(err, "files: open %s", filePath)
	}
	defer f.Close() //nolint:errcheck

	return readLimited(f, filePath)
}

// RemoteDisk reads files from an ftp:// or http(s):// base URL.
type RemoteDisk struct {
	base    *url.URL
	fetcher fetcher.Fetcher
}

// NewRemoteDisk creates a RemoteDisk that joins file paths onto baseURL.
func NewRemoteDisk(baseURL string, f fetcher.Fetcher) (*RemoteDisk, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "files: parse base url %q", baseURL)
	}
	if u.Host == "" {
		return nil, eris.Errorf("files: base url %q has no host", baseURL)
	}
	return &RemoteDisk{base: u, fetcher: f}, nil
}

// URL returns the absolute location of filePath on this disk.
func (d *RemoteDisk) URL(filePath string) string {
	u := *d.base
	u.Path = path.Join("/", strings.TrimSuffix(d.base.Path, "/"), path.Clean("/"+filePath))
	return u.String()
}

// Read downloads the file.
func (d *RemoteDisk) Read(ctx context.Context, filePath string) ([]byte, error) {
	body, err := d.fetcher.Download(ctx, d.URL(filePath))
	if err != nil {
		return nil, eris.Wrapf(err, "files: download %s", filePath)
	}
	defer body.Close() //nolint:errcheck

	return readLimited(body, filePath)
}

func readLimited(r io.Reader, filePath string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return nil, eris.Wrapf(err, "files: read %s", filePath)
	}
	if len(data) > maxFileSize {
		return nil, eris.Errorf("files: %s exceeds %d bytes", filePath, maxFileSize)
	}
	return data, nil
}

// Disks is the set of configured disks.
type Disks struct {
	disks       map[string]Disk
	defaultDisk string
}

// NewDisks builds every disk named in cfg.
func NewDisks(cfg config.FilesConfig) (*Disks, error) {
	d := &Disks{disks: make(map[string]Disk, len(cfg.Disks)), defaultDisk: cfg.DefaultDisk}
	for name, dc := range cfg.Disks {
		disk, err := newDisk(dc)
		if err != nil {
			return nil, eris.Wrapf(err, "files: disk %s", name)
		}
		d.disks[name] = disk
	}
	return d, nil
}

// NewDisksFrom wraps already built disks.
func NewDisksFrom(defaultDisk string, disks map[string]Disk) *Disks {
	return &Disks{disks: disks, defaultDisk: defaultDisk}
}

func newDisk(dc config.DiskConfig) (Disk, error) {
	timeout := time.Duration(dc.TimeoutSecs) * time.Second
	switch dc.Driver {
	case "local", "":
		return NewLocalDisk(dc.Root), nil
	case "ftp":
		return NewRemoteDisk(dc.BaseURL, fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}))
	case "http":
		return NewRemoteDisk(dc.BaseURL, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: timeout}))
	default:
		return nil, eris.Errorf("files: unsupported disk driver %q", dc.Driver)
	}
}

// Get returns the named disk; an empty name selects the default disk.
func (d *Disks) Get(name string) (Disk, error) {
	if name == "" {
		name = d.defaultDisk
	}
	disk, ok := d.disks[name]
	if !ok {
		return nil, eris.Errorf("files: disk %q is not configured", name)
	}
	return disk, nil
}

// Read reads filePath from the named disk.
func (d *Disks) Read(ctx context.Context, diskName, filePath string) ([]byte, error) {
	disk, err := d.Get(diskName)
	if err != nil {
		return nil, err
	}
	return disk.Read(ctx, filePath)
}
