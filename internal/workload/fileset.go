package workload

import (
	"os"

	"github.com/TheEntropyCollective/storagebench/internal/config"
	"golang.org/x/sys/unix"
)

// FileSet holds the benchmark path descriptors used in file/bdev mode.
// Per spec.md §3 ("File handle set"), these are owned by the
// configuration and shared read-only by workers: workers never close
// them. Directory mode does not use a FileSet; each worker opens its own
// per-file descriptor there instead.
type FileSet struct {
	Files []*os.File
	Sizes []int64
}

// OpenFileSet opens or creates every configured benchmark path for
// file/bdev mode. Regular files are created if missing and truncated to
// cfg.Size when cfg.Trunc or cfg.TruncToSize is set; block devices are
// opened as-is. O_DIRECT is applied when cfg.Direct is set.
func OpenFileSet(cfg *config.Config) (*FileSet, error) {
	fs := &FileSet{}
	flags := os.O_RDWR
	if cfg.Direct {
		flags |= unix.O_DIRECT
	}
	for i, p := range cfg.Path {
		openFlags := flags
		var perm os.FileMode = 0644
		if cfg.PathTypes[i] == config.PathTypeFile {
			openFlags |= os.O_CREATE
		}
		f, err := os.OpenFile(p, openFlags, perm)
		if err != nil {
			fs.Close()
			return nil, err
		}
		if cfg.PathTypes[i] == config.PathTypeFile && (cfg.Trunc || cfg.TruncToSize) {
			if err := f.Truncate(int64(cfg.Size)); err != nil {
				fs.Close()
				return nil, err
			}
		}
		info, err := f.Stat()
		if err != nil {
			fs.Close()
			return nil, err
		}
		size := info.Size()
		if cfg.PathTypes[i] != config.PathTypeFile {
			size = int64(cfg.Size) // block device size is not derivable from Stat portably
		}
		fs.Files = append(fs.Files, f)
		fs.Sizes = append(fs.Sizes, size)
	}
	return fs, nil
}

// Close releases every descriptor. Only the owner (worker manager /
// coordinator) calls this, never an individual worker.
func (fs *FileSet) Close() {
	for _, f := range fs.Files {
		if f != nil {
			_ = f.Close()
		}
	}
}
