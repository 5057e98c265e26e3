// Package config defines the benchmark configuration object exchanged as
// JSON between the master and a service (spec.md §6) and consumed
// read-only by the coordinator, worker manager, and workload engine.
// Building the object from command-line flags is an external collaborator
// (see cmd/storagebench) — this package only defines its shape and
// validates it.
package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
)

// PathType identifies what kind of filesystem object a benchmark path is.
type PathType int

const (
	PathTypeDir PathType = iota
	PathTypeFile
	PathTypeBlockDevice
)

func (t PathType) String() string {
	switch t {
	case PathTypeDir:
		return "dir"
	case PathTypeFile:
		return "file"
	case PathTypeBlockDevice:
		return "bdev"
	default:
		return "unknown"
	}
}

// Config is the complete benchmark configuration, immutable for the
// duration of a phase. Field names and JSON tags mirror spec.md §6's
// recognized keys exactly; unknown keys are rejected by DecodeStrict.
type Config struct {
	Path []string `json:"path"` // a JSON array of paths in the wire form; a single comma-separated string is not accepted

	Threads        int `json:"threads"`
	DatasetThreads int `json:"datasetthreads"`

	Dirs  int `json:"dirs"`
	Files int `json:"files"`

	Size  uint64 `json:"size"`
	Block uint64 `json:"block"`

	Direct       bool `json:"direct"`
	Trunc        bool `json:"trunc"`
	TruncToSize  bool `json:"trunctosize"`
	PreallocFile bool `json:"preallocfile"`

	PerThread     bool `json:"perthread"`
	NoDelErr      bool `json:"nodelerr"`
	No0usecErr    bool `json:"no0usecerr"`

	MkDirs     bool `json:"mkdirs"`
	DelDirs    bool `json:"deldirs"`
	Write      bool `json:"write"`
	Read       bool `json:"read"`
	DelFiles   bool `json:"delfiles"`
	StatFiles  bool `json:"statfiles"`
	SyncPhase  bool `json:"syncphase"`
	DropCaches bool `json:"dropcaches"`

	Rand       bool   `json:"rand"`
	RandAlign  bool   `json:"randalign"`
	RandAmount uint64 `json:"randamount"`

	IODepth    uint64 `json:"iodepth"`
	RankOffset uint64 `json:"rankoffset"`

	Verify uint64 `json:"verify"` // integrity-check salt; 0 disables

	CuFile           bool  `json:"cufile"`
	GDSBufReg        bool  `json:"gdsbufreg"`
	CuFileDriverOpen bool  `json:"cufiledriveropen"`
	CuHostBufReg     bool  `json:"cuhostbufreg"`
	GPUIDs           []int `json:"gpuids"`

	// RWMixReadPercent, if > 0, activates the rw-mix policy during
	// create-files: this percentage of blocks are read instead of
	// written. Not an explicit spec.md §6 key (which covers Write/Read as
	// phase toggles); it supplements create-files per §4.2's "Rw-mix
	// policy" and original_source's RateLimiterRWMixThreads.
	RWMixReadPercent int `json:"rwmixreadpercent"`

	// RandomRefillPercent is the percentage of buffers refilled from the
	// PRNG before each submission, per §4.2's "Random-refill policy".
	RandomRefillPercent int `json:"randomrefillpercent"`

	TimeLimitSeconds int `json:"timelimitseconds"`

	// Hosts is the list of remote service hosts (host:port); empty means
	// local mode. Not itself one of spec.md §6's per-phase keys (those
	// are exchanged with each service), but part of the §3 data model.
	Hosts       []string `json:"-"`
	ServicePort int      `json:"-"`

	// PathTypes mirrors Path by index; populated by Validate via stat(2)
	// (or supplied directly by callers in tests).
	PathTypes []PathType `json:"-"`
}

// DefaultConfig returns a Config with the same conservative defaults the
// CLI collaborator would fill in before any flags are applied.
func DefaultConfig() *Config {
	return &Config{
		Threads:        1,
		DatasetThreads: 1,
		Dirs:           1,
		Files:          1,
		Size:           1024 * 1024,
		Block:          128 * 1024,
		IODepth:        1,
		MkDirs:         true,
		Write:          true,
		Read:           true,
		DelFiles:       true,
		DelDirs:        true,
		ServicePort:    1611,
	}
}

// Validate checks internal consistency and fills in derived fields
// (DatasetThreads, IODepth, the Block fallback, and PathTypes by stat'ing
// each path). It returns a *bench.ConfigInvalidError on any problem.
func (c *Config) Validate() error {
	if c.Threads <= 0 {
		return &bench.ConfigInvalidError{Reason: "threads must be > 0"}
	}
	if c.DatasetThreads <= 0 {
		c.DatasetThreads = c.Threads
	}
	if len(c.Path) == 0 {
		return &bench.ConfigInvalidError{Reason: "at least one path is required"}
	}
	if c.Block == 0 {
		return &bench.ConfigInvalidError{Reason: "block size must be > 0"}
	}
	// Reproduce the original's documented fallback: block = file_size
	// when block > file_size and file_size > 0 (Design Notes, open
	// question (b)). We emit the same behavior but log a diagnostic at
	// the call site (coordinator), not here, since this package has no
	// logger dependency.
	if c.Size > 0 && c.Block > c.Size {
		c.Block = c.Size
	}
	if c.IODepth == 0 {
		c.IODepth = 1
	}
	if c.Rand {
		perThread := c.RandAmount / uint64(c.DatasetThreads)
		if perThread == 0 {
			return &bench.ConfigInvalidError{Reason: "randamount / datasetthreads must be > 0 when rand is set"}
		}
	}
	if c.RWMixReadPercent < 0 || c.RWMixReadPercent > 100 {
		return &bench.ConfigInvalidError{Reason: "rwmixreadpercent must be within [0,100]"}
	}
	if c.RandomRefillPercent < 0 || c.RandomRefillPercent > 100 {
		return &bench.ConfigInvalidError{Reason: "randomrefillpercent must be within [0,100]"}
	}
	if len(c.PathTypes) == 0 {
		c.PathTypes = make([]PathType, len(c.Path))
		for i, p := range c.Path {
			c.PathTypes[i] = detectPathType(p)
		}
	}
	return nil
}

func detectPathType(path string) PathType {
	info, err := os.Stat(path)
	if err != nil {
		return PathTypeDir // default: will be created
	}
	if info.IsDir() {
		return PathTypeDir
	}
	if info.Mode()&os.ModeDevice != 0 {
		return PathTypeBlockDevice
	}
	return PathTypeFile
}

// ParsePathList splits a comma-separated path string, the form the CLI's
// -path flag takes.
func ParsePathList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DecodeStrict decodes JSON into a Config, rejecting unknown keys, per
// spec.md §6 ("Unknown keys are rejected").
func DecodeStrict(data []byte) (*Config, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	c := &Config{}
	if err := dec.Decode(c); err != nil {
		return nil, &bench.ConfigInvalidError{Reason: err.Error()}
	}
	return c, nil
}

// Phases returns the ordered phase sequence this configuration selects,
// per spec.md §3 ("A benchmark run is an ordered sequence of phases
// selected by configuration").
func (c *Config) Phases() []bench.Phase {
	var phases []bench.Phase
	maybeSync := func() {
		if c.SyncPhase {
			phases = append(phases, bench.PhaseSync)
		}
		if c.DropCaches {
			phases = append(phases, bench.PhaseDropCaches)
		}
	}
	if c.MkDirs && c.PathTypes0IsDir() {
		phases = append(phases, bench.PhaseCreateDirs)
		maybeSync()
	}
	if c.Write {
		phases = append(phases, bench.PhaseCreateFiles)
		maybeSync()
	}
	if c.Read {
		phases = append(phases, bench.PhaseReadFiles)
		maybeSync()
	}
	if c.StatFiles {
		phases = append(phases, bench.PhaseStatFiles)
	}
	if c.DelFiles {
		phases = append(phases, bench.PhaseDeleteFiles)
	}
	if c.DelDirs && c.PathTypes0IsDir() {
		phases = append(phases, bench.PhaseDeleteDirs)
	}
	return phases
}

// PathTypes0IsDir reports whether the first configured path is directory
// mode; create/delete-dirs phases only make sense in directory mode.
func (c *Config) PathTypes0IsDir() bool {
	if len(c.PathTypes) == 0 {
		return true
	}
	return c.PathTypes[0] == PathTypeDir
}
