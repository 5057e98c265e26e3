// Package iobuf implements the per-worker I/O buffer pool: io-depth
// page-aligned host buffers, optional device-staged buffers, and optional
// DMA registration, plus the integrity-check fill/verify routines that
// operate on those buffers. See spec.md §3 ("I/O buffer pool") and §4.2
// ("Buffer pool initialization", "Integrity check").
package iobuf

import (
	"math/rand"

	"golang.org/x/sys/unix"
)

// DeviceBuffer is an opaque handle to a block of device (e.g. GPU) memory
// staged for an I/O. The core never inspects its contents directly; all
// access goes through the DeviceStager that produced it.
type DeviceBuffer interface {
	// Bytes exposes a host-visible view for the no-op/simulated stager;
	// a real accelerator-backed implementation would not need this, but
	// every capability implementation in this module supports it so the
	// workload engine can run its memcpy stand-ins uniformly.
	Bytes() []byte
}

// DeviceStager is the capability interface for staging buffers through
// device memory. The workload engine holds a capability-set pointer whose
// no-op implementation (NoopStager) is used when the capability is absent,
// so device-specific types never leak into the core's public surface.
type DeviceStager interface {
	AllocDeviceBuffer(size int) (DeviceBuffer, error)
	FreeDeviceBuffer(DeviceBuffer) error
	CopyHostToDevice(dst DeviceBuffer, src []byte) error
	CopyDeviceToHost(dst []byte, src DeviceBuffer) error
}

// DMARegistrar is the capability interface for registering host buffers
// for pinned DMA. Absent the capability, RegisterHostBuffer/Deregister are
// no-ops.
type DMARegistrar interface {
	RegisterHostBuffer(buf []byte) (token interface{}, err error)
	DeregisterHostBuffer(token interface{}) error
}

// Capabilities bundles the optional device-staging and DMA-registration
// capabilities a BufferPool may exercise. Either field may be nil, in
// which case the corresponding no-op behavior applies.
type Capabilities struct {
	Stager    DeviceStager
	Registrar DMARegistrar
}

type hostBuffer struct {
	raw      []byte // the unaligned backing allocation
	aligned  []byte // the page-aligned slice workers actually use
	dmaToken interface{}
}

// BufferPool holds one worker's set of I/O buffers: io-depth page-aligned
// host buffers, and, if a device stager is configured, a matching set of
// device buffers.
type BufferPool struct {
	blockSize int
	caps      Capabilities
	host      []hostBuffer
	device    []DeviceBuffer
}

// New allocates a BufferPool with ioDepth buffers of blockSize bytes each,
// aligned to the system page size, filled once with pseudo-random bytes so
// they are not sparse on disk. If caps.Stager is set, a matching device
// buffer is allocated per slot and initialized via a host-to-device copy;
// if caps.Registrar is set, each host buffer is registered for pinned DMA.
func New(ioDepth, blockSize int, caps Capabilities, rng *rand.Rand) (*BufferPool, error) {
	p := &BufferPool{blockSize: blockSize, caps: caps}
	for i := 0; i < ioDepth; i++ {
		hb, err := newAlignedBuffer(blockSize)
		if err != nil {
			p.Close()
			return nil, err
		}
		rng.Read(hb.aligned)

		if caps.Registrar != nil {
			token, err := caps.Registrar.RegisterHostBuffer(hb.aligned)
			if err != nil {
				p.Close()
				return nil, err
			}
			hb.dmaToken = token
		}
		p.host = append(p.host, hb)

		if caps.Stager != nil {
			db, err := caps.Stager.AllocDeviceBuffer(blockSize)
			if err != nil {
				p.Close()
				return nil, err
			}
			if err := caps.Stager.CopyHostToDevice(db, hb.aligned); err != nil {
				p.Close()
				return nil, err
			}
			p.device = append(p.device, db)
		}
	}
	return p, nil
}

// newAlignedBuffer allocates size bytes aligned to the system page size.
// The standard library has no posix_memalign equivalent, so this
// over-allocates by one page and slices to the aligned offset, the
// idiomatic Go approach for O_DIRECT-compatible buffers.
func newAlignedBuffer(size int) (hostBuffer, error) {
	pageSize := unix.Getpagesize()
	raw := make([]byte, size+pageSize)
	addr := uintptrOf(raw)
	offset := (pageSize - int(addr%uintptr(pageSize))) % pageSize
	return hostBuffer{raw: raw, aligned: raw[offset : offset+size]}, nil
}

// Host returns the i'th host buffer.
func (p *BufferPool) Host(i int) []byte { return p.host[i].aligned }

// Device returns the i'th device buffer, or nil if device staging is not
// configured.
func (p *BufferPool) Device(i int) DeviceBuffer {
	if i >= len(p.device) {
		return nil
	}
	return p.device[i]
}

// Depth returns the configured io-depth (number of buffer slots).
func (p *BufferPool) Depth() int { return len(p.host) }

// Close deallocates in reverse order of allocation, deregistering DMA and
// freeing device buffers before releasing host buffers.
func (p *BufferPool) Close() error {
	for i := len(p.device) - 1; i >= 0; i-- {
		if p.caps.Stager != nil {
			_ = p.caps.Stager.FreeDeviceBuffer(p.device[i])
		}
	}
	p.device = nil

	for i := len(p.host) - 1; i >= 0; i-- {
		if p.caps.Registrar != nil && p.host[i].dmaToken != nil {
			_ = p.caps.Registrar.DeregisterHostBuffer(p.host[i].dmaToken)
		}
	}
	p.host = nil
	return nil
}
