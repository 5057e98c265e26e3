package workload

import "golang.org/x/sys/unix"

// directFlag returns the O_DIRECT open flag that directory mode
// (dirmode.go) adds when cfg.Direct is set. O_DIRECT is only available on
// platforms golang.org/x/sys/unix defines it for; fileset.go reads
// unix.O_DIRECT directly for file/bdev mode.
func directFlag() int { return unix.O_DIRECT }
