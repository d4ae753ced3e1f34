//go:build !unix

package atomicfile

import "os"

// Advisory locking is a no-op off unix. Exclusive-create remains the sole
// source of the one-winner-per-path guarantee, so correctness is unchanged;
// only the ordering of cooperating writers is lost.
func lock(f *os.File) error { return nil }

func unlock(f *os.File) error { return nil }
