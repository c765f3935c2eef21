package shm

import (
	"fmt"
	"os"
	"sync/atomic"
)

var testNameSeq atomic.Int64

// uniqueTestName returns a segment name that will not collide with a
// concurrent test process or a previous run that failed to clean up.
func uniqueTestName(prefix string) string {
	return fmt.Sprintf("mqtest_%s_%d_%d", prefix, os.Getpid(), testNameSeq.Add(1))
}
