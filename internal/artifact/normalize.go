package artifact

import (
	"fmt"
	"regexp"
)

var (
	workerIDPattern = regexp.MustCompile(`(?i)worker(\d+)`)
	digitsPattern   = regexp.MustCompile(`(\d+)`)
)

// NormalizeOwnerID reduces whatever owner-id string a deployment supplies to
// the stable form "worker{N}". Deployments have been inconsistent about
// worker naming ("worker2", "worker2-cua", plain "2"), so normalization keys
// on the numeric identity and falls back to worker1 when none is present.
func NormalizeOwnerID(ownerID string) string {
	if m := workerIDPattern.FindStringSubmatch(ownerID); m != nil {
		return "worker" + m[1]
	}
	if m := digitsPattern.FindStringSubmatch(ownerID); m != nil {
		return "worker" + m[1]
	}
	return "worker1"
}

// String implements fmt.Stringer for Options, redacting credentials.
func (o Options) String() string {
	return fmt.Sprintf("artifact store %s bucket=%s owner=%s", o.Endpoint, o.Bucket, o.OwnerID)
}
