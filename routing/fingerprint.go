package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is a deterministic key over categorical buckets of a
// task's routing-relevant shape (spec §3). Truncated to 16 bytes,
// matching the "[16]byte truncated SHA-256" shape used elsewhere in
// this engine for content-addressed keys.
type Fingerprint [16]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

func tokenBucket(tokens int) string {
	switch {
	case tokens < 500:
		return "tiny"
	case tokens < 2000:
		return "small"
	case tokens < MaxTokenThreshold:
		return "medium"
	default:
		return "large"
	}
}

func toolBucket(n int) string {
	switch {
	case n == 0:
		return "none"
	case n <= 2:
		return "few"
	case n <= MaxToolThreshold:
		return "some"
	default:
		return "many"
	}
}

func depthBucket(depth int) string {
	switch {
	case depth == 0:
		return "none"
	case depth <= 2:
		return "shallow"
	case depth <= MaxDepthThreshold:
		return "medium"
	default:
		return "deep"
	}
}

// ComputeFingerprint computes a Fingerprint from (taskTypeTag, ctx). taskTypeTag
// is a caller-supplied categorical label for the task's kind (e.g. the
// AC's inferred domain); ctx supplies the token/tool/depth ranges.
func ComputeFingerprint(taskTypeTag string, ctx Context) Fingerprint {
	key := fmt.Sprintf("%s|%s|%s|%s",
		taskTypeTag,
		tokenBucket(ctx.TokenCount),
		toolBucket(len(ctx.ToolDependencies)),
		depthBucket(ctx.ACDepth),
	)
	sum := sha256.Sum256([]byte(key))
	var fp Fingerprint
	copy(fp[:], sum[:16])
	return fp
}
