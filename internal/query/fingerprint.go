package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// FingerprintParams is the set of inputs that determine whether two
// find() calls are cacheable as the same query (§4.I step 5).
type FingerprintParams struct {
	QueryVector   []float32
	QueryText     string
	NounID        string
	Where         string // canonical string form of the metadata filter, if any
	NounTypes     []string
	VerbTypes     []string
	SourceID      string
	Depth         int
	Limit         int
	Offset        int
	FusionWeights Weights
}

// Fingerprint returns a stable hash identifying p, independent of
// slice ordering for NounTypes/VerbTypes so that equivalent queries
// collapse to the same cache key.
func Fingerprint(p FingerprintParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "text=%s;noun=%s;where=%s;source=%s;depth=%d;limit=%d;offset=%d;", p.QueryText, p.NounID, p.Where, p.SourceID, p.Depth, p.Limit, p.Offset)
	fmt.Fprintf(&b, "weights=%.4f,%.4f,%.4f;", p.FusionWeights.Vector, p.FusionWeights.Graph, p.FusionWeights.Field)

	nounTypes := append([]string(nil), p.NounTypes...)
	sort.Strings(nounTypes)
	fmt.Fprintf(&b, "nounTypes=%s;", strings.Join(nounTypes, ","))

	verbTypes := append([]string(nil), p.VerbTypes...)
	sort.Strings(verbTypes)
	fmt.Fprintf(&b, "verbTypes=%s;", strings.Join(verbTypes, ","))

	for _, f := range p.QueryVector {
		fmt.Fprintf(&b, "%.6f,", f)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
