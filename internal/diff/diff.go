// Package diff computes the minimal prefix/suffix partition of two
// strings for incremental-update presentation.
//
// This is deliberately not a general minimal-edit-distance diff. The
// dominant edit pattern for instruction text is "replace a quantity or
// a clause in the middle", so a linear-time common-prefix/common-suffix
// scan produces exactly the span the presentation layer needs to
// animate, at a fraction of the cost.
package diff

// Result partitions an old/new text pair such that
// old = CommonPrefix + Removed + CommonSuffix and
// new = CommonPrefix + Added + CommonSuffix.
type Result struct {
	CommonPrefix string
	Removed      string
	Added        string
	CommonSuffix string
}

// HasChanges reports whether the two texts differ at all.
func (r Result) HasChanges() bool {
	return r.Removed != "" || r.Added != ""
}

// Compute returns the prefix/suffix decomposition of oldText vs
// newText. Comparison is rune-wise so multi-byte characters are never
// split across spans. The suffix scan is bounded by the consumed
// prefix, so the two common spans never overlap; identical inputs
// collapse to a full prefix and an empty suffix.
func Compute(oldText, newText string) Result {
	oldRunes := []rune(oldText)
	newRunes := []rune(newText)

	prefix := 0
	for prefix < len(oldRunes) && prefix < len(newRunes) && oldRunes[prefix] == newRunes[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(oldRunes)-prefix && suffix < len(newRunes)-prefix &&
		oldRunes[len(oldRunes)-1-suffix] == newRunes[len(newRunes)-1-suffix] {
		suffix++
	}

	return Result{
		CommonPrefix: string(oldRunes[:prefix]),
		Removed:      string(oldRunes[prefix : len(oldRunes)-suffix]),
		Added:        string(newRunes[prefix : len(newRunes)-suffix]),
		CommonSuffix: string(oldRunes[len(oldRunes)-suffix:]),
	}
}
