package rag

import "strings"

// ContextSeparator separates chunk texts in an assembled context.
const ContextSeparator = "\n\n"

// AssembleContext joins the retrieved chunk texts in set order. It does not
// filter, reorder or deduplicate.
func AssembleContext(set RetrievedSet) string {
	return strings.Join(set.Texts(), ContextSeparator)
}
