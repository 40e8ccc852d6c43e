package script

import "fmt"

// AssertionKind identifies the assertion variant.
type AssertionKind string

// Assertion kinds.
const (
	AssertStatus       AssertionKind = "status"
	AssertURL          AssertionKind = "url"
	AssertExists       AssertionKind = "exists"
	AssertVisible      AssertionKind = "visible"
	AssertSimilar      AssertionKind = "similar"
	AssertChildren     AssertionKind = "children"
	AssertCLS          AssertionKind = "cls"
	AssertAttrRegex    AssertionKind = "attribute_regex"
	AssertEachAttr     AssertionKind = "each_attribute"
	AssertNoDuplicates AssertionKind = "no_duplicates"
	AssertCanonical    AssertionKind = "canonical"
	AssertLanguage     AssertionKind = "language"
)

// Assertion is the closed set of Assert expression variants. Dispatch in the
// executor is an exhaustive type switch so a new variant is a compile-time
// exercise, not a lookup-table entry.
type Assertion interface {
	Kind() AssertionKind
	Describe() string
}

// StatusAssertion checks the HTTP status of the last navigation.
type StatusAssertion struct {
	Code int
}

// Kind returns the assertion kind.
func (a *StatusAssertion) Kind() AssertionKind { return AssertStatus }

// Describe renders the assertion in source form.
func (a *StatusAssertion) Describe() string { return fmt.Sprintf("page.status is %d", a.Code) }

// URLAssertion checks the current page URL exactly.
type URLAssertion struct {
	URL string
}

// Kind returns the assertion kind.
func (a *URLAssertion) Kind() AssertionKind { return AssertURL }

// Describe renders the assertion in source form.
func (a *URLAssertion) Describe() string { return fmt.Sprintf("page.url is %q", a.URL) }

// ExistsAssertion checks that at least one element matches the selector.
type ExistsAssertion struct {
	Selector string
}

// Kind returns the assertion kind.
func (a *ExistsAssertion) Kind() AssertionKind { return AssertExists }

// Describe renders the assertion in source form.
func (a *ExistsAssertion) Describe() string { return fmt.Sprintf("element %q exists", a.Selector) }

// VisibleAssertion checks that at least one matched element is visible.
type VisibleAssertion struct {
	Selector string
}

// Kind returns the assertion kind.
func (a *VisibleAssertion) Kind() AssertionKind { return AssertVisible }

// Describe renders the assertion in source form.
func (a *VisibleAssertion) Describe() string { return fmt.Sprintf("element %q visible", a.Selector) }

// SimilarAssertion checks normalized text-similarity distance below a
// threshold. Selectors starting with "head meta" compare the content
// attribute instead of rendered text.
type SimilarAssertion struct {
	Selector  string
	Phrase    string
	Threshold float64
}

// Kind returns the assertion kind.
func (a *SimilarAssertion) Kind() AssertionKind { return AssertSimilar }

// Describe renders the assertion in source form.
func (a *SimilarAssertion) Describe() string {
	return fmt.Sprintf("element %q similar to %q < %g", a.Selector, a.Phrase, a.Threshold)
}

// ChildrenOp is a comparison operator in a children-count assertion.
type ChildrenOp string

// Comparison operators.
const (
	OpLT ChildrenOp = "<"
	OpLE ChildrenOp = "<="
	OpGT ChildrenOp = ">"
	OpGE ChildrenOp = ">="
	OpEQ ChildrenOp = "=="
	OpNE ChildrenOp = "!="
)

// Compare applies the operator to (actual, expected).
func (op ChildrenOp) Compare(actual, expected int) bool {
	switch op {
	case OpLT:
		return actual < expected
	case OpLE:
		return actual <= expected
	case OpGT:
		return actual > expected
	case OpGE:
		return actual >= expected
	case OpEQ:
		return actual == expected
	case OpNE:
		return actual != expected
	}
	return false
}

// ChildrenAssertion compares the direct child count of a selector.
type ChildrenAssertion struct {
	Selector string
	Op       ChildrenOp
	Count    int
}

// Kind returns the assertion kind.
func (a *ChildrenAssertion) Kind() AssertionKind { return AssertChildren }

// Describe renders the assertion in source form.
func (a *ChildrenAssertion) Describe() string {
	return fmt.Sprintf("children of %q count %s %d", a.Selector, a.Op, a.Count)
}

// CLSAssertion checks cumulative layout shift below a threshold.
type CLSAssertion struct {
	Threshold float64
}

// Kind returns the assertion kind.
func (a *CLSAssertion) Kind() AssertionKind { return AssertCLS }

// Describe renders the assertion in source form.
func (a *CLSAssertion) Describe() string { return fmt.Sprintf("CLS < %g", a.Threshold) }

// AttrRegexAssertion checks one element's attribute against a regex.
type AttrRegexAssertion struct {
	Selector string
	Attr     string
	Pattern  string
}

// Kind returns the assertion kind.
func (a *AttrRegexAssertion) Kind() AssertionKind { return AssertAttrRegex }

// Describe renders the assertion in source form.
func (a *AttrRegexAssertion) Describe() string {
	return fmt.Sprintf("attribute %s@%s matches /%s/", a.Selector, a.Attr, a.Pattern)
}

// EachAttrRegexAssertion requires every matched element's attribute to match
// the regex and to be unique. An empty match set fails.
type EachAttrRegexAssertion struct {
	Attr     string
	Selector string
	Pattern  string
}

// Kind returns the assertion kind.
func (a *EachAttrRegexAssertion) Kind() AssertionKind { return AssertEachAttr }

// Describe renders the assertion in source form.
func (a *EachAttrRegexAssertion) Describe() string {
	return fmt.Sprintf("each attribute %s in elements %q matches /%s/", a.Attr, a.Selector, a.Pattern)
}

// NoDuplicatesAssertion checks attribute uniqueness across matched elements.
type NoDuplicatesAssertion struct {
	Attr     string
	Selector string
}

// Kind returns the assertion kind.
func (a *NoDuplicatesAssertion) Kind() AssertionKind { return AssertNoDuplicates }

// Describe renders the assertion in source form.
func (a *NoDuplicatesAssertion) Describe() string {
	return fmt.Sprintf("no duplicates in attribute %s of elements %q", a.Attr, a.Selector)
}

// CanonicalAssertion checks the canonical link href equals the page URL.
type CanonicalAssertion struct{}

// Kind returns the assertion kind.
func (a *CanonicalAssertion) Kind() AssertionKind { return AssertCanonical }

// Describe renders the assertion in source form.
func (a *CanonicalAssertion) Describe() string { return "canonical href equals page.url" }

// LanguageAssertion checks an element's lang attribute equals html@lang.
type LanguageAssertion struct {
	Selector string
}

// Kind returns the assertion kind.
func (a *LanguageAssertion) Kind() AssertionKind { return AssertLanguage }

// Describe renders the assertion in source form.
func (a *LanguageAssertion) Describe() string {
	return fmt.Sprintf("element %q language equals html@lang", a.Selector)
}
