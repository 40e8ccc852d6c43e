package executor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/qscript-dev/qscript-runner/pkg/core"
	"github.com/qscript-dev/qscript-runner/pkg/script"
)

// assertOutcome carries the result of one assertion evaluation.
type assertOutcome struct {
	Pass    bool
	Message string                 // failure explanation, empty on pass
	Data    map[string]interface{} // actual/expected detail for the report
}

func pass(data map[string]interface{}) *assertOutcome {
	return &assertOutcome{Pass: true, Data: data}
}

func fail(data map[string]interface{}, format string, args ...interface{}) *assertOutcome {
	return &assertOutcome{Pass: false, Message: fmt.Sprintf(format, args...), Data: data}
}

// evalAssertion checks one assertion against live page state. A returned
// error is a driver/environment problem, not an assertion failure.
func evalAssertion(ctx context.Context, ec *ExecutionContext, a script.Assertion) (*assertOutcome, error) {
	target := ec.CurrentTarget()

	switch as := a.(type) {
	case *script.StatusAssertion:
		info, err := ec.Driver.PageInfo(ctx, target)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{"expected": as.Code, "actual": info.Status}
		if info.Status != as.Code {
			return fail(data, "expected status %d, got %d", as.Code, info.Status), nil
		}
		return pass(data), nil

	case *script.URLAssertion:
		info, err := ec.Driver.PageInfo(ctx, target)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{"expected": as.URL, "actual": info.URL}
		if info.URL != as.URL {
			return fail(data, "expected url %q, got %q", as.URL, info.URL), nil
		}
		return pass(data), nil

	case *script.ExistsAssertion:
		elems, err := ec.Driver.QueryAll(ctx, target, as.Selector)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{"selector": as.Selector, "matches": len(elems)}
		if len(elems) == 0 {
			return fail(data, "element %q not found", as.Selector), nil
		}
		return pass(data), nil

	case *script.VisibleAssertion:
		elems, err := ec.Driver.QueryAll(ctx, target, as.Selector)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{"selector": as.Selector, "matches": len(elems)}
		if len(elems) == 0 {
			return fail(data, "element %q not found", as.Selector), nil
		}
		if !elems[0].Visible {
			return fail(data, "element %q is not visible", as.Selector), nil
		}
		return pass(data), nil

	case *script.SimilarAssertion:
		text, err := elementText(ctx, ec, target, as.Selector)
		if err != nil {
			return nil, err
		}
		distance := textDistance(text, as.Phrase)
		data := map[string]interface{}{
			"selector":  as.Selector,
			"expected":  as.Phrase,
			"actual":    text,
			"distance":  distance,
			"threshold": as.Threshold,
		}
		if distance >= as.Threshold {
			return fail(data, "text %q drifted from %q (distance %.3f >= %.3f)",
				text, as.Phrase, distance, as.Threshold), nil
		}
		return pass(data), nil

	case *script.ChildrenAssertion:
		count, err := ec.Driver.ChildCount(ctx, target, as.Selector)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{
			"selector": as.Selector,
			"op":       string(as.Op),
			"expected": as.Count,
			"actual":   count,
		}
		if !as.Op.Compare(count, as.Count) {
			return fail(data, "children of %q: %d %s %d is false",
				as.Selector, count, as.Op, as.Count), nil
		}
		return pass(data), nil

	case *script.CLSAssertion:
		value, err := ec.Driver.PerformanceMetric(ctx, target, "cls")
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{"actual": value, "threshold": as.Threshold}
		if value >= as.Threshold {
			return fail(data, "CLS %.4f >= %.4f", value, as.Threshold), nil
		}
		return pass(data), nil

	case *script.AttrRegexAssertion:
		value, ok, err := ec.Driver.GetAttribute(ctx, target, as.Selector, as.Attr)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{
			"selector": as.Selector,
			"attr":     as.Attr,
			"pattern":  as.Pattern,
			"actual":   value,
		}
		if !ok {
			return fail(data, "attribute %s@%s is absent", as.Selector, as.Attr), nil
		}
		re, err := regexp.Compile(as.Pattern)
		if err != nil {
			return nil, err
		}
		if !re.MatchString(value) {
			return fail(data, "attribute %s@%s value %q does not match /%s/",
				as.Selector, as.Attr, value, as.Pattern), nil
		}
		return pass(data), nil

	case *script.EachAttrRegexAssertion:
		elems, err := ec.Driver.QueryAll(ctx, target, as.Selector)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(as.Pattern)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{
			"selector": as.Selector,
			"attr":     as.Attr,
			"pattern":  as.Pattern,
			"matches":  len(elems),
		}
		if len(elems) == 0 {
			return fail(data, "selector %q matched no elements", as.Selector), nil
		}
		seen := make(map[string]bool)
		for i, el := range elems {
			value, ok := el.Attributes[as.Attr]
			if !ok {
				return fail(data, "element %d of %q has no %s attribute", i, as.Selector, as.Attr), nil
			}
			if !re.MatchString(value) {
				return fail(data, "attribute %s=%q does not match /%s/", as.Attr, value, as.Pattern), nil
			}
			if seen[value] {
				return fail(data, "duplicate %s value %q", as.Attr, value), nil
			}
			seen[value] = true
		}
		return pass(data), nil

	case *script.NoDuplicatesAssertion:
		elems, err := ec.Driver.QueryAll(ctx, target, as.Selector)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{
			"selector": as.Selector,
			"attr":     as.Attr,
			"matches":  len(elems),
		}
		seen := make(map[string]bool)
		for _, el := range elems {
			value, ok := el.Attributes[as.Attr]
			if !ok {
				continue
			}
			if seen[value] {
				return fail(data, "duplicate %s value %q", as.Attr, value), nil
			}
			seen[value] = true
		}
		return pass(data), nil

	case *script.CanonicalAssertion:
		href, ok, err := ec.Driver.GetAttribute(ctx, target, "link[rel=canonical]", "href")
		if err != nil {
			return nil, err
		}
		info, err := ec.Driver.PageInfo(ctx, target)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{"canonical": href, "url": info.URL}
		if !ok {
			return fail(data, "page has no canonical link"), nil
		}
		if href != info.URL {
			return fail(data, "canonical %q differs from page url %q", href, info.URL), nil
		}
		return pass(data), nil

	case *script.LanguageAssertion:
		htmlLang, ok, err := ec.Driver.GetAttribute(ctx, target, "html", "lang")
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{"selector": as.Selector, "htmlLang": htmlLang}
		if !ok || htmlLang == "" {
			return fail(data, "html element declares no lang"), nil
		}
		elemLang, hasLang, err := ec.Driver.GetAttribute(ctx, target, as.Selector, "lang")
		if err != nil {
			return nil, err
		}
		// An element without its own lang inherits the document language.
		if hasLang && !strings.EqualFold(elemLang, htmlLang) {
			data["elementLang"] = elemLang
			return fail(data, "element lang %q differs from html lang %q", elemLang, htmlLang), nil
		}
		return pass(data), nil
	}

	return nil, fmt.Errorf("unhandled assertion kind %s", a.Kind())
}

// elementText reads the comparable text of an element. Meta tags carry
// their text in the content attribute rather than in rendered text.
func elementText(ctx context.Context, ec *ExecutionContext, target core.Target, selector string) (string, error) {
	if strings.Contains(selector, "meta") {
		value, ok, err := ec.Driver.GetAttribute(ctx, target, selector, "content")
		if err != nil {
			return "", err
		}
		if ok {
			return value, nil
		}
		return "", nil
	}
	return ec.Driver.VisibleText(ctx, target, selector)
}

// textDistance is a normalized edit distance in [0, 1]: 0 means identical,
// 1 means nothing in common. Comparison is case-insensitive with collapsed
// whitespace.
func textDistance(a, b string) float64 {
	a = normalizeText(a)
	b = normalizeText(b)
	if a == b {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	d := smetrics.WagnerFischer(a, b, 1, 1, 1)
	return float64(d) / float64(longest)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
