package harness

import (
	"fmt"
	"strings"

	"github.com/hossain-khan/social-sync/internal/engine"
)

// AssertionError is returned when an assertion fails. It carries the
// published sequence so failures can be read without the golden file.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    *Trace
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Trace != nil {
		fmt.Fprintf(&buf, "\nRuns:\n")
		for _, run := range e.Trace.Runs {
			for _, item := range run.Items {
				fmt.Fprintf(&buf, "  [%s] %s %s", run.RunID, item.Source, item.Outcome)
				if item.Reason != "" {
					fmt.Fprintf(&buf, " (%s)", item.Reason)
				}
				if item.Destination != "" {
					fmt.Fprintf(&buf, " -> %s", item.Destination)
				}
				buf.WriteString("\n")
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the trace and returns
// the failure messages.
func EvaluateAssertions(trace *Trace, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(trace, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(trace *Trace, a Assertion) error {
	switch a.Type {
	case AssertSynced:
		return assertSynced(trace, a)
	case AssertSkipped:
		return assertSkipped(trace, a)
	case AssertUnsynced:
		return assertUnsynced(trace, a)
	case AssertOutcome:
		return assertOutcome(trace, a)
	case AssertReplyTo:
		return assertReplyTo(trace, a)
	case AssertPublishCount:
		return assertPublishCount(trace, a)
	case AssertPublishOrder:
		return assertPublishOrder(trace, a)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func syncedTo(trace *Trace, source string) (string, bool) {
	for _, e := range trace.Ledger.Synced {
		if e.Source == source {
			return e.Destination, true
		}
	}
	return "", false
}

func skipReason(trace *Trace, source string) (string, bool) {
	for _, e := range trace.Ledger.Skipped {
		if e.Source == source {
			return e.Reason, true
		}
	}
	return "", false
}

func assertSynced(trace *Trace, a Assertion) error {
	dest, ok := syncedTo(trace, a.Source)
	if ok && (a.Destination == "" || a.Destination == dest) {
		return nil
	}
	expected := a.Source + " synced"
	if a.Destination != "" {
		expected += " to " + a.Destination
	}
	actual := "no sync record"
	if ok {
		actual = "synced to " + dest
	}
	return &AssertionError{Type: AssertSynced, Expected: expected, Actual: actual, Trace: trace}
}

func assertSkipped(trace *Trace, a Assertion) error {
	reason, ok := skipReason(trace, a.Source)
	if ok && (a.Reason == "" || a.Reason == reason) {
		return nil
	}
	expected := a.Source + " skipped"
	if a.Reason != "" {
		expected += " as " + a.Reason
	}
	actual := "no skip record"
	if ok {
		actual = "skipped as " + reason
	}
	return &AssertionError{Type: AssertSkipped, Expected: expected, Actual: actual, Trace: trace}
}

func assertUnsynced(trace *Trace, a Assertion) error {
	if dest, ok := syncedTo(trace, a.Source); ok {
		return &AssertionError{
			Type:     AssertUnsynced,
			Expected: a.Source + " has no ledger record",
			Actual:   "synced to " + dest,
			Trace:    trace,
		}
	}
	if reason, ok := skipReason(trace, a.Source); ok {
		return &AssertionError{
			Type:     AssertUnsynced,
			Expected: a.Source + " has no ledger record",
			Actual:   "skipped as " + reason,
			Trace:    trace,
		}
	}
	return nil
}

// assertOutcome checks the last result reported for the source.
func assertOutcome(trace *Trace, a Assertion) error {
	results := trace.results(a.Source)
	if len(results) == 0 {
		return &AssertionError{
			Type:     AssertOutcome,
			Expected: fmt.Sprintf("%s %s", a.Source, a.Outcome),
			Actual:   "no result reported",
			Trace:    trace,
		}
	}
	last := results[len(results)-1]
	if last.Outcome == a.Outcome && (a.Reason == "" || a.Reason == last.Reason) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcome,
		Expected: fmt.Sprintf("%s %s %s", a.Source, a.Outcome, a.Reason),
		Actual:   fmt.Sprintf("%s %s", last.Outcome, last.Reason),
		Trace:    trace,
	}
}

func assertReplyTo(trace *Trace, a Assertion) error {
	parentDest, ok := syncedTo(trace, a.Parent)
	if !ok {
		return &AssertionError{
			Type:     AssertReplyTo,
			Expected: a.Parent + " synced",
			Actual:   "no sync record for parent",
			Trace:    trace,
		}
	}
	for _, r := range trace.results(a.Source) {
		if r.Outcome != engine.OutcomeSynced {
			continue
		}
		if r.InReplyTo == parentDest {
			return nil
		}
		return &AssertionError{
			Type:     AssertReplyTo,
			Expected: fmt.Sprintf("%s in reply to %s", a.Source, parentDest),
			Actual:   fmt.Sprintf("in reply to %q", r.InReplyTo),
			Trace:    trace,
		}
	}
	return &AssertionError{
		Type:     AssertReplyTo,
		Expected: a.Source + " published",
		Actual:   "never published",
		Trace:    trace,
	}
}

func assertPublishCount(trace *Trace, a Assertion) error {
	n := len(trace.published())
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertPublishCount,
		Expected: fmt.Sprintf("%d statuses published", a.Count),
		Actual:   fmt.Sprintf("%d statuses published", n),
		Trace:    trace,
	}
}

// assertPublishOrder checks that the sources were synced in the given
// relative order. Other publishes may come in between.
func assertPublishOrder(trace *Trace, a Assertion) error {
	var order []string
	for _, run := range trace.Runs {
		for _, item := range run.Items {
			if item.Outcome == engine.OutcomeSynced {
				order = append(order, item.Source)
			}
		}
	}

	next := 0
	for _, source := range order {
		if next < len(a.Sources) && source == a.Sources[next] {
			next++
		}
	}
	if next == len(a.Sources) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPublishOrder,
		Expected: "published in order " + strings.Join(a.Sources, ", "),
		Actual:   "published " + strings.Join(order, ", "),
		Trace:    trace,
	}
}
