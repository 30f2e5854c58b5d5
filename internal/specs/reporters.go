package specs

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DefaultReporter is used when no reporter is named
const DefaultReporter = "dot"

// Reporters lists the accepted reporter names. Names without a dedicated
// writer render like "spec".
var Reporters = []string{
	"dot", "spec", "tap", "json", "min", "list",
	"xunit", "progress", "nyan", "landing", "doc", "markdown", "teamcity",
}

// ValidReporter reports whether name is an accepted reporter
func ValidReporter(name string) bool {
	for _, r := range Reporters {
		if r == name {
			return true
		}
	}
	return false
}

// Write renders a report with the named reporter
func Write(w io.Writer, reporter string, r *Report) error {
	switch reporter {
	case "", "dot":
		return writeDot(w, r)
	case "tap":
		return writeTAP(w, r)
	case "json":
		return writeJSON(w, r)
	case "min":
		return writeSummary(w, r)
	case "list":
		return writeList(w, r)
	default:
		return writeSpec(w, r)
	}
}

func writeDot(w io.Writer, r *Report) error {
	var b strings.Builder
	b.WriteString("\n  ")
	for _, t := range r.Tests {
		if t.Passed {
			b.WriteByte('.')
		} else {
			b.WriteByte('!')
		}
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	return writeSummary(w, r)
}

func writeSpec(w io.Writer, r *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n", r.Suite)
	n := 0
	for _, t := range r.Tests {
		if t.Passed {
			fmt.Fprintf(&b, "    ✓ %s\n", t.Title)
			continue
		}
		n++
		fmt.Fprintf(&b, "    %d) %s\n", n, t.Title)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	return writeSummary(w, r)
}

func writeList(w io.Writer, r *Report) error {
	var b strings.Builder
	b.WriteString("\n")
	for _, t := range r.Tests {
		mark := "✓"
		if !t.Passed {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s %s %s\n", mark, r.Suite, t.Title)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	return writeSummary(w, r)
}

// writeSummary prints pass and failure counts followed by failure details
func writeSummary(w io.Writer, r *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  %d passing\n", r.Passes())
	if failures := r.Failures(); failures > 0 {
		fmt.Fprintf(&b, "  %d failing\n", failures)
		n := 0
		for _, t := range r.Tests {
			if t.Passed {
				continue
			}
			n++
			fmt.Fprintf(&b, "\n  %d) %s %s:\n     %s\n", n, r.Suite, t.Title, t.Err)
		}
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeTAP(w io.Writer, r *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "1..%d\n", len(r.Tests))
	for i, t := range r.Tests {
		if t.Passed {
			fmt.Fprintf(&b, "ok %d %s %s\n", i+1, r.Suite, t.Title)
			continue
		}
		fmt.Fprintf(&b, "not ok %d %s %s\n  %s\n", i+1, r.Suite, t.Title, t.Err)
	}
	fmt.Fprintf(&b, "# tests %d\n# pass %d\n# fail %d\n", len(r.Tests), r.Passes(), r.Failures())
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonTest struct {
	Title     string `json:"title"`
	FullTitle string `json:"fullTitle"`
	Err       string `json:"err,omitempty"`
}

func writeJSON(w io.Writer, r *Report) error {
	out := struct {
		Stats struct {
			Suites   int `json:"suites"`
			Tests    int `json:"tests"`
			Passes   int `json:"passes"`
			Failures int `json:"failures"`
		} `json:"stats"`
		Tests    []jsonTest `json:"tests"`
		Passes   []jsonTest `json:"passes"`
		Failures []jsonTest `json:"failures"`
	}{
		Tests:    []jsonTest{},
		Passes:   []jsonTest{},
		Failures: []jsonTest{},
	}
	out.Stats.Suites = 1
	out.Stats.Tests = len(r.Tests)
	out.Stats.Passes = r.Passes()
	out.Stats.Failures = r.Failures()

	for _, t := range r.Tests {
		jt := jsonTest{Title: t.Title, FullTitle: r.Suite + " " + t.Title, Err: t.Err}
		out.Tests = append(out.Tests, jt)
		if t.Passed {
			out.Passes = append(out.Passes, jt)
		} else {
			out.Failures = append(out.Failures, jt)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
