// Package specs checks test result metrics against thresholds and reports
// the outcome like a test runner.
//
// A specs tree mirrors response.data of a results payload. Leaves are either
// a number (the metric must be less than it, or compared with
// defaults.operation) or an object with "max", "min" or both:
//
//	{
//	  "defaults": {"suiteName": "Homepage"},
//	  "median": {"firstView": {"TTFB": 100, "render": {"min": 100, "max": 300}}}
//	}
package specs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultSuite = "WebPageTest"
	defaultText  = "{metric}: {actual} should be {operation} {expected}"
)

// Test is one evaluated assertion
type Test struct {
	Title  string `json:"title"`
	Passed bool   `json:"passed"`
	Err    string `json:"err,omitempty"`
}

// Report is the outcome of a specs run
type Report struct {
	Suite string `json:"suite"`
	Tests []Test `json:"tests"`
}

// Failures returns the number of failed tests
func (r *Report) Failures() int {
	n := 0
	for _, t := range r.Tests {
		if !t.Passed {
			n++
		}
	}
	return n
}

// Passes returns the number of passed tests
func (r *Report) Passes() int {
	return len(r.Tests) - r.Failures()
}

// ErrorReport is a single failing test describing err
func ErrorReport(err error) *Report {
	return &Report{Suite: defaultSuite, Tests: []Test{{Title: err.Error(), Err: err.Error()}}}
}

// Complete reports whether results describe a finished test. Specs are not
// evaluated against unfinished tests.
func Complete(results any) bool {
	m, ok := results.(map[string]any)
	if !ok {
		return false
	}
	response, ok := m["response"].(map[string]any)
	if !ok {
		return true
	}
	switch code := response["statusCode"].(type) {
	case float64:
		return code == 200
	case int:
		return code == 200
	}
	return true
}

// Run evaluates specs against response.data of results
func Run(s *Specs, results any) *Report {
	var data map[string]any
	if m, ok := results.(map[string]any); ok {
		if response, ok := m["response"].(map[string]any); ok {
			data, _ = response["data"].(map[string]any)
		}
	}
	if data == nil {
		return ErrorReport(errors.New("no data"))
	}

	suite := s.Defaults.SuiteName
	if suite == "" {
		suite = defaultSuite
	}
	r := &Report{Suite: suite}
	walk(s, s.root, data, nil, true, r)
	return r
}

func walk(s *Specs, node *yaml.Node, data map[string]any, path []string, top bool, r *Report) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, spec := node.Content[i].Value, node.Content[i+1]
		if top && key == "defaults" {
			continue
		}

		metric := append(path[:len(path):len(path)], key)
		name := strings.Join(metric, ".")

		actual, ok := data[key]
		if !ok || actual == nil {
			r.Tests = append(r.Tests, Test{Title: name, Err: "not found"})
			continue
		}

		if child, ok := actual.(map[string]any); ok {
			if spec.Kind == yaml.MappingNode && !isRange(spec) {
				walk(s, spec, child, metric, false, r)
				continue
			}
			r.Tests = append(r.Tests, Test{Title: name, Err: "not a metric"})
			continue
		}

		r.Tests = append(r.Tests, check(name, spec, actual, s.Defaults))
	}
}

// isRange reports whether a mapping node is a {min, max} leaf
func isRange(n *yaml.Node) bool {
	return lookup(n, "min") != nil || lookup(n, "max") != nil
}

// check builds and evaluates one assertion
func check(metric string, spec *yaml.Node, actual any, defaults Defaults) Test {
	text := defaultText
	if t := lookup(spec, "text"); t != nil {
		text = t.Value
	} else if defaults.Text != "" {
		text = defaults.Text
	}

	var (
		operation string
		expected  string
		passed    bool
	)

	value, isNumber := toNumber(actual)
	switch {
	case spec.Kind == yaml.ScalarNode:
		expected = spec.Value
		want, wantNumber := toNumber(spec.Value)
		switch op := defaults.Operation; {
		case op == "" || op == "<":
			operation = "less than"
			passed = isNumber && wantNumber && value < want
		case op == ">":
			operation = "greater than"
			passed = isNumber && wantNumber && value > want
		default:
			operation = "equal to"
			passed = fmt.Sprint(actual) == spec.Value || (isNumber && wantNumber && value == want)
		}
	default:
		maxNode, minNode := lookup(spec, "max"), lookup(spec, "min")
		switch {
		case maxNode != nil && minNode != nil:
			hi, okHi := toNumber(maxNode.Value)
			lo, okLo := toNumber(minNode.Value)
			operation = "less than " + maxNode.Value + " and greater than"
			expected = minNode.Value
			passed = isNumber && okHi && okLo && value < hi && value > lo
		case maxNode != nil:
			hi, ok := toNumber(maxNode.Value)
			operation = "less than"
			expected = maxNode.Value
			passed = isNumber && ok && value < hi
		case minNode != nil:
			lo, ok := toNumber(minNode.Value)
			operation = "greater than"
			expected = minNode.Value
			passed = isNumber && ok && value > lo
		}
	}

	title := strings.NewReplacer(
		"{metric}", metric,
		"{actual}", formatValue(actual),
		"{operation}", operation,
		"{expected}", expected,
	).Replace(text)

	t := Test{Title: title, Passed: passed}
	if !passed {
		t.Err = title
	}
	return t
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func formatValue(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
