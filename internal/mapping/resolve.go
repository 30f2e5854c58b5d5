package mapping

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Input holds raw option values keyed by long flag, programmatic name or
// short alias. Values may be strings, bools, numbers or string slices.
type Input map[string]any

// Options holds resolved option values keyed by programmatic name. Flag
// options hold a bool, everything else a string.
type Options map[string]any

// Has reports whether the option was resolved
func (o Options) Has(name string) bool {
	_, ok := o[name]
	return ok
}

// Bool returns a flag option, false when absent
func (o Options) Bool(name string) bool {
	b, _ := o[name].(bool)
	return b
}

// String returns a scalar option, empty when absent
func (o Options) String(name string) string {
	s, _ := o[name].(string)
	return s
}

// Int returns a scalar option parsed as an integer, def when absent or invalid
func (o Options) Int(name string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(o.String(name)))
	if err != nil {
		return def
	}
	return n
}

// ResolveCommand looks up a command by name and resolves in against it
func ResolveCommand(name string, in Input) (*Command, Options, error) {
	cmd, ok := Lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd, Resolve(cmd, in), nil
}

// Resolve maps raw user input onto the command's options. Unknown keys,
// unparseable flags and values rejected by an option's pattern are dropped.
func Resolve(cmd *Command, in Input) Options {
	out := make(Options)

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	// Sorted so a value supplied under two aliases resolves the same way every time
	sort.Strings(keys)

	for _, key := range keys {
		opt, ok := cmd.Lookup(key)
		if !ok {
			continue
		}
		if v, ok := resolveValue(opt, in[key]); ok {
			out[opt.Name] = v
		}
	}
	return out
}

func resolveValue(opt *Option, raw any) (any, bool) {
	switch opt.Kind {
	case KindFlag:
		return ParseBool(raw)
	case KindList:
		return joinList(raw), true
	default:
		s := scalarString(raw)
		if opt.Valid != nil && !opt.Valid.MatchString(s) {
			return nil, false
		}
		return s, true
	}
}

// ParseBool interprets a flag value. "1", "true", "yes", "on" and non-zero
// numbers are true; "", "0", "false", "no", "off", zero and nil are false.
// Anything else is reported as not ok.
func ParseBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case nil:
		return false, true
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case float64:
		return v != 0, true
	case []string:
		if len(v) == 0 {
			return false, true
		}
		return ParseBool(v[0])
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "0", "false", "no", "off":
			return false, true
		case "1", "true", "yes", "on":
			return true, true
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f != 0, true
		}
		return false, false
	}
	return false, false
}

func scalarString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		if len(v) == 0 {
			return ""
		}
		return v[0]
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func joinList(raw any) string {
	switch v := raw.(type) {
	case []string:
		return strings.Join(v, " ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, scalarString(item))
		}
		return strings.Join(parts, " ")
	default:
		return scalarString(raw)
	}
}

// Apply writes the wire parameters of the command's keyed namespaces into q
func (c *Command) Apply(q *Query, opts Options) {
	ApplyNamespaces(q, opts, c.Namespaces...)
}

// ApplyNamespaces writes every resolved option that has a wire name into q,
// in schema order. Flags become 1/0, inverted flags are negated.
func ApplyNamespaces(q *Query, opts Options, namespaces ...*Namespace) {
	for _, ns := range namespaces {
		for _, opt := range ns.Options {
			if opt.Wire == "" {
				continue
			}
			v, ok := opts[opt.Name]
			if !ok {
				continue
			}
			switch val := v.(type) {
			case bool:
				if opt.Invert {
					val = !val
				}
				if val {
					q.Set(opt.Wire, "1")
				} else {
					q.Set(opt.Wire, "0")
				}
			case string:
				q.Set(opt.Wire, val)
			}
		}
	}
}
