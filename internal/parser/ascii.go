// Package parser turns an OpenDAP ".ascii" response body into the numeric
// arrays the rest of the pipeline works with. The format is a stream of
// lines: a variable section opens with a header line beginning with
// "VARNAME," or "VARNAME[", and its data follows either inline on that
// line or on subsequent rows, some of which are prefixed by bracketed
// index tuples ("[0][0], 17.16, ...") and some of which are bare
// continuations of the previous row.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	headerName   = regexp.MustCompile(`^[A-Za-z_]\w*`)
	bracketGroup = regexp.MustCompile(`^(?:\[[^\]]*\])+`)
)

type varKind int

const (
	kindUnknown varKind = iota
	kind1D
	kind3D
)

var knownVars = map[string]varKind{
	"lat":     kind1D,
	"lon":     kind1D,
	"ugrd10m": kind3D,
	"vgrd10m": kind3D,
	"apcpsfc": kind3D,
}

// Parse tokenizes text into a Result. Unknown variable headers put the
// tokenizer into skip mode until the next recognized header; duplicate
// declarations of a variable already parsed are ignored entirely.
func Parse(text string) (Result, error) {
	var res Result
	seen := make(map[string]bool)

	current := ""  // active variable name, "" if none
	skip := false  // ignoring section data (unknown or duplicate header)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if startsWithLetter(trimmed) {
			name, rest := splitHeader(trimmed)
			kind, known := knownVars[name]

			switch {
			case seen[name]:
				// Quirk: OpenDAP repeats lat/lon declarations. Keep only
				// the first occurrence.
				current, skip = "", true
			case !known || kind == kindUnknown:
				current, skip = "", true
			default:
				current, skip = name, false
				seen[name] = true
				if rest != "" {
					appendFloats(&res, name, rest)
				}
			}
			continue
		}

		if skip || current == "" {
			continue
		}
		data := stripBracketPrefix(trimmed)
		appendFloats(&res, current, data)
	}

	if err := validate(res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func startsWithLetter(s string) bool {
	r := rune(s[0])
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

// splitHeader splits a header line into its variable name and any inline
// data following the header delimiter on the same line.
func splitHeader(line string) (name, rest string) {
	headerPart := line
	if i := strings.IndexByte(line, ','); i >= 0 {
		headerPart = line[:i]
		rest = line[i+1:]
	}
	name = headerName.FindString(headerPart)
	return name, rest
}

// stripBracketPrefix removes a leading run of "[N]" index groups (and the
// comma/space that follows) from a 3-D variable's data row.
func stripBracketPrefix(line string) string {
	if m := bracketGroup.FindString(line); m != "" {
		line = strings.TrimPrefix(line, m)
		line = strings.TrimLeft(line, ", \t")
	}
	return line
}

func appendFloats(res *Result, name, s string) {
	vals := parseFloats(s)
	switch name {
	case "lat":
		res.LatValues = append(res.LatValues, vals...)
	case "lon":
		res.LonValues = append(res.LonValues, vals...)
	case "ugrd10m":
		res.U = append(res.U, vals...)
	case "vgrd10m":
		res.V = append(res.V, vals...)
	case "apcpsfc":
		res.Precip = append(res.Precip, vals...)
	}
}

func parseFloats(s string) []float64 {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func validate(res Result) error {
	if len(res.LatValues) == 0 && len(res.LonValues) == 0 {
		return &ParseError{Reason: "no data"}
	}
	n := len(res.LatValues) * len(res.LonValues)
	for _, arr := range [][]float64{res.U, res.V, res.Precip} {
		if len(arr) == 0 {
			continue
		}
		if len(arr) != n {
			return &ParseError{Reason: "variable array length does not match lat*lon grid size"}
		}
	}
	for _, arr := range [][]float64{res.LatValues, res.LonValues, res.U, res.V, res.Precip} {
		for _, v := range arr {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ParseError{Reason: "non-finite value in payload"}
			}
		}
	}
	return nil
}
