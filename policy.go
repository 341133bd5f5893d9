package gvfs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/filesetio/gvfs/meta"
)

// PrefixPattern is the closed set of directory-naming layouts a fileset
// can declare via the meta.PropertyPrefixPattern property.
type PrefixPattern int

const (
	PatternAny PrefixPattern = iota
	PatternDate
	PatternDateHour
	PatternDateWithString
	PatternYearMonth
	PatternYearMonthDay
)

var patternNames = map[string]PrefixPattern{
	"ANY":              PatternAny,
	"DATE":             PatternDate,
	"DATE_HOUR":        PatternDateHour,
	"DATE_WITH_STRING": PatternDateWithString,
	"YEAR_MONTH":       PatternYearMonth,
	"YEAR_MONTH_DAY":   PatternYearMonthDay,
}

// ParsePrefixPattern parses the property value form of a pattern name.
func ParsePrefixPattern(s string) (PrefixPattern, error) {
	p, ok := patternNames[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown prefix pattern %q", s)
	}
	return p, nil
}

func (p PrefixPattern) String() string {
	for name, v := range patternNames {
		if v == p {
			return name
		}
	}
	return "UNKNOWN"
}

// Example returns a sample conforming prefix, used in policy violation
// messages.
func (p PrefixPattern) Example() string {
	switch p {
	case PatternDate:
		return "date=20240101"
	case PatternDateHour:
		return "date=20240101/hour=09"
	case PatternDateWithString:
		return "date=20240101/even"
	case PatternYearMonth:
		return "year=2024/month=01"
	case PatternYearMonthDay:
		return "year=2024/month=01/day=01"
	default:
		return "any/sub/dir"
	}
}

// levelExprs returns the per-level regular expressions the pattern
// mandates, outermost directory first. Levels beyond the returned slice
// are unconstrained.
func (p PrefixPattern) levelExprs() []string {
	switch p {
	case PatternDate:
		return []string{`date=\d{8}`}
	case PatternDateHour:
		return []string{`date=\d{8}`, `hour=\d{2}`}
	case PatternDateWithString:
		return []string{`date=\d{8}`, `[^/]+`}
	case PatternYearMonth:
		return []string{`year=\d{4}`, `month=\d{2}`}
	case PatternYearMonthDay:
		return []string{`year=\d{4}`, `month=\d{2}`, `day=\d{2}`}
	default:
		return nil
	}
}

// prefixPolicy is one fileset's declared layout: the naming pattern plus
// the maximum directory depth below the fileset root.
type prefixPolicy struct {
	pattern  PrefixPattern
	maxLevel int
}

// prefixPolicyOf reads and validates the layout properties of a fileset.
func prefixPolicyOf(f *meta.Fileset) (prefixPolicy, error) {
	patternValue := f.Property(meta.PropertyPrefixPattern)
	if patternValue == "" {
		return prefixPolicy{}, fmt.Errorf("%w: fileset %q does not declare %q",
			ErrPathPolicy, f.Name, meta.PropertyPrefixPattern)
	}
	pattern, err := ParsePrefixPattern(patternValue)
	if err != nil {
		return prefixPolicy{}, fmt.Errorf("%w: %v", ErrPathPolicy, err)
	}

	levelValue := f.Property(meta.PropertyDirMaxLevel)
	if levelValue == "" {
		return prefixPolicy{}, fmt.Errorf("%w: fileset %q does not declare %q",
			ErrPathPolicy, f.Name, meta.PropertyDirMaxLevel)
	}
	maxLevel, err := strconv.Atoi(levelValue)
	if err != nil || maxLevel <= 0 {
		return prefixPolicy{}, fmt.Errorf("%w: fileset %q max level must be a positive integer, got %q",
			ErrPathPolicy, f.Name, levelValue)
	}
	return prefixPolicy{pattern: pattern, maxLevel: maxLevel}, nil
}

// matcher builds the combined matcher for the policy: conforming directory
// chains up to maxLevel deep, with a trailing file segment when the leaf
// is expected to be a file.
func (pp prefixPolicy) matcher(isFile bool) *regexp.Regexp {
	levels := pp.pattern.levelExprs()
	if len(levels) > pp.maxLevel {
		levels = levels[:pp.maxLevel]
	}
	for len(levels) < pp.maxLevel {
		levels = append(levels, `[^/]+`)
	}

	var alts []string
	if isFile {
		// Files directly under the fileset root.
		alts = append(alts, `/[^/]+`)
	}
	dirs := ""
	for _, level := range levels {
		dirs += "/" + level
		if isFile {
			alts = append(alts, dirs+`/[^/]+`)
		} else {
			alts = append(alts, dirs+"/?")
		}
	}
	return regexp.MustCompile(`^(?:` + strings.Join(alts, "|") + `)$`)
}

// check validates a sub-path below the fileset root. An empty sub-path
// (the root itself) is always valid. A non-conforming path is still
// accepted when a component at or before maxLevel is a hidden or
// temporary directory ("." / "_" prefix), which tolerates staging
// directories nested under the managed structure.
func (pp prefixPolicy) check(subPath string, isFile bool) bool {
	if subPath == "" || subPath == "/" {
		return true
	}
	if !strings.HasPrefix(subPath, "/") {
		subPath = "/" + subPath
	}
	if pp.matcher(isFile).MatchString(subPath) {
		return true
	}
	names := strings.Split(strings.TrimPrefix(subPath, "/"), "/")
	for i := 0; i < pp.maxLevel && i < len(names); i++ {
		if strings.HasPrefix(names[i], "_") || strings.HasPrefix(names[i], ".") {
			return true
		}
	}
	return false
}

// violation builds the user-facing policy error for a virtual path.
func (pp prefixPolicy) violation(virtualPath string) error {
	return fmt.Errorf("%w: path %q should look like %q with at most %d directory levels below the fileset root",
		ErrPathPolicy, virtualPath, pp.pattern.Example(), pp.maxLevel)
}
