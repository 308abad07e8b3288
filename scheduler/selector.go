package scheduler

import (
	"fmt"
	"regexp"
)

// Selector matches scheduled task ids
type Selector interface {
	Match(id string) bool
	String() string
}

type idSelector string

// ID selects tasks whose id equals id exactly
// An empty id is a programming error and panics
func ID(id string) Selector {
	if id == "" {
		panic("scheduler: empty task id")
	}
	return idSelector(id)
}

func (s idSelector) Match(id string) bool { return string(s) == id }
func (s idSelector) String() string       { return string(s) }

type patternSelector struct {
	re *regexp.Regexp
}

// Pattern selects tasks whose id matches the regular expression expr
// An empty or malformed expression panics
func Pattern(expr string) Selector {
	if expr == "" {
		panic("scheduler: empty task pattern")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		panic(fmt.Sprintf("scheduler: bad task pattern %q: %v", expr, err))
	}
	return patternSelector{re: re}
}

func (s patternSelector) Match(id string) bool { return s.re.MatchString(id) }
func (s patternSelector) String() string       { return "/" + s.re.String() + "/" }
