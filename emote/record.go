package emote

import (
	"errors"
	"fmt"
	"strings"
)

// Record is emote metadata kept in the cache.
type Record struct {
	Name   Name
	Class  string
	NSFW   bool
	Source string
}

// Validate checks that record has everything necessary to rewrite reference.
func (r Record) Validate() error {
	if !strings.HasPrefix(string(r.Name), "/") {
		return fmt.Errorf("bad emote name %q", r.Name)
	}
	if len(strings.TrimSpace(r.Class)) == 0 {
		return errors.New("empty emote class")
	}
	if strings.ContainsAny(r.Class, " \t\r\n") {
		return fmt.Errorf("bad emote class %q", r.Class)
	}
	return nil
}

// Result is resolution outcome for a single name.
type Result struct {
	Record   Record
	Resolved bool
}

// Results maps every name of a batch to its outcome. Absent names are
// unresolved.
type Results map[Name]Result

// Get returns outcome for the name.
func (r Results) Get(name Name) Result {
	return r[name]
}

// Unresolved returns results marking every name as unresolved.
func Unresolved(names []Name) Results {
	res := make(Results, len(names))
	for _, n := range names {
		res[n] = Result{Record: Record{Name: n}}
	}
	return res
}

// Resolved returns number of resolved names.
func (r Results) Resolved() int {
	n := 0
	for _, v := range r {
		if v.Resolved {
			n++
		}
	}
	return n
}
