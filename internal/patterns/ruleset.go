package patterns

import (
	"strings"
)

// Ruleset is an ordered list of rules evaluated with last-match-wins semantics.
// The zero value matches nothing.
type Ruleset struct {
	rules []Rule
}

// Compile compiles patterns scoped to base. Any malformed pattern fails the whole set.
func Compile(base string, patternLines []string) (Ruleset, error) {
	var ruleset Ruleset
	if appendError := ruleset.Append(base, patternLines); appendError != nil {
		return Ruleset{}, appendError
	}
	return ruleset, nil
}

// Append compiles and appends rules; on error the ruleset is left unchanged.
func (ruleset *Ruleset) Append(base string, patternLines []string) error {
	return ruleset.appendCompiled(base, patternLines, CompileRule)
}

// AppendIgnoreFile is Append for the lines of an ignore file.
func (ruleset *Ruleset) AppendIgnoreFile(base string, ignoreFileLines []string) error {
	return ruleset.appendCompiled(base, ignoreFileLines, CompileIgnoreFileRule)
}

// Concat returns a new ruleset holding the rules of ruleset followed by those of
// later. Neither operand is modified.
func (ruleset Ruleset) Concat(later Ruleset) Ruleset {
	if len(later.rules) == 0 {
		return ruleset
	}
	combined := make([]Rule, 0, len(ruleset.rules)+len(later.rules))
	combined = append(combined, ruleset.rules...)
	return Ruleset{rules: append(combined, later.rules...)}
}

func (ruleset *Ruleset) appendCompiled(base string, patternLines []string, compile func(string, string) (Rule, bool, error)) error {
	compiledRules := make([]Rule, 0, len(patternLines))
	for _, patternLine := range patternLines {
		rule, ok, compileError := compile(patternLine, base)
		if compileError != nil {
			return compileError
		}
		if ok {
			compiledRules = append(compiledRules, rule)
		}
	}
	ruleset.rules = append(ruleset.rules, compiledRules...)
	return nil
}

// Len returns the number of compiled rules.
func (ruleset Ruleset) Len() int {
	return len(ruleset.rules)
}

// Rules returns a copy of the compiled rules in evaluation order.
func (ruleset Ruleset) Rules() []Rule {
	return append([]Rule(nil), ruleset.rules...)
}

// Match reports whether relativePath is matched. A path whose ancestor directory
// is matched is matched as well, since a matched directory is never entered.
func (ruleset Ruleset) Match(relativePath string, isDirectory bool) bool {
	return ruleset.MatchBelow("", relativePath, isDirectory)
}

// MatchBelow is Match for relativePath taken relative to the directory prefix.
// Rules see the joined path, but only ancestors below prefix count as matched
// directories, so a walk rooted at prefix is never hidden by prefix itself.
func (ruleset Ruleset) MatchBelow(prefix string, relativePath string, isDirectory bool) bool {
	if len(ruleset.rules) == 0 || relativePath == "" {
		return false
	}
	segments := strings.Split(relativePath, pathSeparator)
	for ancestorLength := 1; ancestorLength < len(segments); ancestorLength++ {
		if ruleset.matchExact(joinBelow(prefix, strings.Join(segments[:ancestorLength], pathSeparator)), true) {
			return true
		}
	}
	return ruleset.matchExact(joinBelow(prefix, relativePath), isDirectory)
}

// CouldMatchBeneath reports whether a non-negated rule could match directoryPath
// or anything below it.
func (ruleset Ruleset) CouldMatchBeneath(directoryPath string) bool {
	for _, rule := range ruleset.rules {
		if !rule.Negated && rule.CouldMatchBeneath(directoryPath) {
			return true
		}
	}
	return false
}

func (ruleset Ruleset) matchExact(relativePath string, isDirectory bool) bool {
	matched := false
	for _, rule := range ruleset.rules {
		if rule.Matches(relativePath, isDirectory) {
			matched = !rule.Negated
		}
	}
	return matched
}

func joinBelow(prefix string, relativePath string) string {
	if prefix == "" {
		return relativePath
	}
	return prefix + pathSeparator + relativePath
}
