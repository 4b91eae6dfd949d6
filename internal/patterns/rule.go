// Package patterns compiles glob patterns and ignore-file lines into path matchers
// with gitignore semantics: trailing "/" restricts a rule to directories, a leading
// "!" negates, later rules override earlier ones, and a rule declared in a nested
// ignore file is scoped to that file's directory.
package patterns

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/temirov/ingest/internal/types"
)

const (
	pathSeparator        = "/"
	negationPrefix       = "!"
	commentPrefix        = "#"
	escapeCharacter      = "\\"
	anyDirectoryPrefix   = "**/"
	doubleStarSegment    = "**"
	errorEmptyNegation   = "negation without a pattern"
	errorEmptyAfterSlash = "pattern is only a separator"
)

// Rule is one compiled pattern.
type Rule struct {
	// Source is the pattern as written.
	Source string
	// Base is the slash-separated directory the rule is scoped to ("" for the root).
	Base          string
	Negated       bool
	DirectoryOnly bool
	Anchored      bool
	glob          string
}

// CompileRule compiles one pattern scoped to base. It returns ok=false for blank
// lines and comments, which carry no rule.
func CompileRule(line string, base string) (rule Rule, ok bool, err error) {
	return compileRule(line, base, false)
}

// CompileIgnoreFileRule compiles one ignore-file line scoped to base. Braces are
// literal characters in ignore files, so "{a,b}" never expands to alternatives.
func CompileIgnoreFileRule(line string, base string) (rule Rule, ok bool, err error) {
	return compileRule(line, base, true)
}

func compileRule(line string, base string, literalBraces bool) (rule Rule, ok bool, err error) {
	trimmedLine := strings.TrimRight(line, " \t\r")
	if strings.TrimSpace(trimmedLine) == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
		return Rule{}, false, nil
	}
	rule = Rule{Source: trimmedLine, Base: strings.Trim(base, pathSeparator)}
	body := strings.TrimLeft(trimmedLine, " \t")

	if strings.HasPrefix(body, negationPrefix) {
		rule.Negated = true
		body = strings.TrimPrefix(body, negationPrefix)
		if body == "" {
			return Rule{}, false, &types.PatternSyntaxError{Pattern: line, Err: errors.New(errorEmptyNegation)}
		}
	} else if strings.HasPrefix(body, escapeCharacter+negationPrefix) || strings.HasPrefix(body, escapeCharacter+commentPrefix) {
		body = body[1:]
	}

	if literalBraces {
		body = escapeBraces(body)
	}
	if strings.HasSuffix(body, pathSeparator) {
		rule.DirectoryOnly = true
		body = strings.TrimRight(body, pathSeparator)
	}
	if strings.Contains(body, pathSeparator) {
		rule.Anchored = true
		body = strings.TrimLeft(body, pathSeparator)
	}
	if body == "" {
		return Rule{}, false, &types.PatternSyntaxError{Pattern: line, Err: errors.New(errorEmptyAfterSlash)}
	}

	if rule.Anchored || strings.HasPrefix(body, anyDirectoryPrefix) {
		rule.glob = body
	} else {
		rule.glob = anyDirectoryPrefix + body
	}
	if !doublestar.ValidatePattern(rule.glob) {
		return Rule{}, false, &types.PatternSyntaxError{Pattern: line, Err: doublestar.ErrBadPattern}
	}
	return rule, true, nil
}

// Matches reports whether the rule matches relativePath itself, ignoring negation.
func (rule Rule) Matches(relativePath string, isDirectory bool) bool {
	if rule.DirectoryOnly && !isDirectory {
		return false
	}
	localPath, inScope := rule.localize(relativePath)
	if !inScope {
		return false
	}
	matched, matchError := doublestar.Match(rule.glob, localPath)
	return matchError == nil && matched
}

// CouldMatchBeneath reports whether the rule could match directoryPath or any
// path below it. It errs on the side of true.
func (rule Rule) CouldMatchBeneath(directoryPath string) bool {
	if directoryPath == "" {
		return true
	}
	localPath, inScope := rule.localize(directoryPath)
	if !inScope {
		return strings.HasPrefix(rule.Base+pathSeparator, directoryPath+pathSeparator)
	}
	if !rule.Anchored {
		return true
	}
	patternSegments := strings.Split(rule.glob, pathSeparator)
	directorySegments := strings.Split(localPath, pathSeparator)
	for segmentIndex, directorySegment := range directorySegments {
		if segmentIndex >= len(patternSegments) {
			return true
		}
		patternSegment := patternSegments[segmentIndex]
		if patternSegment == doubleStarSegment {
			return true
		}
		matched, matchError := doublestar.Match(patternSegment, directorySegment)
		if matchError != nil || !matched {
			return false
		}
	}
	return true
}

// escapeBraces escapes every unescaped "{" and "}" in body.
func escapeBraces(body string) string {
	var escapedBody strings.Builder
	escapePending := false
	for _, character := range body {
		switch {
		case escapePending:
			escapePending = false
		case string(character) == escapeCharacter:
			escapePending = true
		case character == '{' || character == '}':
			escapedBody.WriteString(escapeCharacter)
		}
		escapedBody.WriteRune(character)
	}
	return escapedBody.String()
}

func (rule Rule) localize(relativePath string) (string, bool) {
	if rule.Base == "" {
		return relativePath, relativePath != ""
	}
	prefix := rule.Base + pathSeparator
	if !strings.HasPrefix(relativePath, prefix) {
		return "", false
	}
	return strings.TrimPrefix(relativePath, prefix), true
}
