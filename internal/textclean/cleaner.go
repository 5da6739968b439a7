// Package textclean normalises loaded text before chunking and applies optional
// user substitution rules.
//
// Rules file syntax, one rule per line, '#' starts a comment:
//
//	colour => color          case-insensitive literal replacement
//	s/\bteh\b/the/g          regular expression, flags i g m s
package textclean

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	trailingSpace   = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)

	quoteReplacer = strings.NewReplacer(
		"\u2018", "'", "\u2019", "'", "\u201A", "'",
		"\u201C", `"`, "\u201D", `"`, "\u201E", `"`,
		"\u2026", "...",
		"\r\n", "\n", "\r", "\n",
		"\uFEFF", "",
	)
)

// Rule rewrites text. It reports whether the text changed.
type Rule func(text string) (string, bool)

// Cleaner implements ports.TextCleaner.
type Cleaner struct {
	normalize bool
	rules     []Rule
}

// New returns a cleaner. normalize toggles the built-in whitespace and quote
// cleanup; rulesPath may be empty or point at a missing file.
func New(normalize bool, rulesPath string) (*Cleaner, error) {
	cleaner := &Cleaner{normalize: normalize}
	if strings.TrimSpace(rulesPath) == "" {
		return cleaner, nil
	}

	contents, err := os.ReadFile(rulesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cleaner, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", rulesPath, err)
	}

	rules, err := ParseRules(string(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", rulesPath, err)
	}
	cleaner.rules = rules
	return cleaner, nil
}

// RuleCount returns the number of loaded user rules.
func (c *Cleaner) RuleCount() int {
	return len(c.rules)
}

// Clean applies the built-in normalisation and then each rule once, in file order.
func (c *Cleaner) Clean(text string) (string, error) {
	if c.normalize {
		text = Normalize(text)
	}
	for _, rule := range c.rules {
		text, _ = rule(text)
	}
	if c.normalize {
		text = strings.TrimSpace(text)
	}
	return text, nil
}

// Normalize unifies line endings and typographic quotes and collapses whitespace.
func Normalize(text string) string {
	text = quoteReplacer.Replace(text)
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = trailingSpace.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ParseRules compiles a rules file.
func ParseRules(contents string) ([]Rule, error) {
	var rules []Rule
	for number, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var (
			rule Rule
			err  error
		)
		switch {
		case isRegexRule(line):
			rule, err = regexRule(line)
		case strings.Contains(line, "=>"):
			rule, err = literalRule(line)
		default:
			err = errors.New("unsupported rule format")
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", number+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func literalRule(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("literal rule source cannot be empty")
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(from))
	replacement := strings.ReplaceAll(to, "$", "$$")
	return func(text string) (string, bool) {
		out := re.ReplaceAllString(text, replacement)
		return out, out != text
	}, nil
}

func regexRule(line string) (Rule, error) {
	delim := line[1]
	pattern, next, err := splitDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	replacement, next, err := splitDelimited(line, next, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid replacement: %w", err)
	}

	var inline string
	global := false
	for _, flag := range strings.TrimSpace(line[next:]) {
		switch flag {
		case 'g':
			global = true
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		default:
			return nil, fmt.Errorf("unsupported flag %q", flag)
		}
	}
	if inline != "" {
		pattern = "(?" + inline + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}

	if global {
		return func(text string) (string, bool) {
			out := re.ReplaceAllString(text, replacement)
			return out, out != text
		}, nil
	}
	return func(text string) (string, bool) {
		match := re.FindStringSubmatchIndex(text)
		if match == nil {
			return text, false
		}
		expanded := re.ExpandString(nil, replacement, text, match)
		out := text[:match[0]] + string(expanded) + text[match[1]:]
		return out, out != text
	}, nil
}

// splitDelimited reads up to the next unescaped delim. An escaped delimiter is
// unescaped; other escapes are kept for the regex engine.
func splitDelimited(line string, start int, delim byte) (string, int, error) {
	var builder strings.Builder
	for index := start; index < len(line); index++ {
		char := line[index]
		switch {
		case char == '\\' && index+1 < len(line) && line[index+1] == delim:
			builder.WriteByte(delim)
			index++
		case char == '\\' && index+1 < len(line):
			builder.WriteByte(char)
			builder.WriteByte(line[index+1])
			index++
		case char == delim:
			return builder.String(), index + 1, nil
		default:
			builder.WriteByte(char)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isRegexRule(line string) bool {
	if len(line) < 2 || line[0] != 's' {
		return false
	}
	delim := line[1]
	return !(delim >= 'a' && delim <= 'z' || delim >= 'A' && delim <= 'Z' || delim >= '0' && delim <= '9' || delim == ' ' || delim == '\t')
}
