package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rpggio/flowscribe/internal/domain/locator"
	"github.com/rpggio/flowscribe/internal/domain/script"
)

// Checker decides the outcome of one artifact. Long-running checkers should
// stop early once ctx is cancelled.
type Checker func(ctx context.Context, a script.Artifact) Outcome

// StaticChecker adapts Check to the Checker signature.
func StaticChecker(_ context.Context, a script.Artifact) Outcome {
	return Check(a)
}

var finderCall = regexp.MustCompile(`FlutterBy\.([A-Za-z_]\w*)\(\s*("(?:[^"\\\n]|\\.)*")\s*\)`)

// Check verifies an artifact without executing it: the source must be well
// formed, every locator it uses must identify an element in the recorded
// actions, and no declared identifier may be a reserved word or be declared
// twice.
func Check(a script.Artifact) Outcome {
	d, err := script.DialectFor(a.Language)
	if err != nil {
		return Fail(script.ReasonSyntax, "%v", err)
	}

	if err := checkSyntax(a.Language, a.SourceCode); err != nil {
		return Fail(script.ReasonSyntax, "%v", err)
	}

	for _, m := range finderCall.FindAllStringSubmatch(a.SourceCode, -1) {
		finder, literal := m[1], m[2]
		strategy, ok := d.Strategy(finder)
		if !ok {
			return Fail(script.ReasonUnresolvedLocator, "unknown finder FlutterBy.%s", finder)
		}
		value, err := script.Unquote(literal)
		if err != nil {
			return Fail(script.ReasonSyntax, "%v", err)
		}
		if !resolvable(a, locator.Selector{Strategy: strategy, Value: value}) {
			return Fail(script.ReasonUnresolvedLocator, "%s does not match any recorded element", locator.Selector{Strategy: strategy, Value: value})
		}
	}

	seen := make(map[string]struct{})
	for _, name := range d.Declarations(a.SourceCode) {
		if d.Reserved(name) {
			return Fail(script.ReasonIdentifierCollision, "identifier %q is reserved in %s", name, a.Language)
		}
		if _, dup := seen[name]; dup {
			return Fail(script.ReasonIdentifierCollision, "identifier %q is declared more than once", name)
		}
		seen[name] = struct{}{}
	}
	return Pass()
}

func resolvable(a script.Artifact, sel locator.Selector) bool {
	for _, act := range a.Actions {
		if act.Locator.Matches(sel) {
			return true
		}
	}
	return false
}

var errUnbalanced = errors.New("unbalanced source")

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// checkSyntax verifies brackets, string literals and comments are balanced,
// and for Python that block indentation is consistent.
func checkSyntax(lang script.Language, src string) error {
	python := lang == script.Python
	var (
		stack       []byte
		line        = 1
		indents     = []int{0}
		expectBlock bool
		last        byte
	)

	// startLine handles indentation for the logical line starting at pos and
	// returns the offset of its first significant character.
	startLine := func(pos int) (int, error) {
		for {
			width, j := 0, pos
			for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
				if src[j] == '\t' {
					return 0, fmt.Errorf("line %d: tab in indentation", line)
				}
				width++
				j++
			}
			if j < len(src) && src[j] == '\n' {
				line++
				pos = j + 1
				continue
			}
			if j < len(src) && src[j] == '#' {
				for j < len(src) && src[j] != '\n' {
					j++
				}
				if j < len(src) {
					line++
					j++
				}
				pos = j
				continue
			}
			if j >= len(src) {
				return j, nil
			}

			top := indents[len(indents)-1]
			switch {
			case expectBlock:
				if width <= top {
					return 0, fmt.Errorf("line %d: expected an indented block", line)
				}
				indents = append(indents, width)
			case width > top:
				return 0, fmt.Errorf("line %d: unexpected indent", line)
			case width < top:
				for len(indents) > 1 && indents[len(indents)-1] > width {
					indents = indents[:len(indents)-1]
				}
				if indents[len(indents)-1] != width {
					return 0, fmt.Errorf("line %d: unindent does not match any outer level", line)
				}
			}
			expectBlock = false
			return j, nil
		}
	}

	i := 0
	if python {
		var err error
		if i, err = startLine(0); err != nil {
			return err
		}
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
			if python && len(stack) == 0 {
				expectBlock = last == ':'
				var err error
				if i, err = startLine(i); err != nil {
					return err
				}
			}
			continue
		case c == ' ' || c == '\t' || c == '\r':
			i++
			continue
		case python && c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case !python && strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case !python && strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return fmt.Errorf("line %d: unterminated comment", line)
			}
			line += strings.Count(src[i:i+2+end], "\n")
			i += end + 4
			continue
		case c == '"' || c == '\'' || (lang == script.JavaScript && c == '`'):
			next, lines, err := skipString(src, i, python)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			line += lines
			i = next
			last = '"'
			continue
		case c == '(' || c == '[' || c == '{':
			stack = append(stack, c)
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 || stack[len(stack)-1] != closers[c] {
				return fmt.Errorf("line %d: %w: unexpected %q", line, errUnbalanced, c)
			}
			stack = stack[:len(stack)-1]
		}
		last = c
		i++
	}

	if len(stack) > 0 {
		return fmt.Errorf("%w: %d unclosed bracket(s), last %q", errUnbalanced, len(stack), stack[len(stack)-1])
	}
	if python && (expectBlock || last == ':') {
		return fmt.Errorf("line %d: expected an indented block", line)
	}
	return nil
}

// skipString returns the offset just past the literal starting at start and
// the number of newlines it spans.
func skipString(src string, start int, python bool) (int, int, error) {
	quote := src[start]
	if python {
		triple := strings.Repeat(string(quote), 3)
		if strings.HasPrefix(src[start:], triple) {
			end := strings.Index(src[start+3:], triple)
			if end < 0 {
				return 0, 0, errors.New("unterminated triple-quoted string")
			}
			body := src[start : start+3+end]
			return start + 6 + end, strings.Count(body, "\n"), nil
		}
	}

	lines := 0
	for j := start + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
			if j < len(src) && src[j] == '\n' {
				lines++
			}
		case quote:
			return j + 1, lines, nil
		case '\n':
			if quote != '`' {
				return 0, 0, errors.New("unterminated string literal")
			}
			lines++
		}
	}
	return 0, 0, errors.New("unterminated string literal")
}
