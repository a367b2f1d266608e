package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/locator"
)

// Language is a synthesis target.
type Language string

const (
	Java       Language = "java"
	Python     Language = "python"
	JavaScript Language = "javascript"
)

// SupportedLanguages lists every language a renderer exists for.
var SupportedLanguages = []Language{Java, Python, JavaScript}

// ParseLanguage resolves a language name, ignoring case.
func ParseLanguage(name string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(name)))
	switch lang {
	case "js":
		return JavaScript, nil
	case "py":
		return Python, nil
	}
	if _, ok := dialects[lang]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, name)
	}
	return lang, nil
}

// Extension returns the file extension for exported scripts, including the dot.
func (l Language) Extension() string {
	switch l {
	case Java:
		return ".java"
	case Python:
		return ".py"
	case JavaScript:
		return ".js"
	}
	return ".txt"
}

// Dialect describes the lexical conventions generated code follows in one language.
type Dialect struct {
	Language Language

	finders      map[locator.Strategy]string
	reserved     map[string]struct{}
	scaffold     map[string]struct{}
	declarations *regexp.Regexp
	function     func(words []string) string
	escapeRune   func(r rune) (string, bool)
}

// DialectFor returns the dialect of lang.
func DialectFor(lang Language) (Dialect, error) {
	d, ok := dialects[lang]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, lang)
	}
	return d, nil
}

// Finder returns the helper method that locates elements by strategy.
func (d Dialect) Finder(s locator.Strategy) string {
	return d.finders[s]
}

// Strategy maps a finder helper name back to its strategy.
func (d Dialect) Strategy(finder string) (locator.Strategy, bool) {
	for s, name := range d.finders {
		if name == finder {
			return s, true
		}
	}
	return "", false
}

// LocatorExpr renders the finder call for sel.
func (d Dialect) LocatorExpr(sel locator.Selector) string {
	return "FlutterBy." + d.Finder(sel.Strategy) + "(" + d.Quote(sel.Value) + ")"
}

// Quote renders s as a double-quoted string literal.
func (d Dialect) Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if esc, ok := d.escapeRune(r); ok {
				b.WriteString(esc)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Reserved reports whether word is a reserved word of the language.
func (d Dialect) Reserved(word string) bool {
	_, ok := d.reserved[word]
	return ok
}

// Declarations returns the identifiers source declares, in order of appearance.
func (d Dialect) Declarations(source string) []string {
	var names []string
	for _, m := range d.declarations.FindAllStringSubmatch(source, -1) {
		names = append(names, m[1])
	}
	return names
}

// FunctionName derives the flow's function identifier from its display name.
// A name already taken by the generated harness gets a "flow" suffix.
func (d Dialect) FunctionName(flowName string) string {
	ws := words(flowName)
	name := d.function(ws)
	if _, taken := d.scaffold[name]; taken {
		name = d.function(append(ws, "flow"))
	}
	return name
}

// ClassName derives the test class identifier from a flow's display name.
func (d Dialect) ClassName(flowName string) string {
	var b strings.Builder
	for _, w := range words(flowName) {
		b.WriteString(title(w))
	}
	name := b.String()
	if name == "" || !unicode.IsLetter(rune(name[0])) {
		name = "Flow" + name
	}
	return name + "Test"
}

// Unquote decodes a double-quoted literal produced by any dialect.
func Unquote(lit string) (string, error) {
	if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
		return "", fmt.Errorf("%w: %s", ErrInvalidLiteral, lit)
	}
	body := lit[1 : len(lit)-1]
	var b strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(body[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(body) {
			return "", fmt.Errorf("%w: trailing backslash", ErrInvalidLiteral)
		}
		switch esc := body[i+1]; esc {
		case '\\', '"', '\'':
			b.WriteByte(esc)
			i += 2
		case 'n':
			b.WriteByte('\n')
			i += 2
		case 'r':
			b.WriteByte('\r')
			i += 2
		case 't':
			b.WriteByte('\t')
			i += 2
		case 'x', 'u':
			width := 2
			if esc == 'u' {
				width = 4
			}
			if i+2+width > len(body) {
				return "", fmt.Errorf("%w: short \\%c escape", ErrInvalidLiteral, esc)
			}
			code, err := strconv.ParseUint(body[i+2:i+2+width], 16, 32)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidLiteral, err)
			}
			b.WriteRune(rune(code))
			i += 2 + width
		default:
			return "", fmt.Errorf("%w: unknown escape \\%c", ErrInvalidLiteral, esc)
		}
	}
	return b.String(), nil
}

var dialects = map[Language]Dialect{
	Java: {
		Language: Java,
		finders: map[locator.Strategy]string{
			locator.StrategyStableKey:      "key",
			locator.StrategySemanticsLabel: "semanticsLabel",
			locator.StrategyDisplayText:    "text",
			locator.StrategyElementType:    "type",
		},
		reserved: wordSet(`abstract assert boolean break byte case catch char class const continue
			default do double else enum extends final finally float for goto if implements import
			instanceof int interface long native new package private protected public return short
			static strictfp super switch synchronized this throw throws transient try void volatile
			while true false null _`),
		scaffold:     wordSet(`driver runFlow setUp swipe tearDown`),
		declarations: regexp.MustCompile(`\b(?:class|void)\s+([A-Za-z_$][\w$]*)`),
		function:     camel,
		escapeRune: func(r rune) (string, bool) {
			if r < 0x20 || r == 0x7f {
				return fmt.Sprintf(`\u%04x`, r), true
			}
			return "", false
		},
	},
	Python: {
		Language: Python,
		finders: map[locator.Strategy]string{
			locator.StrategyStableKey:      "key",
			locator.StrategySemanticsLabel: "semantics_label",
			locator.StrategyDisplayText:    "text",
			locator.StrategyElementType:    "type",
		},
		reserved: wordSet(`False None True and as assert async await break class continue def del
			elif else except finally for from global if import in is lambda nonlocal not or pass
			raise return try while with yield`),
		scaffold:     wordSet(`driver key semantics_label swipe test_flow text type unittest webdriver`),
		declarations: regexp.MustCompile(`(?m)^\s*(?:async\s+)?(?:def|class)\s+([A-Za-z_]\w*)`),
		function:     snake,
		escapeRune: func(r rune) (string, bool) {
			if r < 0x20 || r == 0x7f {
				return fmt.Sprintf(`\x%02x`, r), true
			}
			return "", false
		},
	},
	JavaScript: {
		Language: JavaScript,
		finders: map[locator.Strategy]string{
			locator.StrategyStableKey:      "key",
			locator.StrategySemanticsLabel: "semanticsLabel",
			locator.StrategyDisplayText:    "text",
			locator.StrategyElementType:    "type",
		},
		reserved: wordSet(`await break case catch class const continue debugger default delete do
			else enum export extends false finally for function if implements import in instanceof
			interface let new null package private protected public return static super switch this
			throw true try typeof var void while with yield`),
		scaffold:     wordSet(`assert console driver element main module process remote require swipe`),
		declarations: regexp.MustCompile(`\b(?:function|class|const|let|var)\s+([A-Za-z_$][\w$]*)`),
		function:     camel,
		escapeRune: func(r rune) (string, bool) {
			switch {
			case r < 0x20 || r == 0x7f:
				return fmt.Sprintf(`\x%02x`, r), true
			case r == 0x2028 || r == 0x2029:
				return fmt.Sprintf(`\u%04x`, r), true
			}
			return "", false
		},
	},
}

func wordSet(list string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(list) {
		set[w] = struct{}{}
	}
	return set
}

func words(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
}

func title(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

func camel(ws []string) string {
	var b strings.Builder
	for i, w := range ws {
		if i == 0 {
			b.WriteString(strings.ToLower(w))
			continue
		}
		b.WriteString(title(w))
	}
	name := b.String()
	switch {
	case name == "":
		return "flow"
	case unicode.IsDigit(rune(name[0])):
		return "flow" + name
	}
	return name
}

func snake(ws []string) string {
	lower := make([]string, len(ws))
	for i, w := range ws {
		lower[i] = strings.ToLower(w)
	}
	name := strings.Join(lower, "_")
	switch {
	case name == "":
		return "flow"
	case unicode.IsDigit(rune(name[0])):
		return "flow_" + name
	}
	return name
}
