package validation

import (
	"testing"

	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/stretchr/testify/require"
)

func TestCheckSyntax_Brackets(t *testing.T) {
	cases := []struct {
		name string
		lang script.Language
		src  string
		ok   bool
	}{
		{"balanced java", script.Java, "class A {\n  void b() { c(\"}\"); }\n}\n", true},
		{"unclosed brace", script.Java, "class A {\n  void b() {\n}\n", false},
		{"mismatched", script.JavaScript, "f(a[0)];\n", false},
		{"bracket in comment", script.JavaScript, "// }\n/* ( */\nf();\n", true},
		{"unterminated comment", script.Java, "/* open\nclass A {}\n", false},
		{"unterminated string", script.JavaScript, "f(\"abc);\n", false},
		{"escaped quote", script.Java, "f(\"a\\\"b\");\n", true},
		{"template literal spans lines", script.JavaScript, "f(`a\nb`);\n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkSyntax(tc.lang, tc.src)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestCheckSyntax_PythonIndentation(t *testing.T) {
	cases := []struct {
		name string
		src  string
		ok   bool
	}{
		{"nested blocks", "class A:\n    def b(self):\n        return 1\n\n    def c(self):\n        pass\n\n\nx = A()\n", true},
		{"missing block", "def a():\nx = 1\n", false},
		{"trailing colon", "def a():\n", false},
		{"unexpected indent", "x = 1\n    y = 2\n", false},
		{"dedent mismatch", "if x:\n        a()\n    b()\n", false},
		{"tab indentation", "if x:\n\ta()\n", false},
		{"continuation inside brackets", "f(\n        a,\n  b)\n", true},
		{"comment lines ignored", "if x:\n# note\n    a()  # trailing\n", true},
		{"triple quoted", "s = \"\"\"\n  free form (\n\"\"\"\n", true},
		{"colon inside dict", "d = {\"a\": 1}\ne = 2\n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkSyntax(script.Python, tc.src)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestCheck_DuplicateDeclarations(t *testing.T) {
	cases := []struct {
		name string
		lang script.Language
		src  string
	}{
		{"python def", script.Python, "def swipe(driver):\n    pass\n\n\ndef swipe(driver):\n    pass\n"},
		{"javascript function", script.JavaScript, "async function main() {\n}\n\nasync function main() {\n}\n"},
		{"javascript const shadows function", script.JavaScript, "const remote = 1;\n\nfunction remote() {\n}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Check(script.Artifact{Language: tc.lang, SourceCode: tc.src})
			require.NotNil(t, got.Failure)
			require.Equal(t, script.ReasonIdentifierCollision, got.Failure.Reason)
		})
	}

	got := Check(script.Artifact{Language: script.Python, SourceCode: "def swipe_flow(driver):\n    pass\n\n\ndef swipe(driver):\n    pass\n"})
	require.Nil(t, got.Failure)
}
