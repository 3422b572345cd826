package runner

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	jsFunctionPattern  = regexp.MustCompile(`function\s+([A-Za-z_$][\w$]*)\s*\(`)
	pyFunctionPattern  = regexp.MustCompile(`(?m)^def\s+([A-Za-z_]\w*)\s*\(`)
	cppFunctionPattern = regexp.MustCompile(`(?m)^[ \t]*(?:(?:static|inline|constexpr)\s+)*((?:(?:unsigned|signed|long|short|const)\s+)*[A-Za-z_][\w:<>,]*(?:\s*[*&]+)?)\s+[*&]?([A-Za-z_]\w*)\s*\(`)
	cppMainPattern     = regexp.MustCompile(`\bmain\s*\(`)
)

// Words that can open a line followed by an identifier and "(" without being a
// return type.
var cppNonTypes = map[string]bool{
	"return": true, "else": true, "new": true, "delete": true,
	"case": true, "throw": true, "using": true, "typedef": true,
}

func JavaScript() Language {
	return Language{
		Name:            "javascript",
		Aliases:         []string{"js", "node"},
		SandboxLanguage: "javascript",
		FileExtension:   "js",
		Wrap:            wrapJavaScript,
	}
}

func CPP() Language {
	return Language{
		Name:            "cpp",
		Aliases:         []string{"c++", "cc"},
		SandboxLanguage: "c++",
		FileExtension:   "cpp",
		Wrap:            wrapCPP,
	}
}

func Python() Language {
	return Language{
		Name:            "python",
		Aliases:         []string{"py", "python3"},
		SandboxLanguage: "python",
		FileExtension:   "py",
		Wrap:            wrapPython,
	}
}

func wrapJavaScript(code, input string) string {
	m := jsFunctionPattern.FindStringSubmatch(code)
	if m == nil {
		return code
	}
	return code + "\n\nconsole.log(" + m[1] + "(" + literalArgs(input) + "));\n"
}

func wrapPython(code, input string) string {
	m := pyFunctionPattern.FindStringSubmatch(code)
	if m == nil {
		return code
	}
	return code + "\n\nprint(" + m[1] + "(" + literalArgs(input) + "))\n"
}

// wrapCPP appends a main that prints name(args). Stdin tokens are inserted
// raw, without quoting, but separated by ", " rather than plain spaces so the
// generated call compiles: "2 3" becomes add(2, 3). Code that already
// defines main is returned unchanged.
func wrapCPP(code, input string) string {
	if cppMainPattern.MatchString(code) {
		return code
	}
	name := ""
	for _, m := range cppFunctionPattern.FindAllStringSubmatch(code, -1) {
		if cppNonTypes[m[1]] {
			continue
		}
		name = m[2]
		break
	}
	if name == "" {
		return code
	}

	var b strings.Builder
	if !strings.Contains(code, "<iostream>") && !strings.Contains(code, "<bits/stdc++.h>") {
		b.WriteString("#include <iostream>\n")
	}
	b.WriteString(code)
	b.WriteString("\n\nint main() {\n    std::cout << ")
	b.WriteString(name)
	b.WriteString("(")
	b.WriteString(strings.Join(strings.Fields(input), ", "))
	b.WriteString(") << std::endl;\n    return 0;\n}\n")
	return b.String()
}

// literalArgs renders whitespace-separated tokens as call arguments: numbers
// stay bare, anything else becomes a quoted string.
func literalArgs(input string) string {
	tokens := strings.Fields(input)
	args := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, err := strconv.ParseFloat(tok, 64); err == nil && isPlainNumber(tok) {
			args = append(args, tok)
			continue
		}
		quoted, _ := json.Marshal(tok)
		args = append(args, string(quoted))
	}
	return strings.Join(args, ", ")
}

// ParseFloat also accepts "Inf", "NaN" and hex floats, none of which are
// valid literals in the target languages.
func isPlainNumber(tok string) bool {
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}
