package runner

import (
	"strings"
	"testing"
)

func TestResolveIsCaseInsensitiveAndChecksAliases(t *testing.T) {
	r := NewDefaultRegistry()

	cases := map[string]string{
		"javascript": "javascript",
		"JavaScript": "javascript",
		"js":         "javascript",
		"NODE":       "javascript",
		"cpp":        "cpp",
		"C++":        "cpp",
		" py ":       "python",
		"python3":    "python",
	}
	for input, want := range cases {
		lang, ok := r.Resolve(input)
		if !ok {
			t.Fatalf("Resolve(%q) not found", input)
		}
		if lang.Name != want {
			t.Fatalf("Resolve(%q) = %q, want %q", input, lang.Name, want)
		}
	}

	if _, ok := r.Resolve("brainfuck"); ok {
		t.Fatalf("expected unknown language to be unresolved")
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewDefaultRegistry()

	if err := r.Register(JavaScript()); err == nil {
		t.Fatalf("expected duplicate name to fail")
	}
	err := r.Register(Language{Name: "typescript", Aliases: []string{"JS"}, Wrap: wrapJavaScript})
	if err == nil {
		t.Fatalf("expected alias collision to fail")
	}
	if err := r.Register(Language{Name: "go"}); err == nil {
		t.Fatalf("expected missing wrap func to fail")
	}
}

func TestRegisterCustomLanguage(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Language{
		Name:            "Ruby",
		Aliases:         []string{"rb"},
		SandboxLanguage: "ruby",
		FileExtension:   "rb",
		Wrap:            func(code, _ string) string { return code },
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	lang, ok := r.Resolve("RB")
	if !ok || lang.Name != "ruby" {
		t.Fatalf("Resolve(RB) = %+v, %v", lang, ok)
	}
	if lang.FileName() != "main.rb" {
		t.Fatalf("FileName = %q", lang.FileName())
	}
	if got := r.Names(); len(got) != 1 || got[0] != "ruby" {
		t.Fatalf("Names = %v", got)
	}
}

func TestNamesSorted(t *testing.T) {
	got := strings.Join(NewDefaultRegistry().Names(), ",")
	if got != "cpp,javascript,python" {
		t.Fatalf("Names = %s", got)
	}
}
