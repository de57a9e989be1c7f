package input

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveLiteral(t *testing.T) {
	got, err := Resolve("Hello world. This is a test.", Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Origin != OriginLiteral || got.Content != "Hello world. This is a test." {
		t.Errorf("Resolve() = %+v", got)
	}
}

func TestResolveFile(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"plain utf-8", []byte("Hello from a file."), "Hello from a file."},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, []byte("你好。")...), "你好。"},
		{"utf-16le bom", []byte{0xFF, 0xFE, 'H', 0, 'i', 0}, "Hi"},
		{"invalid byte", []byte{'a', 0xff, 'b'}, "a�b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "speech.txt", tt.data)
			got, err := Resolve(path, Options{})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Origin != OriginFile || got.Path != path {
				t.Errorf("Origin/Path = %s/%s", got.Origin, got.Path)
			}
			if got.Content != tt.want {
				t.Errorf("Content = %q, want %q", got.Content, tt.want)
			}
		})
	}
}

func TestResolveMissingPathIsLiteral(t *testing.T) {
	arg := filepath.Join(t.TempDir(), "nope.txt")
	got, err := Resolve(arg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Origin != OriginLiteral || got.Content != arg {
		t.Errorf("Resolve() = %+v, want the argument as literal text", got)
	}
}

func TestResolveDirectoryIsLiteral(t *testing.T) {
	dir := t.TempDir()
	got, err := Resolve(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Origin != OriginLiteral {
		t.Errorf("Origin = %s, want literal", got.Origin)
	}
}

func TestResolveStdin(t *testing.T) {
	for _, arg := range []string{"-", ""} {
		got, err := Resolve(arg, Options{Stdin: strings.NewReader("piped text")})
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", arg, err)
		}
		if got.Origin != OriginStdin || got.Content != "piped text" {
			t.Errorf("Resolve(%q) = %+v", arg, got)
		}
	}
}

func TestResolveClipboard(t *testing.T) {
	orig := readClipboard
	t.Cleanup(func() { readClipboard = orig })

	readClipboard = func() (string, error) { return "copied text", nil }
	got, err := Resolve("ignored", Options{Clipboard: true})
	if err != nil {
		t.Fatal(err)
	}
	if got.Origin != OriginClipboard || got.Content != "copied text" {
		t.Errorf("Resolve() = %+v", got)
	}

	readClipboard = func() (string, error) { return "", errors.New("no clipboard utility") }
	if _, err := Resolve("", Options{Clipboard: true}); err == nil {
		t.Error("clipboard failure should be reported")
	}
}

func TestResolveEmpty(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		opts Options
	}{
		{"empty literal", "", Options{}},
		{"whitespace literal", " \n\t ", Options{}},
		{"empty stdin", "-", Options{Stdin: strings.NewReader("  ")}},
		{"markdown with only code", "```\ncode\n```", Options{Markdown: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resolve(tt.arg, tt.opts); !errors.Is(err, ErrEmptyText) {
				t.Errorf("Resolve() error = %v, want ErrEmptyText", err)
			}
		})
	}
}

func TestResolveMarkdownFile(t *testing.T) {
	path := writeFile(t, "notes.md", []byte("# Title\n\nSome *bold* text\n"))
	got, err := Resolve(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "Title. Some bold text." {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"heading and paragraph", "# Intro\n\nHello there!", "Intro. Hello there!"},
		{"code block skipped", "Before.\n\n```go\nfmt.Println()\n```\n\nAfter.", "Before. After."},
		{"link keeps text", "See [the docs](https://example.com) now", "See the docs now."},
		{"inline code kept", "Run `make` first.", "Run make first."},
		{"list items", "- one\n- two\n", "one. two."},
		{"soft line break", "first line\nsecond line", "first line second line."},
		{"cjk paragraph", "你好世界", "你好世界。"},
		{"thematic break", "A.\n\n---\n\nB.", "A. B."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Markdown(tt.in); got != tt.want {
				t.Errorf("Markdown() = %q, want %q", got, tt.want)
			}
		})
	}
}
