// Package input resolves the text to speak from an argument, a file, standard
// input or the clipboard.
package input

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmptyText is returned when the resolved text has nothing to speak.
var ErrEmptyText = errors.New("no text to speak")

// Origin tells where text came from.
type Origin string

const (
	OriginLiteral   Origin = "literal"
	OriginFile      Origin = "file"
	OriginStdin     Origin = "stdin"
	OriginClipboard Origin = "clipboard"
)

// Options controls Resolve.
type Options struct {
	// Markdown forces markdown extraction. Files named *.md or *.markdown
	// are always treated as markdown.
	Markdown bool
	// Clipboard reads the system clipboard and ignores the argument.
	Clipboard bool
	// Stdin is read when the argument is "-" or empty. Nil disables it.
	Stdin io.Reader
}

// Text is resolved input.
type Text struct {
	Content string
	Origin  Origin
	// Path is set for file input.
	Path string
}

// readClipboard is replaced in tests.
var readClipboard = clipboard.ReadAll

// Resolve turns arg into text. If arg names a readable file its contents are
// used, otherwise arg itself is the text.
func Resolve(arg string, opts Options) (Text, error) {
	var (
		t   Text
		err error
	)
	switch {
	case opts.Clipboard:
		t.Origin = OriginClipboard
		t.Content, err = readClipboard()
		if err != nil {
			return Text{}, fmt.Errorf("read clipboard: %w", err)
		}
	case (arg == "-" || arg == "") && opts.Stdin != nil:
		t.Origin = OriginStdin
		t.Content, err = decode(opts.Stdin)
		if err != nil {
			return Text{}, fmt.Errorf("read stdin: %w", err)
		}
	default:
		t, err = resolveArg(arg)
		if err != nil {
			return Text{}, err
		}
	}

	if opts.Markdown || isMarkdownFile(t.Path) {
		t.Content = Markdown(t.Content)
	}
	if strings.TrimSpace(t.Content) == "" {
		return Text{}, ErrEmptyText
	}
	return t, nil
}

func resolveArg(arg string) (Text, error) {
	path, err := homedir.Expand(arg)
	if err != nil {
		path = arg
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Text{Content: arg, Origin: OriginLiteral}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Text{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	content, err := decode(f)
	if err != nil {
		return Text{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Text{Content: content, Origin: OriginFile, Path: path}, nil
}

// decode reads UTF-8 text. A byte order mark is stripped, and UTF-16 input
// with a BOM is converted. Invalid sequences become U+FFFD.
func decode(r io.Reader) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isMarkdownFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
