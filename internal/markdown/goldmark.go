// Package markdown converts Markdown text to HTML with goldmark.
package markdown

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"

	"md2html/internal/config"
)

var extensionRegistry = map[string]goldmark.Extender{
	"gfm":           extension.GFM,
	"table":         extension.Table,
	"strikethrough": extension.Strikethrough,
	"linkify":       extension.Linkify,
	"tasklist":      extension.TaskList,
	"definition":    extension.DefinitionList,
	"footnote":      extension.Footnote,
}

var extensionAliases = map[string]string{
	"tables":   "table",
	"autolink": "linkify",
}

var defaultExtensions = []string{"table", "strikethrough", "linkify"}

// Converter renders Markdown to HTML. A single instance is safe for
// concurrent use.
type Converter struct {
	engine      goldmark.Markdown
	policy      *bluemonday.Policy
	fingerprint string
}

// New builds a Converter from the given options.
func New(opts config.Markdown) *Converter {
	names := extensionNames(opts.Extensions)

	exts := make([]goldmark.Extender, 0, len(names))
	for _, name := range names {
		exts = append(exts, extensionRegistry[name])
	}

	var parserOptions []parser.Option
	if opts.HeadingIDs {
		parserOptions = append(parserOptions, parser.WithAutoHeadingID())
	}

	var rendererOptions []renderer.Option
	if opts.HardWraps {
		rendererOptions = append(rendererOptions, html.WithHardWraps())
	}
	if opts.XHTML {
		rendererOptions = append(rendererOptions, html.WithXHTML())
	}
	if opts.UnsafeHTML {
		rendererOptions = append(rendererOptions, html.WithUnsafe())
	}

	conv := &Converter{
		engine: goldmark.New(
			goldmark.WithExtensions(exts...),
			goldmark.WithParserOptions(parserOptions...),
			goldmark.WithRendererOptions(rendererOptions...),
		),
		fingerprint: fmt.Sprintf("ext=%s;hard_wraps=%t;unsafe=%t;ids=%t;xhtml=%t;sanitize=%t",
			strings.Join(names, ","), opts.HardWraps, opts.UnsafeHTML, opts.HeadingIDs, opts.XHTML, opts.Sanitize),
	}
	if opts.Sanitize {
		conv.policy = bluemonday.UGCPolicy()
	}
	return conv
}

// Render converts src to HTML. Leading and trailing newlines are trimmed,
// so a single heading renders as "<h1>Title</h1>" and empty input as "".
func (c *Converter) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := c.engine.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	out := buf.Bytes()
	if c.policy != nil {
		out = c.policy.SanitizeBytes(out)
	}
	return string(bytes.Trim(out, "\n")), nil
}

// Fingerprint identifies the options the converter was built with.
func (c *Converter) Fingerprint() string {
	return c.fingerprint
}

// extensionNames normalizes, dedupes and sorts the configured extension
// names, dropping unknown ones.
func extensionNames(names []string) []string {
	if len(names) == 0 {
		names = defaultExtensions
	}

	seen := map[string]struct{}{}
	var out []string
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if alias, ok := extensionAliases[key]; ok {
			key = alias
		}
		if _, ok := extensionRegistry[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
