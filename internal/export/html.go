// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/fieldref/internal/model"
)

// =============================================================================
// STATIC VIEW
// =============================================================================

const indexFile = "index.html"

// maxHeading is the deepest heading level used for nested sections.
const maxHeading = 6

// HTMLRenderer renders a snapshot into a single self-contained page.
// The output has no timestamps or map-ordered data, so the same snapshot
// always renders to the same bytes.
type HTMLRenderer struct {
	title       string
	allowMarkup bool
	policy      *bluemonday.Policy
}

// NewHTMLRenderer creates a renderer. With allowMarkup, text bodies keep the
// inline formatting tags chat clients accept; otherwise bodies are escaped.
func NewHTMLRenderer(title string, allowMarkup bool) *HTMLRenderer {
	if strings.TrimSpace(title) == "" {
		title = "Field Reference"
	}
	return &HTMLRenderer{
		title:       title,
		allowMarkup: allowMarkup,
		policy:      inlineMarkupPolicy(),
	}
}

// inlineMarkupPolicy allows the inline tags used in chat-formatted text.
func inlineMarkupPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote", "br")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^tg-spoiler$`)).OnElements("span")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Render returns the page for snap. media maps content ids to copied asset paths.
func (r *HTMLRenderer) Render(snap *model.Snapshot, media *mediaCopy) []byte {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(r.title)))
	sb.WriteString("    <meta name=\"generator\" content=\"fieldref\">\n")
	sb.WriteString(r.getCSS())
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")
	sb.WriteString("    <div class=\"container\">\n")

	// Header
	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(r.title)))
	sb.WriteString("            <span class=\"offline-badge\">OFFLINE</span>\n")
	sb.WriteString("            <input type=\"search\" id=\"search\" placeholder=\"Search...\" oninput=\"filterContent()\">\n")
	sb.WriteString("        </header>\n")

	roots := snap.Children(nil)

	// Table of contents
	sb.WriteString("        <nav class=\"toc\">\n")
	r.renderTOC(&sb, snap, roots, 3)
	sb.WriteString("        </nav>\n")

	// Sections
	sb.WriteString("        <main id=\"content\">\n")
	if len(roots) == 0 {
		sb.WriteString("            <p class=\"empty\">No sections.</p>\n")
	}
	for _, sec := range roots {
		r.renderSection(&sb, snap, media, sec, 0)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString("            <p>This reference is meant for use without a network connection.</p>\n")
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString(r.getScript())
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String())
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func indent(level int) string {
	return strings.Repeat("    ", level)
}

func sectionAnchor(id int64) string {
	return fmt.Sprintf("section-%d", id)
}

func sectionLabel(sec model.Section) string {
	return html.EscapeString(sec.DisplayIcon() + " " + sec.Title)
}

// renderTOC writes a nested list of links to every section.
func (r *HTMLRenderer) renderTOC(sb *strings.Builder, snap *model.Snapshot, sections []model.Section, level int) {
	if len(sections) == 0 {
		return
	}
	sb.WriteString(indent(level) + "<ul>\n")
	for _, sec := range sections {
		sb.WriteString(fmt.Sprintf("%s<li><a href=\"#%s\">%s</a>", indent(level+1), sectionAnchor(sec.ID), sectionLabel(sec)))
		if children := snap.Children(&sec.ID); len(children) > 0 {
			sb.WriteString("\n")
			r.renderTOC(sb, snap, children, level+2)
			sb.WriteString(indent(level + 1))
		}
		sb.WriteString("</li>\n")
	}
	sb.WriteString(indent(level) + "</ul>\n")
}

// renderSection writes a section block, its content in order, then its
// children one level deeper.
func (r *HTMLRenderer) renderSection(sb *strings.Builder, snap *model.Snapshot, media *mediaCopy, sec model.Section, depth int) {
	level := 3 + depth
	heading := depth + 2
	if heading > maxHeading {
		heading = maxHeading
	}

	sb.WriteString(fmt.Sprintf("%s<section class=\"section depth-%d\" id=\"%s\">\n", indent(level), depth, sectionAnchor(sec.ID)))
	sb.WriteString(fmt.Sprintf("%s<h%d>%s</h%d>\n", indent(level+1), heading, sectionLabel(sec), heading))
	if sec.Description != "" {
		sb.WriteString(fmt.Sprintf("%s<p class=\"description\">%s</p>\n", indent(level+1), html.EscapeString(sec.Description)))
	}

	for _, item := range snap.ContentOf(sec.ID) {
		r.renderItem(sb, media, item, level+1)
	}
	for _, child := range snap.Children(&sec.ID) {
		r.renderSection(sb, snap, media, child, depth+1)
	}

	sb.WriteString(indent(level) + "</section>\n")
}

// renderItem writes one content item according to its kind.
func (r *HTMLRenderer) renderItem(sb *strings.Builder, media *mediaCopy, item model.ContentItem, level int) {
	pad := indent(level + 1)
	sb.WriteString(fmt.Sprintf("%s<div class=\"content-item kind-%s\">\n", indent(level), item.Kind))

	if item.ButtonLabel != "" {
		sb.WriteString(fmt.Sprintf("%s<p class=\"caption\">%s</p>\n", pad, html.EscapeString(item.ButtonLabel)))
	}

	switch {
	case item.Kind == model.KindText:
		sb.WriteString(fmt.Sprintf("%s<div class=\"text\">%s</div>\n", pad, r.formatText(item.Body)))

	case item.Kind.IsMedia():
		rel, ok := media.paths[item.ID]
		if !ok {
			sb.WriteString(pad + "<p class=\"unavailable\">Media unavailable</p>\n")
			break
		}
		src := html.EscapeString(mediaURL(rel))
		alt := html.EscapeString(altText(item))
		switch item.Kind {
		case model.KindImage:
			sb.WriteString(fmt.Sprintf("%s<img src=\"%s\" alt=\"%s\" class=\"media\" loading=\"lazy\">\n", pad, src, alt))
		case model.KindVideo:
			sb.WriteString(fmt.Sprintf("%s<video controls preload=\"metadata\" class=\"media\"><source src=\"%s\"></video>\n", pad, src))
		default:
			sb.WriteString(fmt.Sprintf("%s<a class=\"document\" href=\"%s\" download>%s</a>\n", pad, src, html.EscapeString(path.Base(rel))))
		}
	}

	sb.WriteString(indent(level) + "</div>\n")
}

// formatText renders a text body: sanitized markup or fully escaped text,
// with line breaks kept.
func (r *HTMLRenderer) formatText(body string) string {
	var out string
	if r.allowMarkup {
		out = r.policy.Sanitize(body)
	} else {
		out = html.EscapeString(body)
	}
	out = strings.ReplaceAll(out, "\r\n", "\n")
	return strings.ReplaceAll(out, "\n", "<br>\n")
}

// mediaURL percent-encodes the file name part of a bundle path.
func mediaURL(rel string) string {
	dir, file := path.Split(rel)
	return dir + url.PathEscape(file)
}

func altText(item model.ContentItem) string {
	if item.ButtonLabel != "" {
		return item.ButtonLabel
	}
	return cases.Title(language.English).String(item.Kind.String())
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

// getCSS returns the embedded stylesheet. No external fonts or assets.
func (r *HTMLRenderer) getCSS() string {
	return `    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --accent-blue: #0366d6;
            --accent-red: #d73a49;
            --accent-green: #22863a;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-secondary);
            padding: 16px;
        }

        .container {
            max-width: 900px;
            margin: 0 auto;
            background: var(--bg-primary);
            border-radius: 8px;
            padding: 24px;
        }

        .header h1 {
            color: var(--accent-red);
            font-size: 26px;
            margin-bottom: 8px;
        }

        .offline-badge {
            background: var(--accent-green);
            color: #ffffff;
            padding: 2px 8px;
            border-radius: 3px;
            font-size: 12px;
        }

        #search {
            display: block;
            width: 100%;
            margin: 16px 0;
            padding: 8px 12px;
            font-size: 16px;
            border: 1px solid var(--border-color);
            border-radius: 6px;
        }

        .toc ul {
            list-style: none;
            padding-left: 16px;
        }

        .toc a {
            color: var(--accent-blue);
            text-decoration: none;
        }

        .section {
            margin: 24px 0;
            padding-left: 14px;
            border-left: 4px solid var(--accent-blue);
        }

        .section .section {
            margin-left: 12px;
            border-left-color: var(--border-color);
        }

        .description {
            color: var(--text-muted);
        }

        .content-item {
            background: var(--bg-secondary);
            padding: 12px 14px;
            margin: 10px 0;
            border-radius: 6px;
        }

        .caption {
            font-weight: 600;
            margin-bottom: 6px;
        }

        .media {
            max-width: 100%;
            height: auto;
        }

        .unavailable {
            color: var(--text-muted);
            font-style: italic;
        }

        .hidden {
            display: none;
        }

        .footer {
            margin-top: 40px;
            padding-top: 16px;
            border-top: 1px solid var(--border-color);
            color: var(--text-muted);
            font-size: 14px;
        }
    </style>
`
}

// =============================================================================
// EMBEDDED JAVASCRIPT
// =============================================================================

// getScript returns the inline search filter.
func (r *HTMLRenderer) getScript() string {
	return `    <script>
        function filterContent() {
            var query = document.getElementById('search').value.toLowerCase();
            var items = document.querySelectorAll('.content-item');
            for (var i = 0; i < items.length; i++) {
                var text = items[i].textContent.toLowerCase();
                items[i].classList.toggle('hidden', query !== '' && text.indexOf(query) === -1);
            }
        }
    </script>
`
}
