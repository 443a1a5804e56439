// Package report turns a decoded message body into chat-ready text: HTML
// markup becomes lightweight text markers, recognized register reports get
// re-laid-out, and long output is split into bounded chunks.
package report

import (
	"regexp"
	"strings"
)

// Substitution order matters: line breaks must be in place before bold
// markers are rewritten, and all markers must exist before the catch-all
// tag strip runs.
var (
	reCaption   = regexp.MustCompile(`(?i)<caption[^>]*>(.*?)</caption>`)
	reTrOpen    = regexp.MustCompile(`(?i)<tr[^>]*>`)
	reTrClose   = regexp.MustCompile(`(?i)</tr>`)
	reTdOpen    = regexp.MustCompile(`(?i)<td[^>]*>`)
	reTdClose   = regexp.MustCompile(`(?i)</td>`)
	reThOpen    = regexp.MustCompile(`(?i)<th[^>]*>`)
	reThClose   = regexp.MustCompile(`(?i)</th>`)
	reHeadOpen  = regexp.MustCompile(`(?i)<h[1-6][^>]*>`)
	reHeadClose = regexp.MustCompile(`(?i)</h[1-6]>`)
	rePOpen     = regexp.MustCompile(`(?i)<p[^>]*>`)
	rePClose    = regexp.MustCompile(`(?i)</p>`)
	reBr        = regexp.MustCompile(`(?i)<br[^>]*/?>`)
	reBoldOpen  = regexp.MustCompile(`(?i)<b[^>]*>`)
	reBoldClose = regexp.MustCompile(`(?i)</b>`)
	reFontColor = regexp.MustCompile(`(?i)<font[^>]*color[^>]*>`)
	reFontClose = regexp.MustCompile(`(?i)</font>`)
	reAnyTag    = regexp.MustCompile(`<[^>]+>`)

	reSpaceRuns = regexp.MustCompile(` +`)
	reBlankRuns = regexp.MustCompile(`\n\s*\n`)
	reDoubled   = regexp.MustCompile(` *\| *\|`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// Clean converts the markup in a message body to readable text: table
// captions and headings become bold lines, table cells become
// pipe-delimited columns, remaining tags are stripped and common entities
// decoded. When the body carries a recognized register report it is
// additionally re-laid-out by FormatSampo.
func Clean(body string) string {
	if body == "" {
		return ""
	}

	t := body

	// Tables: captions to headings, rows to lines, cells to pipe columns.
	t = reCaption.ReplaceAllString(t, "\n**$1**\n")
	t = reTrOpen.ReplaceAllString(t, "\n")
	t = reTrClose.ReplaceAllString(t, "")
	t = reTdOpen.ReplaceAllString(t, " ")
	t = reTdClose.ReplaceAllString(t, " |")
	t = reThOpen.ReplaceAllString(t, " **")
	t = reThClose.ReplaceAllString(t, "** |")

	// Headings, paragraphs, line breaks.
	t = reHeadOpen.ReplaceAllString(t, "\n**")
	t = reHeadClose.ReplaceAllString(t, "**\n")
	t = rePOpen.ReplaceAllString(t, "\n")
	t = rePClose.ReplaceAllString(t, "\n")
	t = reBr.ReplaceAllString(t, "\n")

	// Inline emphasis.
	t = reBoldOpen.ReplaceAllString(t, "**")
	t = reBoldClose.ReplaceAllString(t, "**")
	t = reFontColor.ReplaceAllString(t, "*")
	t = reFontClose.ReplaceAllString(t, "*")

	// Whatever markup is left goes away unconditionally.
	t = reAnyTag.ReplaceAllString(t, "")

	t = entityReplacer.Replace(t)

	t = reSpaceRuns.ReplaceAllString(t, " ")
	t = reBlankRuns.ReplaceAllString(t, "\n")
	t = reDoubled.ReplaceAllString(t, " |")

	return strings.TrimSpace(FormatSampo(t))
}
