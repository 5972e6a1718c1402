// Package render converts the agent's Markdown replies into the restricted
// HTML dialect accepted by chat transports.
//
// # Dialect
//
// The output only ever contains these tags:
//
//	<b> <i> <s> <code> <pre> <a href="..."> <blockquote>
//
// Everything else is flattened to text. Headings become bold lines, list
// items get a "• " bullet, tables are laid out as preformatted text and images
// are replaced by an "[Image: alt]" placeholder because the transports cannot
// display them inline.
//
// # Escaping
//
// Text inside <pre>, <code> and href attributes is HTML-escaped. Inline text
// elsewhere is written as-is: the transport's parser only understands the
// fixed tag set, and the agent is trusted not to emit hostile markup.
//
// # Length
//
// Reply renders, substitutes a placeholder for empty output, and truncates
// the final HTML to MaxLength characters. Truncation counts characters, not
// tags, so a cut can land inside a tag; frontends that get a parse error
// from the transport fall back to plain text.
package render
