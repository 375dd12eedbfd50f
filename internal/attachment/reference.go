package attachment

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	indexedPattern = regexp.MustCompile(`\Aattachment:(\d+)/(\d+)\z`)
	repoPrefix     = regexp.MustCompile(`\A\s*attachment:\d+/`)
)

// Reference is one occurrence of an attachment link in a body of text.
// Link is the raw "attachment:..." target; Tooltip is whatever followed it
// inside the markdown parentheses (for example ` 'octocat'`), kept verbatim.
type Reference struct {
	Link    string
	Tooltip string
}

// Parse builds a Reference from a raw link and optional tooltip.
func Parse(link, tooltip string) Reference {
	return Reference{Link: link, Tooltip: tooltip}
}

// Path resolves the link to its storage path on the Bitbucket Server.
// "attachment:<repo>/<id>" links are sharded by id modulo 256; anything
// else is a hashed path split at its last slash.
func (r Reference) Path() Path {
	if m := indexedPattern.FindStringSubmatch(r.Link); m != nil {
		return Path{Shard: mod256(m[2]), Leaf: m[2]}
	}
	return hashedPath(r.Link)
}

// Filename is the stored filename inside the archive.
func (r Reference) Filename() string {
	return Filename(r.Link)
}

// AssetURL is the archive-internal locator written into attachment records.
// It is independent of where the tar layout puts the file.
func (r Reference) AssetURL() string {
	return "tarball://root/attachments/" + r.Filename()
}

// MarkdownLink renders the parenthesized link target with the original
// tooltip. Pass r.Link to keep the reference unchanged.
func (r Reference) MarkdownLink(target string) string {
	return "(" + target + r.Tooltip + ")"
}

// Path is the (shard, leaf) location of an attachment.
type Path struct {
	Shard string
	Leaf  string
}

// Encode percent-encodes each segment independently for use in a URL path.
func (p Path) Encode() []string {
	return []string{EncodeSegment(p.Shard), EncodeSegment(p.Leaf)}
}

// String joins the encoded segments with "/".
func (p Path) String() string {
	return strings.Join(p.Encode(), "/")
}

func hashedPath(link string) Path {
	trimmed := repoPrefix.ReplaceAllString(link, "")
	// "+" is a legacy form-encoded space. It is replaced before decoding so
	// an encoded "%2B" still decodes to a literal "+".
	trimmed = strings.ReplaceAll(trimmed, "+", " ")
	return splitLast(unescape(trimmed))
}

// splitLast splits at the final "/" without cleaning either half, so dot
// segments survive into the shard and are percent-encoded with it.
func splitLast(decoded string) Path {
	trimmed := strings.TrimRight(decoded, "/")
	if trimmed == "" {
		if decoded == "" {
			return Path{Shard: ".", Leaf: ""}
		}
		return Path{Shard: "/", Leaf: "/"}
	}
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return Path{Shard: ".", Leaf: trimmed}
	}
	shard := strings.TrimRight(trimmed[:i], "/")
	if shard == "" {
		shard = "/"
	}
	return Path{Shard: shard, Leaf: trimmed[i+1:]}
}

// mod256 reduces a decimal digit string modulo 256 without parsing it into
// a fixed-width integer, so arbitrarily long ids cannot overflow.
func mod256(digits string) string {
	r := 0
	for i := 0; i < len(digits); i++ {
		r = (r*10 + int(digits[i]-'0')) % 256
	}
	return strconv.Itoa(r)
}
