package searchdata

import (
	"crypto/md5"
	"encoding/hex"
	"html"
	"strings"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// Key derives the search key of a label.
// ASCII letters and digits are lowercased and kept, every other byte becomes "_" plus two hex digits.
// Example: "padding_size" -> "padding_5fsize"
func Key(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		default:
			b.WriteByte('_')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

// LabelKey is the key of a stored label. Labels are kept markup-escaped while
// keys come from the raw symbol name, so the label is unescaped first.
func LabelKey(label string) string {
	return Key(html.UnescapeString(label))
}

// QueryKey is the key prefix a typed query is matched against, as the search widget computes it
func QueryKey(query string) string {
	return Key(query)
}

// labelBucket is the bucket character of a stored, markup-escaped label
func labelBucket(label string) rune {
	return BucketChar(html.UnescapeString(label))
}

// BucketChar returns the character a label is sharded under: its first rune, ASCII-lowercased.
// Returns 0 for an empty label.
func BucketChar(label string) rune {
	if label == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(label)
	if r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	return r
}

// BucketKey is the key prefix shared by every entry in the shard of char r
func BucketKey(r rune) string {
	return Key(string(r))
}

var fileNameEscapes = map[rune]string{
	'_': "__", ':': "_1", '/': "_2", '<': "_3", '>': "_4", '*': "_5", '&': "_6",
	'|': "_7", '.': "_8", '!': "_9", ',': "_00", ' ': "_01", '{': "_02", '}': "_03",
	'?': "_04", '^': "_05", '%': "_06", '(': "_07", ')': "_08", '+': "_09", '=': "_0a",
	'$': "_0b", '\\': "_0c", '@': "_0d", ']': "_0e", '[': "_0f", '#': "_0g",
}

// EscapeFileName maps a qualified name onto the page-name alphabet.
// Example: "boost::lockfree::spsc_queue" -> "boost_1_1lockfree_1_1spsc__queue"
func EscapeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name) + len(name)/2)
	for _, r := range name {
		if esc, ok := fileNameEscapes[r]; ok {
			b.WriteString(esc)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DocumentName returns the HTML page documenting a compound.
// Example: (class, "XBot::MatLogger2") -> "classXBot_1_1MatLogger2.html"
func DocumentName(kind Kind, qualifiedName string) string {
	switch kind {
	case KindFile, KindPage:
		return EscapeFileName(qualifiedName) + ".html"
	case KindGroup:
		return EscapeFileName("group_"+qualifiedName) + ".html"
	default:
		return string(kind) + EscapeFileName(qualifiedName) + ".html"
	}
}

// MemberAnchor derives a stable anchor for a member from its qualified name and arguments
func MemberAnchor(qualifiedName, args string) string {
	sum := md5.Sum([]byte(qualifiedName + args))
	return "a" + hex.EncodeToString(sum[:])
}

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeMarkup escapes a display string the way labels are stored in shards
func EscapeMarkup(s string) string {
	return markupEscaper.Replace(s)
}
