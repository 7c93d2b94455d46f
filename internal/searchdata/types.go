package searchdata

import (
	"fmt"
	"strings"
)

// Kind is the documentation kind of a symbol
type Kind string

const (
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindUnion     Kind = "union"
	KindInterface Kind = "interface"
	KindNamespace Kind = "namespace"
	KindFile      Kind = "file"
	KindPage      Kind = "page"
	KindGroup     Kind = "group"
	KindFunction  Kind = "function"
	KindVariable  Kind = "variable"
	KindTypedef   Kind = "typedef"
	KindEnum      Kind = "enum"
	KindEnumValue Kind = "enumvalue"
	KindDefine    Kind = "define"
	KindFriend    Kind = "friend"
	KindProperty  Kind = "property"
)

// Kinds lists every known kind in manifest order
var Kinds = []Kind{
	KindClass, KindStruct, KindUnion, KindInterface, KindNamespace, KindFile,
	KindPage, KindGroup, KindFunction, KindVariable, KindTypedef, KindEnum,
	KindEnumValue, KindDefine, KindFriend, KindProperty,
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsCompound reports whether symbols of this kind own a documentation page
func (k Kind) IsCompound() bool {
	switch k {
	case KindClass, KindStruct, KindUnion, KindInterface, KindNamespace, KindFile, KindPage, KindGroup:
		return true
	}
	return false
}

// Symbol is one documented symbol as listed in a manifest
type Symbol struct {
	Name      string `json:"name" yaml:"name"`
	Kind      Kind   `json:"kind" yaml:"kind"`
	Scope     string `json:"scope,omitempty" yaml:"scope,omitempty"`           // Enclosing class/namespace, e.g. "XBot::VariableBuffer"
	ScopeKind Kind   `json:"scope_kind,omitempty" yaml:"scope_kind,omitempty"` // Kind of Scope, defaults to class
	File      string `json:"file,omitempty" yaml:"file,omitempty"`             // Defining file, used for file-level members
	Args      string `json:"args,omitempty" yaml:"args,omitempty"`             // Argument list of functions, e.g. "(T const &t)"
	Document  string `json:"document,omitempty" yaml:"document,omitempty"`     // Explicit page, overrides derivation
	Anchor    string `json:"anchor,omitempty" yaml:"anchor,omitempty"`         // Explicit anchor, overrides derivation
	External  bool   `json:"external,omitempty" yaml:"external,omitempty"`     // Link points outside this documentation set
}

// QualifiedName returns the scope-qualified name of the symbol
func (s Symbol) QualifiedName() string {
	if s.Scope == "" || s.scopeKind() == KindFile {
		return s.Name
	}
	return s.Scope + "::" + s.Name
}

func (s Symbol) scopeKind() Kind {
	if s.ScopeKind == "" {
		return KindClass
	}
	return s.ScopeKind
}

// Occurrence is a single place a symbol appears in the generated documentation
type Occurrence struct {
	URL    string `json:"url"`              // Relative document URL without fragment
	Anchor string `json:"anchor,omitempty"` // Fragment after '#', empty for whole-page links
	Local  bool   `json:"local"`            // Opens in the same frame; false for external links
	Scope  string `json:"scope"`            // Qualified scope label, may contain markup entities
}

// Href returns the URL with its anchor fragment
func (o Occurrence) Href() string {
	if o.Anchor == "" {
		return o.URL
	}
	return o.URL + "#" + o.Anchor
}

// SplitHref splits a link into document URL and anchor fragment
func SplitHref(href string) (url, anchor string) {
	url, anchor, _ = strings.Cut(href, "#")
	return url, anchor
}

// SearchEntry is one row of a shard: a key, its display label and where it occurs
type SearchEntry struct {
	Key         string       `json:"key"`
	Label       string       `json:"label"`
	Occurrences []Occurrence `json:"occurrences"`
}

// Section is a named category of the search index
type Section struct {
	Name  string
	Label string
	kinds []Kind
}

// Includes reports whether symbols of kind k belong to the section
func (s Section) Includes(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	for _, kind := range s.kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Sections are emitted in this order; the first one holds every symbol
var Sections = []Section{
	{Name: "all", Label: "All"},
	{Name: "classes", Label: "Classes", kinds: []Kind{KindClass, KindStruct, KindUnion, KindInterface}},
	{Name: "namespaces", Label: "Namespaces", kinds: []Kind{KindNamespace}},
	{Name: "files", Label: "Files", kinds: []Kind{KindFile}},
	{Name: "functions", Label: "Functions", kinds: []Kind{KindFunction}},
	{Name: "variables", Label: "Variables", kinds: []Kind{KindVariable, KindProperty}},
	{Name: "typedefs", Label: "Typedefs", kinds: []Kind{KindTypedef}},
	{Name: "enums", Label: "Enumerations", kinds: []Kind{KindEnum}},
	{Name: "enumvalues", Label: "Enumerator", kinds: []Kind{KindEnumValue}},
	{Name: "related", Label: "Friends", kinds: []Kind{KindFriend}},
	{Name: "defines", Label: "Macros", kinds: []Kind{KindDefine}},
	{Name: "groups", Label: "Modules", kinds: []Kind{KindGroup}},
	{Name: "pages", Label: "Pages", kinds: []Kind{KindPage}},
}

// SectionByName looks up a section
func SectionByName(name string) (Section, bool) {
	for _, s := range Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Shard is one file of the index: the entries of a section sharing a bucket character
type Shard struct {
	Section string
	Index   int
	Char    rune
	Entries []SearchEntry
}

// FileName returns the shard file name, e.g. "all_3.js"
func (s Shard) FileName() string {
	return ShardFileName(s.Section, s.Index)
}

// ShardFileName builds the file name for a section and shard index
func ShardFileName(section string, index int) string {
	return fmt.Sprintf("%s_%x.js", section, index)
}

// IsShardFile reports whether name is a shard file of a known section, such as "all_1f.js"
func IsShardFile(name string) bool {
	m := shardFileRegex.FindStringSubmatch(name)
	if m == nil {
		return false
	}
	_, ok := SectionByName(m[1])
	return ok
}
