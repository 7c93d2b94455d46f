package searchdata

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyLabel is returned for symbols without a name
	ErrEmptyLabel = errors.New("symbol has an empty name")

	// ErrNoDocument is returned when no page can be derived for a symbol
	ErrNoDocument = errors.New("symbol has no document: set scope, file or document")

	// ErrUnknownKind is returned for symbols whose kind is not in Kinds
	ErrUnknownKind = errors.New("unknown symbol kind")
)

type keyedSymbol struct {
	key   string
	label string
	sym   Symbol
}

// Build turns symbols into search entries, sorted by key.
// Consecutive symbols sharing a key are grouped into one entry, except that
// compounds never share an entry with members (a class and its constructor
// produce two entries with the same key).
func Build(symbols []Symbol) ([]SearchEntry, error) {
	keyed := make([]keyedSymbol, 0, len(symbols))
	for i, sym := range symbols {
		if sym.Name == "" {
			return nil, fmt.Errorf("symbol %d: %w", i, ErrEmptyLabel)
		}
		if !sym.Kind.Valid() {
			return nil, fmt.Errorf("symbol %q: %w: %q", sym.Name, ErrUnknownKind, sym.Kind)
		}
		keyed = append(keyed, keyedSymbol{key: Key(sym.Name), label: EscapeMarkup(sym.Name), sym: sym})
	}

	// Stable: overloads keep manifest order
	sort.SliceStable(keyed, func(i, j int) bool {
		if keyed[i].key != keyed[j].key {
			return keyed[i].key < keyed[j].key
		}
		return keyed[i].sym.Kind.IsCompound() && !keyed[j].sym.Kind.IsCompound()
	})

	var entries []SearchEntry
	for start := 0; start < len(keyed); {
		end := start + 1
		for end < len(keyed) &&
			keyed[end].key == keyed[start].key &&
			keyed[end].sym.Kind.IsCompound() == keyed[start].sym.Kind.IsCompound() {
			end++
		}

		group := keyed[start:end]
		entry := SearchEntry{
			Key:         group[0].key,
			Label:       group[0].label,
			Occurrences: make([]Occurrence, 0, len(group)),
		}
		for _, ks := range group {
			occ, err := occurrenceFor(ks.sym, len(group) > 1)
			if err != nil {
				return nil, fmt.Errorf("symbol %q: %w", ks.sym.QualifiedName(), err)
			}
			entry.Occurrences = append(entry.Occurrences, occ)
		}
		entries = append(entries, entry)
		start = end
	}

	return entries, nil
}

// BuildSection builds the entries of one section from the full symbol list
func BuildSection(symbols []Symbol, section Section) ([]SearchEntry, error) {
	filtered := make([]Symbol, 0, len(symbols))
	for _, sym := range symbols {
		if section.Includes(sym.Kind) {
			filtered = append(filtered, sym)
		}
	}
	return Build(filtered)
}

func occurrenceFor(sym Symbol, multiple bool) (Occurrence, error) {
	doc, err := documentFor(sym)
	if err != nil {
		return Occurrence{}, err
	}

	anchor := sym.Anchor
	if anchor == "" && !sym.Kind.IsCompound() {
		anchor = MemberAnchor(sym.QualifiedName(), sym.Args)
	}

	return Occurrence{
		URL:    RelativePrefix + doc,
		Anchor: anchor,
		Local:  !sym.External,
		Scope:  EscapeMarkup(scopeLabel(sym, multiple)),
	}, nil
}

func documentFor(sym Symbol) (string, error) {
	switch {
	case sym.Document != "":
		return sym.Document, nil
	case sym.Kind.IsCompound():
		return DocumentName(sym.Kind, sym.QualifiedName()), nil
	case sym.Scope != "":
		return DocumentName(sym.scopeKind(), sym.Scope), nil
	case sym.File != "":
		return DocumentName(KindFile, sym.File), nil
	}
	return "", ErrNoDocument
}

// scopeLabel is the text shown next to an occurrence.
// A lone occurrence only needs its enclosing scope; grouped occurrences are
// told apart by their full qualified name and arguments.
func scopeLabel(sym Symbol, multiple bool) string {
	if multiple {
		if sym.Kind.IsCompound() {
			return sym.QualifiedName()
		}
		args := sym.Args
		if args == "" {
			args = "()"
		}
		return sym.QualifiedName() + args
	}

	switch {
	case sym.Scope != "":
		return sym.Scope
	case sym.File != "" && !sym.Kind.IsCompound():
		return sym.File
	}
	return sym.Name
}
