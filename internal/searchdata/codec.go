package searchdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ErrShape is returned when a shard parses as JavaScript but not as search data
var ErrShape = errors.New("unexpected search data shape")

var jsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
)

// Marshal renders entries as a shard file:
//
//	var searchData=
//	[
//	  ['key',['Label',['url#anchor',1,'scope']]],
//	  ...
//	];
func Marshal(entries []SearchEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString("var " + VarName + "=\n[\n")
	for i, entry := range entries {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("  ['")
		buf.WriteString(jsEscaper.Replace(entry.Key))
		buf.WriteString("',['")
		buf.WriteString(jsEscaper.Replace(entry.Label))
		buf.WriteString("'")
		for _, occ := range entry.Occurrences {
			buf.WriteString(",['")
			buf.WriteString(jsEscaper.Replace(occ.Href()))
			if occ.Local {
				buf.WriteString("',1,'")
			} else {
				buf.WriteString("',0,'")
			}
			buf.WriteString(jsEscaper.Replace(occ.Scope))
			buf.WriteString("']")
		}
		buf.WriteString("]]")
	}
	if len(entries) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("];")
	return buf.Bytes()
}

// Encode writes a shard file to w
func Encode(w io.Writer, entries []SearchEntry) error {
	_, err := w.Write(Marshal(entries))
	return err
}

// Unmarshal parses a shard file.
// Besides the canonical form it accepts occurrences without the frame flag
// ([url, scope]) and occurrence lists nested in their own array.
func Unmarshal(data []byte) ([]SearchEntry, error) {
	p, err := newParser(data)
	if err != nil {
		return nil, err
	}
	bindings, err := p.statements()
	if err != nil {
		return nil, err
	}

	raw, ok := bindings[VarName]
	if !ok {
		return nil, fmt.Errorf("%w: no %q binding", ErrShape, VarName)
	}
	rows, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an array", ErrShape, VarName)
	}

	entries := make([]SearchEntry, 0, len(rows))
	for i, row := range rows {
		entry, err := entryFromValue(row)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Decode reads and parses a shard file from r
func Decode(r io.Reader) ([]SearchEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read search data: %w", err)
	}
	return Unmarshal(data)
}

func entryFromValue(v any) (SearchEntry, error) {
	row, ok := v.([]any)
	if !ok || len(row) != 2 {
		return SearchEntry{}, fmt.Errorf("%w: entry must be [key, [label, occurrences...]]", ErrShape)
	}
	key, ok := row[0].(string)
	if !ok {
		return SearchEntry{}, fmt.Errorf("%w: key is not a string", ErrShape)
	}
	body, ok := row[1].([]any)
	if !ok || len(body) < 1 {
		return SearchEntry{}, fmt.Errorf("%w: %q: body must be [label, occurrences...]", ErrShape, key)
	}
	label, ok := body[0].(string)
	if !ok {
		return SearchEntry{}, fmt.Errorf("%w: %q: label is not a string", ErrShape, key)
	}

	rawOccs := body[1:]
	// Nested form: [label, [[occ], [occ]]]
	if len(rawOccs) == 1 {
		if inner, ok := rawOccs[0].([]any); ok && len(inner) > 0 {
			if _, nested := inner[0].([]any); nested {
				rawOccs = inner
			}
		}
	}

	entry := SearchEntry{Key: key, Label: label, Occurrences: make([]Occurrence, 0, len(rawOccs))}
	for j, raw := range rawOccs {
		occ, err := occurrenceFromValue(raw)
		if err != nil {
			return SearchEntry{}, fmt.Errorf("%q occurrence %d: %w", key, j, err)
		}
		entry.Occurrences = append(entry.Occurrences, occ)
	}
	return entry, nil
}

func occurrenceFromValue(v any) (Occurrence, error) {
	fields, ok := v.([]any)
	if !ok {
		return Occurrence{}, fmt.Errorf("%w: occurrence is not an array", ErrShape)
	}

	var href, scope string
	local := true
	switch len(fields) {
	case 2:
		h, ok1 := fields[0].(string)
		s, ok2 := fields[1].(string)
		if !ok1 || !ok2 {
			return Occurrence{}, fmt.Errorf("%w: occurrence must be [url, scope]", ErrShape)
		}
		href, scope = h, s
	case 3:
		h, ok1 := fields[0].(string)
		flag, ok2 := fields[1].(int64)
		s, ok3 := fields[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return Occurrence{}, fmt.Errorf("%w: occurrence must be [url, flag, scope]", ErrShape)
		}
		href, local, scope = h, flag != 0, s
	default:
		return Occurrence{}, fmt.Errorf("%w: occurrence has %d fields", ErrShape, len(fields))
	}

	url, anchor := SplitHref(href)
	return Occurrence{URL: url, Anchor: anchor, Local: local, Scope: scope}, nil
}

const (
	sectionsVar = "indexSectionsWithContent"
	namesVar    = "indexSectionNames"
	labelsVar   = "indexSectionLabels"
)

// MarshalSectionIndex renders searchdata.js, the table the widget uses to
// find which shard holds a query's first character.
func MarshalSectionIndex(sections []SectionContent) []byte {
	var buf bytes.Buffer
	writeTable := func(name string, value func(SectionContent) string) {
		buf.WriteString("var " + name + " =\n{\n")
		for i, sc := range sections {
			buf.WriteString("  " + strconv.Itoa(sc.Number) + ": " + strconv.Quote(value(sc)))
			if i < len(sections)-1 {
				buf.WriteString(",")
			}
			buf.WriteString("\n")
		}
		buf.WriteString("};\n\n")
	}

	writeTable(sectionsVar, func(sc SectionContent) string { return string(sc.Chars) })
	writeTable(namesVar, func(sc SectionContent) string { return sc.Section.Name })
	writeTable(labelsVar, func(sc SectionContent) string { return sc.Section.Label })
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// UnmarshalSectionIndex parses searchdata.js back into section contents ordered by number
func UnmarshalSectionIndex(data []byte) ([]SectionContent, error) {
	p, err := newParser(data)
	if err != nil {
		return nil, err
	}
	bindings, err := p.statements()
	if err != nil {
		return nil, err
	}

	tables := make(map[string]map[string]any, 3)
	for _, name := range []string{sectionsVar, namesVar, labelsVar} {
		raw, ok := bindings[name]
		if !ok {
			return nil, fmt.Errorf("%w: no %q binding", ErrShape, name)
		}
		table, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an object", ErrShape, name)
		}
		tables[name] = table
	}

	sections := make([]SectionContent, 0, len(tables[sectionsVar]))
	for key, raw := range tables[sectionsVar] {
		number, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: section number %q", ErrShape, key)
		}
		chars, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: section %d content is not a string", ErrShape, number)
		}
		name, _ := tables[namesVar][key].(string)
		if name == "" {
			return nil, fmt.Errorf("%w: section %d has no name", ErrShape, number)
		}
		label, _ := tables[labelsVar][key].(string)

		section, ok := SectionByName(name)
		if !ok {
			section = Section{Name: name, Label: label}
		}
		section.Label = label
		sections = append(sections, SectionContent{Number: number, Section: section, Chars: []rune(chars)})
	}

	sort.Slice(sections, func(i, j int) bool { return sections[i].Number < sections[j].Number })
	return sections, nil
}
