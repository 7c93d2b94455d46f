package searchdata

import (
	"fmt"
	"sort"
)

// SectionContent records which bucket characters a section has shards for.
// Number is the section's position in searchdata.js.
type SectionContent struct {
	Number  int
	Section Section
	Chars   []rune
}

// Index is a complete, generated search index: every shard of every non-empty section
type Index struct {
	Sections []SectionContent
	Shards   []Shard
}

// Partition splits the entries of a section into shards by bucket character.
// Characters are numbered in code point order; entry order within a shard is preserved.
func Partition(section string, entries []SearchEntry) []Shard {
	byChar := make(map[rune][]SearchEntry)
	for _, entry := range entries {
		c := labelBucket(entry.Label)
		byChar[c] = append(byChar[c], entry)
	}

	chars := make([]rune, 0, len(byChar))
	for c := range byChar {
		chars = append(chars, c)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	shards := make([]Shard, 0, len(chars))
	for i, c := range chars {
		shards = append(shards, Shard{
			Section: section,
			Index:   i,
			Char:    c,
			Entries: byChar[c],
		})
	}
	return shards
}

// BuildIndex builds every section from the symbols and partitions them into shards.
// Sections without symbols are left out and do not consume a section number.
func BuildIndex(symbols []Symbol) (*Index, error) {
	idx := &Index{}
	for _, section := range Sections {
		entries, err := BuildSection(symbols, section)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", section.Name, err)
		}
		if len(entries) == 0 {
			continue
		}

		shards := Partition(section.Name, entries)
		content := SectionContent{Number: len(idx.Sections), Section: section}
		for _, shard := range shards {
			content.Chars = append(content.Chars, shard.Char)
		}
		idx.Sections = append(idx.Sections, content)
		idx.Shards = append(idx.Shards, shards...)
	}
	return idx, nil
}

// EntryCount returns the number of entries in the "all" section
func (idx *Index) EntryCount() int {
	count := 0
	for _, shard := range idx.Shards {
		if shard.Section == Sections[0].Name {
			count += len(shard.Entries)
		}
	}
	return count
}

// ShardFor finds the shard of a section holding bucket char c
func (idx *Index) ShardFor(section string, c rune) (Shard, bool) {
	for _, shard := range idx.Shards {
		if shard.Section == section && shard.Char == c {
			return shard, true
		}
	}
	return Shard{}, false
}
