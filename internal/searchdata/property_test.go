package searchdata_test

import (
	"regexp"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

var keyAlphabet = regexp.MustCompile(`^[a-z0-9_]*$`)

func TestKey_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.String().Draw(t, "a")
		b := rapid.String().Draw(t, "b")

		key := searchdata.Key(a)
		if !keyAlphabet.MatchString(key) {
			t.Fatalf("Key(%q) = %q contains characters outside [a-z0-9_]", a, key)
		}
		if got := searchdata.Key(a + b); got != key+searchdata.Key(b) {
			t.Fatalf("Key is not a homomorphism: Key(%q+%q) = %q", a, b, got)
		}
	})
}

func occurrenceGen() *rapid.Generator[searchdata.Occurrence] {
	return rapid.Custom(func(t *rapid.T) searchdata.Occurrence {
		return searchdata.Occurrence{
			URL:    rapid.StringMatching(`\.\./[A-Za-z0-9_]{1,20}\.html`).Draw(t, "url"),
			Anchor: rapid.StringMatching(`(a[0-9a-f]{8})?`).Draw(t, "anchor"),
			Local:  rapid.Bool().Draw(t, "local"),
			Scope:  rapid.String().Draw(t, "scope"),
		}
	})
}

func TestMarshal_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		labels := rapid.SliceOf(rapid.StringN(1, 16, -1)).Draw(t, "labels")

		entries := make([]searchdata.SearchEntry, 0, len(labels))
		for _, label := range labels {
			entries = append(entries, searchdata.SearchEntry{
				Key:         searchdata.Key(label),
				Label:       label,
				Occurrences: rapid.SliceOfN(occurrenceGen(), 1, 4).Draw(t, "occurrences"),
			})
		}

		data := searchdata.Marshal(entries)
		decoded, err := searchdata.Unmarshal(data)
		if err != nil {
			t.Fatalf("Unmarshal(Marshal()) error = %v\n%s", err, data)
		}
		if len(decoded) != len(entries) {
			t.Fatalf("decoded %d entries, want %d", len(decoded), len(entries))
		}
		for i := range entries {
			if decoded[i].Key != entries[i].Key || decoded[i].Label != entries[i].Label {
				t.Fatalf("entry %d = %q/%q, want %q/%q", i, decoded[i].Key, decoded[i].Label, entries[i].Key, entries[i].Label)
			}
			for j, occ := range entries[i].Occurrences {
				if decoded[i].Occurrences[j] != occ {
					t.Fatalf("entry %d occurrence %d = %+v, want %+v", i, j, decoded[i].Occurrences[j], occ)
				}
			}
		}
		if again := searchdata.Marshal(decoded); string(again) != string(data) {
			t.Fatalf("second encoding differs")
		}
	})
}

func TestBuild_Properties(t *testing.T) {
	nameGen := rapid.StringMatching(`[A-Za-z_][A-Za-z0-9_]{0,12}`)
	kindGen := rapid.SampledFrom([]searchdata.Kind{
		searchdata.KindClass, searchdata.KindFunction, searchdata.KindVariable, searchdata.KindTypedef,
	})

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		symbols := make([]searchdata.Symbol, 0, n)
		for i := 0; i < n; i++ {
			symbols = append(symbols, searchdata.Symbol{
				Name:  nameGen.Draw(t, "name"),
				Kind:  kindGen.Draw(t, "kind"),
				Scope: rapid.SampledFrom([]string{"XBot", "XBot::MatLogger2", "boost::lockfree"}).Draw(t, "scope"),
			})
		}

		entries, err := searchdata.Build(symbols)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		total := 0
		for _, e := range entries {
			total += len(e.Occurrences)
			if e.Key != searchdata.LabelKey(e.Label) {
				t.Fatalf("key %q does not match label %q", e.Key, e.Label)
			}
		}
		if total != n {
			t.Fatalf("%d occurrences for %d symbols", total, n)
		}
		if !sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key }) {
			t.Fatalf("entries not sorted by key")
		}

		idx, err := searchdata.BuildIndex(symbols)
		if err != nil {
			t.Fatalf("BuildIndex() error = %v", err)
		}
		if idx.EntryCount() != len(entries) {
			t.Fatalf("index has %d entries in all, Build returned %d", idx.EntryCount(), len(entries))
		}
		for _, shard := range idx.Shards {
			report := searchdata.Report{Findings: searchdata.ValidateEntries(shard.Entries, searchdata.ValidateOptions{Bucket: shard.Char})}
			if !report.Valid() {
				t.Fatalf("shard %s does not validate: %v", shard.FileName(), report.Findings)
			}
		}
	})
}
