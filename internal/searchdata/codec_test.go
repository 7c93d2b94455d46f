package searchdata_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doxsearch/mcp-server/internal/searchdata"
)

func TestMarshal_FixtureRoundTrip(t *testing.T) {
	for _, name := range []string{"all_3.js", "all_e.js"} {
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("testdata", name))
			require.NoError(t, err)

			entries, err := searchdata.Unmarshal(data)
			require.NoError(t, err)
			require.NotEmpty(t, entries)

			if got := searchdata.Marshal(entries); !bytes.Equal(got, data) {
				t.Errorf("Marshal(Unmarshal(%s)) differs from the original:\n%s", name, got)
			}
		})
	}
}

func TestUnmarshal_Fixture(t *testing.T) {
	entries := loadFixture(t, "all_e.js")

	ptr := entriesWithKey(entries, "ptr")
	require.Len(t, ptr, 1)
	assert.Equal(t, "Ptr", ptr[0].Label)
	require.Len(t, ptr[0].Occurrences, 3)

	first := ptr[0].Occurrences[0]
	assert.Equal(t, "../classXBot_1_1MatLogger2.html", first.URL)
	assert.Equal(t, "aba023543a79ed94cb8cb065ca8f5148e", first.Anchor)
	assert.True(t, first.Local)
	assert.Equal(t, "XBot::MatLogger2::Ptr()", first.Scope)
}

func TestMarshal_Empty(t *testing.T) {
	got := string(searchdata.Marshal(nil))
	if got != "var searchData=\n[\n];" {
		t.Errorf("Marshal(nil) = %q", got)
	}

	entries, err := searchdata.Unmarshal([]byte(got))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarshal_EscapesQuotes(t *testing.T) {
	entries := []searchdata.SearchEntry{{
		Key:   "it_27s",
		Label: "it's",
		Occurrences: []searchdata.Occurrence{
			{URL: "../page.html", Anchor: "a1", Local: false, Scope: `C:\path`},
		},
	}}

	data := searchdata.Marshal(entries)
	assert.Contains(t, string(data), `['it_27s',['it\'s',['../page.html#a1',0,'C:\\path']]]`)

	decoded, err := searchdata.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)
}

func TestUnmarshal_AlternateForms(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "two-field occurrence",
			input: `var searchData=[['pop',['pop',['../q.html#a1','Q::pop()']]]];`,
		},
		{
			name:  "nested occurrence list",
			input: `var searchData=[['pop',['pop',[['../q.html#a1',1,'Q::pop()']]]]];`,
		},
		{
			name: "double quotes and comments",
			input: `// generated
var searchData = [ /* one entry */
  ["pop", ["pop", ["../q.html#a1", 1, "Q::pop()"]]],
];`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := searchdata.Unmarshal([]byte(tt.input))
			require.NoError(t, err)
			require.Len(t, entries, 1)
			require.Len(t, entries[0].Occurrences, 1)

			occ := entries[0].Occurrences[0]
			assert.Equal(t, "../q.html", occ.URL)
			assert.Equal(t, "a1", occ.Anchor)
			assert.True(t, occ.Local)
			assert.Equal(t, "Q::pop()", occ.Scope)
		})
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"unterminated string", `var searchData=[['pop`, searchdata.ErrSyntax},
		{"missing bracket", `var searchData=[['pop',['pop']]`, searchdata.ErrSyntax},
		{"stray token", `searchData=[]`, searchdata.ErrSyntax},
		{"newline in string", "var searchData=[['po\np',['pop']]];", searchdata.ErrSyntax},
		{"wrong binding", `var other=[];`, searchdata.ErrShape},
		{"not an array", `var searchData={};`, searchdata.ErrShape},
		{"bad entry", `var searchData=[['pop']];`, searchdata.ErrShape},
		{"bad occurrence", `var searchData=[['pop',['pop',['../a.html',1,2,3]]]];`, searchdata.ErrShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := searchdata.Unmarshal([]byte(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Unmarshal() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnmarshal_SyntaxErrorOffset(t *testing.T) {
	_, err := searchdata.Unmarshal([]byte(`var searchData=[;`))

	var syntaxErr *searchdata.SyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.Equal(t, 16, syntaxErr.Offset)
}

func TestSectionIndex_RoundTrip(t *testing.T) {
	all, _ := searchdata.SectionByName("all")
	funcs, _ := searchdata.SectionByName("functions")
	sections := []searchdata.SectionContent{
		{Number: 0, Section: all, Chars: []rune("cpx")},
		{Number: 1, Section: funcs, Chars: []rune("cp")},
	}

	data := searchdata.MarshalSectionIndex(sections)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "var indexSectionsWithContent =\n{\n  0: \"cpx\",\n  1: \"cp\"\n};"))
	assert.Contains(t, text, `1: "Functions"`)
	assert.True(t, strings.HasSuffix(text, "};\n"))

	decoded, err := searchdata.UnmarshalSectionIndex(data)
	require.NoError(t, err)
	assert.Equal(t, sections, decoded)
}
