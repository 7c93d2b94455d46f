package searchdata

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Severity of a validation finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding codes
const (
	CodeKeyMismatch    = "KEY_MISMATCH"
	CodeBadURL         = "BAD_URL"
	CodeMissingAnchor  = "MISSING_ANCHOR"
	CodeWrongShard     = "WRONG_SHARD"
	CodeUnsorted       = "UNSORTED"
	CodeNoOccurrences  = "NO_OCCURRENCES"
	CodeNotCanonical   = "NOT_CANONICAL"
	CodeParseFailed    = "PARSE_FAILED"
	CodeUnknownShard   = "UNKNOWN_SHARD"
	CodeMissingShard   = "MISSING_SHARD"
	CodeNoSectionIndex = "NO_SECTION_INDEX"
)

// Finding is a single data-integrity problem
type Finding struct {
	File     string   `json:"file,omitempty"`
	Entry    int      `json:"entry"` // -1 for file-level findings
	Key      string   `json:"key,omitempty"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	loc := f.File
	if f.Entry >= 0 {
		loc = fmt.Sprintf("%s[%d] %s", f.File, f.Entry, f.Key)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", loc, f.Severity, f.Message, f.Code)
}

// ValidateOptions tunes validation
type ValidateOptions struct {
	// Strict turns missing anchors into errors. Compound pages are linked
	// without an anchor, so this is off by default.
	Strict bool

	// Bucket is the character every key must belong to; 0 infers it from the first entry
	Bucket rune
}

// Report aggregates the findings of a validation run
type Report struct {
	Files    int       `json:"files"`
	Entries  int       `json:"entries"`
	Findings []Finding `json:"findings"`
}

// Errors counts error-level findings
func (r *Report) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Warnings counts warning-level findings
func (r *Report) Warnings() int {
	return len(r.Findings) - r.Errors()
}

// Valid reports whether no error-level findings were recorded
func (r *Report) Valid() bool {
	return r.Errors() == 0
}

// ValidateEntries checks decoded entries against the shard invariants
func ValidateEntries(entries []SearchEntry, opts ValidateOptions) []Finding {
	var findings []Finding
	add := func(i int, key string, sev Severity, code, format string, args ...any) {
		findings = append(findings, Finding{
			Entry:    i,
			Key:      key,
			Severity: sev,
			Code:     code,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	bucket := opts.Bucket
	if bucket == 0 && len(entries) > 0 {
		bucket = labelBucket(entries[0].Label)
	}
	bucketKey := BucketKey(bucket)

	for i, entry := range entries {
		if want := LabelKey(entry.Label); entry.Key != want {
			add(i, entry.Key, SeverityError, CodeKeyMismatch, "key %q does not match label %q (want %q)", entry.Key, entry.Label, want)
		}
		if bucket != 0 && !strings.HasPrefix(entry.Key, bucketKey) {
			add(i, entry.Key, SeverityError, CodeWrongShard, "key %q does not belong to the shard of %q", entry.Key, string(bucket))
		}
		if i > 0 && entries[i-1].Key > entry.Key {
			add(i, entry.Key, SeverityWarning, CodeUnsorted, "key %q sorts before previous key %q", entry.Key, entries[i-1].Key)
		}
		if len(entry.Occurrences) == 0 {
			add(i, entry.Key, SeverityError, CodeNoOccurrences, "entry has no occurrences")
		}

		for j, occ := range entry.Occurrences {
			if !isRelativeHTML(occ.URL) {
				add(i, entry.Key, SeverityError, CodeBadURL, "occurrence %d: %q is not a relative .html path", j, occ.URL)
			}
			if occ.Anchor == "" {
				sev := SeverityWarning
				if opts.Strict {
					sev = SeverityError
				}
				add(i, entry.Key, sev, CodeMissingAnchor, "occurrence %d: %q has no anchor fragment", j, occ.URL)
			}
		}
	}
	return findings
}

func isRelativeHTML(url string) bool {
	if !strings.HasSuffix(url, ".html") || len(url) == len(".html") {
		return false
	}
	if strings.HasPrefix(url, "/") || strings.Contains(url, "://") {
		return false
	}
	return true
}

// ValidateShard decodes one shard, checks its entries and verifies the encoding is canonical
func ValidateShard(name string, data []byte, opts ValidateOptions) (entries []SearchEntry, findings []Finding) {
	entries, err := Unmarshal(data)
	if err != nil {
		return nil, []Finding{{
			File:     name,
			Entry:    -1,
			Severity: SeverityError,
			Code:     CodeParseFailed,
			Message:  err.Error(),
		}}
	}

	findings = ValidateEntries(entries, opts)
	for i := range findings {
		findings[i].File = name
	}

	if !bytes.Equal(Marshal(entries), data) {
		findings = append(findings, Finding{
			File:     name,
			Entry:    -1,
			Severity: SeverityWarning,
			Code:     CodeNotCanonical,
			Message:  "re-encoding the shard does not reproduce the file byte for byte",
		})
	}
	return entries, findings
}

var shardFileRegex = regexp.MustCompile(`^([a-z]+)_([0-9a-f]+)\.js$`)

// ValidateDir validates every shard of a search directory against its searchdata.js
func ValidateDir(dir string, opts ValidateOptions) (*Report, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read search directory: %w", err)
	}

	report := &Report{}

	// section name -> shard index -> bucket char
	buckets := map[string][]rune{}
	indexPath := filepath.Join(dir, SectionIndexFile)
	if data, err := os.ReadFile(indexPath); err == nil {
		sections, err := UnmarshalSectionIndex(data)
		if err != nil {
			report.Findings = append(report.Findings, Finding{
				File: SectionIndexFile, Entry: -1, Severity: SeverityError,
				Code: CodeParseFailed, Message: err.Error(),
			})
		}
		for _, sc := range sections {
			buckets[sc.Section.Name] = sc.Chars
		}
	} else {
		report.Findings = append(report.Findings, Finding{
			File: SectionIndexFile, Entry: -1, Severity: SeverityWarning,
			Code: CodeNoSectionIndex, Message: "no section index, shard membership inferred from first entry",
		})
	}

	seen := map[string]bool{}
	var names []string
	for _, f := range files {
		if !f.IsDir() && shardFileRegex.MatchString(f.Name()) {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		m := shardFileRegex.FindStringSubmatch(name)
		section := m[1]
		shardIndex, _ := strconv.ParseInt(m[2], 16, 32)

		shardOpts := opts
		if chars, ok := buckets[section]; ok {
			if int(shardIndex) >= len(chars) {
				report.Findings = append(report.Findings, Finding{
					File: name, Entry: -1, Severity: SeverityError, Code: CodeUnknownShard,
					Message: fmt.Sprintf("section %s lists %d shards, file index is %d", section, len(chars), shardIndex),
				})
			} else {
				shardOpts.Bucket = chars[shardIndex]
			}
		}
		seen[name] = true

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read shard %s: %w", name, err)
		}
		entries, findings := ValidateShard(name, data, shardOpts)
		report.Files++
		report.Entries += len(entries)
		report.Findings = append(report.Findings, findings...)
	}

	for section, chars := range buckets {
		for i := range chars {
			name := ShardFileName(section, i)
			if !seen[name] {
				report.Findings = append(report.Findings, Finding{
					File: name, Entry: -1, Severity: SeverityError, Code: CodeMissingShard,
					Message: fmt.Sprintf("listed in %s but missing on disk", SectionIndexFile),
				})
			}
		}
	}

	return report, nil
}
