package plan

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type book struct {
	code  string
	names []string
	// ambiguous names are everyday words or first names and only count when
	// followed by a chapter number.
	ambiguous bool
}

var books = []book{
	{code: "GEN", names: []string{"genesis", "gen"}},
	{code: "EXO", names: []string{"exodus"}},
	{code: "LEV", names: []string{"leviticus"}},
	{code: "NUM", names: []string{"numbers"}, ambiguous: true},
	{code: "DEU", names: []string{"deuteronomy"}},
	{code: "JOS", names: []string{"joshua"}, ambiguous: true},
	{code: "JDG", names: []string{"judges"}, ambiguous: true},
	{code: "RUT", names: []string{"ruth"}, ambiguous: true},
	{code: "1SA", names: []string{"1 samuel", "1samuel"}},
	{code: "2SA", names: []string{"2 samuel", "2samuel"}},
	{code: "1KI", names: []string{"1 kings", "1kings"}},
	{code: "2KI", names: []string{"2 kings", "2kings"}},
	{code: "1CH", names: []string{"1 chronicles", "1chronicles"}},
	{code: "2CH", names: []string{"2 chronicles", "2chronicles"}},
	{code: "EZR", names: []string{"ezra"}},
	{code: "NEH", names: []string{"nehemiah"}},
	{code: "EST", names: []string{"esther"}, ambiguous: true},
	{code: "JOB", names: []string{"job"}, ambiguous: true},
	{code: "PSA", names: []string{"psalms", "psalm"}},
	{code: "PRO", names: []string{"proverbs"}},
	{code: "ECC", names: []string{"ecclesiastes"}},
	{code: "SNG", names: []string{"song of songs", "song of solomon"}},
	{code: "ISA", names: []string{"isaiah"}},
	{code: "JER", names: []string{"jeremiah"}},
	{code: "LAM", names: []string{"lamentations"}},
	{code: "EZK", names: []string{"ezekiel"}},
	{code: "DAN", names: []string{"daniel"}, ambiguous: true},
	{code: "HOS", names: []string{"hosea"}},
	{code: "JOL", names: []string{"joel"}, ambiguous: true},
	{code: "AMO", names: []string{"amos"}, ambiguous: true},
	{code: "OBA", names: []string{"obadiah"}},
	{code: "JON", names: []string{"jonah"}},
	{code: "MIC", names: []string{"micah"}, ambiguous: true},
	{code: "NAM", names: []string{"nahum"}},
	{code: "HAB", names: []string{"habakkuk"}},
	{code: "ZEP", names: []string{"zephaniah"}},
	{code: "HAG", names: []string{"haggai"}},
	{code: "ZEC", names: []string{"zechariah"}},
	{code: "MAL", names: []string{"malachi"}},
	{code: "MAT", names: []string{"matthew"}},
	{code: "MRK", names: []string{"mark"}, ambiguous: true},
	{code: "LUK", names: []string{"luke"}},
	{code: "JHN", names: []string{"john"}},
	{code: "ACT", names: []string{"acts"}, ambiguous: true},
	{code: "ROM", names: []string{"romans"}},
	{code: "1CO", names: []string{"1 corinthians", "1corinthians"}},
	{code: "2CO", names: []string{"2 corinthians", "2corinthians"}},
	{code: "GAL", names: []string{"galatians"}},
	{code: "EPH", names: []string{"ephesians"}},
	{code: "PHP", names: []string{"philippians"}},
	{code: "COL", names: []string{"colossians"}},
	{code: "1TH", names: []string{"1 thessalonians", "1thessalonians"}},
	{code: "2TH", names: []string{"2 thessalonians", "2thessalonians"}},
	{code: "1TI", names: []string{"1 timothy", "1timothy"}},
	{code: "2TI", names: []string{"2 timothy", "2timothy"}},
	{code: "TIT", names: []string{"titus"}},
	{code: "PHM", names: []string{"philemon"}},
	{code: "HEB", names: []string{"hebrews"}},
	{code: "JAS", names: []string{"james"}, ambiguous: true},
	{code: "1PE", names: []string{"1 peter", "1peter"}},
	{code: "2PE", names: []string{"2 peter", "2peter"}},
	{code: "1JN", names: []string{"1 john", "1john"}},
	{code: "2JN", names: []string{"2 john", "2john"}},
	{code: "3JN", names: []string{"3 john", "3john"}},
	{code: "JUD", names: []string{"jude"}, ambiguous: true},
	{code: "REV", names: []string{"revelation", "revelations"}},
}

type bookEntry struct {
	code      string
	ambiguous bool
}

var bookByName = map[string]bookEntry{}

var bookRefPattern *regexp.Regexp

func init() {
	var names []string
	for _, b := range books {
		for _, n := range b.names {
			bookByName[n] = bookEntry{code: b.code, ambiguous: b.ambiguous}
			names = append(names, regexp.QuoteMeta(n))
		}
	}
	// Longer names first so "1 john" is preferred over "john".
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	bookRefPattern = regexp.MustCompile(`\b(` + strings.Join(names, "|") + `)(?:\s+(\d{1,3})(?::(\d{1,3}))?)?\b`)
}

type bookRef struct {
	book    string
	chapter int
	verse   int
}

func (r bookRef) refKey() string {
	switch {
	case r.chapter > 0 && r.verse > 0:
		return fmt.Sprintf("%s:%d:%d", r.book, r.chapter, r.verse)
	case r.chapter > 0:
		return fmt.Sprintf("%s:%d", r.book, r.chapter)
	}
	return ""
}

// findBook returns the first book reference in a lowercased message.
func findBook(lower string) (bookRef, bool) {
	for _, m := range bookRefPattern.FindAllStringSubmatch(lower, -1) {
		entry, ok := bookByName[m[1]]
		if !ok {
			continue
		}
		if entry.ambiguous && m[2] == "" {
			continue
		}
		ref := bookRef{book: entry.code}
		ref.chapter, _ = strconv.Atoi(m[2])
		ref.verse, _ = strconv.Atoi(m[3])
		if ref.chapter == 0 {
			ref.verse = 0
		}
		return ref, true
	}
	return bookRef{}, false
}

// BookCode resolves a book name to its USFM code.
func BookCode(name string) (string, bool) {
	entry, ok := bookByName[strings.ToLower(strings.TrimSpace(name))]
	return entry.code, ok
}
