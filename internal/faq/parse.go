// Package faq parses the FAQ section of the support context document
// and answers questions by semantic similarity over the parsed entries.
package faq

import (
	"strings"
)

// Entry is a single question/answer pair in parse order.
type Entry struct {
	Question string
	Answer   string
}

// Question and answer markers accepted by the parser. The context
// document is maintained in both English and Russian.
var (
	questionMarkers = []string{"Q:", "Вопрос:"}
	answerMarkers   = []string{"A:", "Ответ:"}
)

// Parse extracts question/answer entries from the "## FAQ" section of
// the document. A missing section or malformed blocks degrade to an
// empty (or partial) result rather than an error; callers treat an
// empty index as "no FAQ available".
//
// Questions and answers may span multiple lines, including blockquoted
// lines; quote markers are stripped and internal whitespace collapsed
// so identical content always normalizes identically.
func Parse(document string) []Entry {
	section, ok := faqSection(document)
	if !ok {
		return nil
	}

	var (
		entries []Entry
		index   = make(map[string]int) // question -> position, last parse wins
		qLines  []string
		aLines  []string
		inA     bool
		open    bool
	)

	flush := func() {
		if !open {
			return
		}
		q := Normalize(strings.Join(qLines, " "))
		a := Normalize(strings.Join(aLines, " "))
		if q != "" && a != "" {
			if i, dup := index[q]; dup {
				entries[i].Answer = a
			} else {
				index[q] = len(entries)
				entries = append(entries, Entry{Question: q, Answer: a})
			}
		}
		qLines, aLines, inA, open = nil, nil, false, false
	}

	for _, raw := range strings.Split(section, "\n") {
		line := stripQuoteMarkers(raw)

		if rest, found := trimMarker(line, questionMarkers); found {
			flush()
			open = true
			qLines = append(qLines, rest)
			continue
		}
		if rest, found := trimMarker(line, answerMarkers); found && open {
			inA = true
			aLines = append(aLines, rest)
			continue
		}
		if !open {
			continue
		}
		if inA {
			aLines = append(aLines, line)
		} else {
			qLines = append(qLines, line)
		}
	}
	flush()

	return entries
}

// faqSection returns the text between the "## FAQ" heading and the
// next same-level heading (or end of document).
func faqSection(document string) (string, bool) {
	start := strings.Index(document, "## FAQ")
	if start < 0 {
		return "", false
	}
	section := document[start:]
	if end := strings.Index(section[len("## FAQ"):], "\n## "); end >= 0 {
		section = section[:len("## FAQ")+end]
	}
	return section, true
}

// stripQuoteMarkers removes leading blockquote markers and indentation.
func stripQuoteMarkers(line string) string {
	s := strings.TrimSpace(line)
	for strings.HasPrefix(s, ">") {
		s = strings.TrimSpace(strings.TrimPrefix(s, ">"))
	}
	return s
}

// trimMarker checks whether the line begins with one of the markers
// and returns the remainder.
func trimMarker(line string, markers []string) (string, bool) {
	for _, m := range markers {
		if strings.HasPrefix(line, m) {
			return strings.TrimSpace(strings.TrimPrefix(line, m)), true
		}
	}
	return "", false
}

// Normalize collapses runs of whitespace into single spaces and trims
// the result. Normalize is idempotent; stable normalization keeps
// cache keys derived from FAQ content deterministic.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
