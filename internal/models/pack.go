package models

import (
	"strings"

	"github.com/google/uuid"
)

// placeholder substituted with a chosen word when a template takes one.
const placeholder = "{0}"

// Pack is a set of message templates, conjunctions, and word lists that
// messages are composed from. Packs are authored as YAML files on the
// server side and served to clients for the composition UI.
type Pack struct {
	Name         string     `json:"name"`
	ID           uuid.UUID  `json:"id"`
	Templates    []string   `json:"templates"`
	Conjunctions []string   `json:"conjunctions"`
	Words        []WordList `json:"words"`
	Visible      bool       `json:"-"`
	Order        int        `json:"-"`
}

// WordList is a named group of words usable in template placeholders.
type WordList struct {
	Name  string   `json:"name" yaml:"name"`
	Words []string `json:"words" yaml:"words"`
}

// WordChoice selects one word out of one word list.
type WordChoice struct {
	List int
	Word int
}

// Format composes message text from template and word indices. The second
// template, joined by a conjunction, is optional. It returns false when
// any index is out of range or a template with a placeholder was given no
// word.
func (p *Pack) Format(template1 int, word1 *WordChoice, conjunction, template2 *int, word2 *WordChoice) (string, bool) {
	first, ok := p.formatTemplate(template1, word1)
	if !ok {
		return "", false
	}

	if conjunction == nil || template2 == nil {
		return first, true
	}

	if *conjunction < 0 || *conjunction >= len(p.Conjunctions) {
		return "", false
	}
	conj := p.Conjunctions[*conjunction]

	second, ok := p.formatTemplate(*template2, word2)
	if !ok {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString(first)
	// single punctuation conjunctions (like a comma) stay on the first
	// line; word conjunctions start a new one
	if len(conj) > 1 || !isASCIIPunct(conj) {
		sb.WriteByte('\n')
	}
	sb.WriteString(conj)
	sb.WriteByte(' ')
	sb.WriteString(second)
	return sb.String(), true
}

func (p *Pack) formatTemplate(idx int, word *WordChoice) (string, bool) {
	if idx < 0 || idx >= len(p.Templates) {
		return "", false
	}
	template := p.Templates[idx]

	if !strings.Contains(template, placeholder) {
		return template, true
	}
	if word == nil {
		return "", false
	}
	if word.List < 0 || word.List >= len(p.Words) {
		return "", false
	}
	list := p.Words[word.List]
	if word.Word < 0 || word.Word >= len(list.Words) {
		return "", false
	}
	return strings.ReplaceAll(template, placeholder, list.Words[word.Word]), true
}

func isASCIIPunct(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return c >= '!' && c <= '/' || c >= ':' && c <= '@' || c >= '[' && c <= '`' || c >= '{' && c <= '~'
}
