// Package parser extracts flashcards from plain-text markdown files.
//
// A card is a block of lines starting with "Q:" (prompt), optionally
// followed by "A:" (answer) and "C:" (context) blocks. Each marker may
// continue over following lines until the next marker, a "---" separator,
// or a new "Q:" line, which starts the next card.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/recallkit/recall/internal/domain"
)

const (
	promptPrefix  = "Q:"
	answerPrefix  = "A:"
	contextPrefix = "C:"
	separator     = "---"
)

type field int

const (
	none field = iota
	prompt
	answer
	contextNote
)

// ParseFile reads the file at path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from r and extracts all cards. Cards without a prompt are
// dropped; a file with no markers yields no cards and no error.
func Parse(r io.Reader) ([]domain.Card, error) {
	var (
		cards   []domain.Card
		current domain.Card
		block   []string
		active  field
	)

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch active {
		case prompt:
			current.Prompt = content
		case answer:
			current.Answer = content
		case contextNote:
			current.Context = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Prompt != "" {
			cards = append(cards, current)
		}
		current = domain.Card{}
		active = none
	}

	startBlock := func(f field, line, prefix string) {
		flushBlock()
		active = f
		content := strings.TrimPrefix(line, prefix)
		content = strings.TrimPrefix(content, " ")
		block = append(block, content)
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == separator:
			finishCard()
		case strings.HasPrefix(line, promptPrefix):
			// A new prompt always starts a new card.
			if active != none {
				finishCard()
			}
			startBlock(prompt, line, promptPrefix)
		case strings.HasPrefix(line, answerPrefix):
			startBlock(answer, line, answerPrefix)
		case strings.HasPrefix(line, contextPrefix):
			startBlock(contextNote, line, contextPrefix)
		case active != none:
			block = append(block, line)
		}
	}
	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}
