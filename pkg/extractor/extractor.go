// Package extractor finds the module specifiers of a TypeScript or
// JavaScript file.
package extractor

import (
	"fmt"
	"log/slog"

	"github.com/gnana997/movets/pkg/parser"
	"github.com/gnana997/movets/pkg/parser/queries"
)

// Extractor pulls import and re-export specifiers out of source text.
//
// Only top-level declarations with a string literal source count; the text
// inside comments, JSX attributes, dynamic import() calls and require() calls
// is never reported. An Extractor is safe for concurrent use.
//
// Usage:
//
//	extractor := NewExtractor(parserManager, queryManager, logger)
//	occurrences, err := extractor.ExtractSpecifiers(filePath, sourceCode)
type Extractor struct {
	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	logger        *slog.Logger
}

// NewExtractor creates a new extractor.
func NewExtractor(pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		parserManager: pm,
		queryManager:  qm,
		logger:        logger,
	}
}

// ExtractSpecifiers returns the specifier occurrences of filePath in
// document order. The grammar is chosen from the file extension.
func (e *Extractor) ExtractSpecifiers(filePath string, sourceCode []byte) ([]Occurrence, error) {
	result, err := e.ExtractFile(filePath, sourceCode)
	if err != nil {
		return nil, err
	}
	return result.Occurrences, nil
}

// ExtractFile parses a file once and collects its specifier occurrences.
func (e *Extractor) ExtractFile(filePath string, sourceCode []byte) (*PerFileResult, error) {
	lang := parser.DetectLanguage(filePath)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", filePath)
	}
	isTSX := parser.IsTSXFile(filePath)

	tree, err := e.parserManager.Parse(sourceCode, lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filePath, err)
	}
	defer tree.Close()

	query, err := e.queryManager.GetQuery(lang, isTSX, queries.QueryTypeSpecifiers)
	if err != nil {
		return nil, fmt.Errorf("failed to get specifier query for %s: %w", lang, err)
	}

	matches, err := e.queryManager.ExecuteQuery(tree, query, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to execute specifier query: %w", err)
	}

	result := &PerFileResult{
		FilePath:    filePath,
		Language:    lang,
		Occurrences: e.buildOccurrences(matches, sourceCode),
	}

	e.logger.Debug("extracted specifiers",
		"file", filePath,
		"count", len(result.Occurrences))

	return result, nil
}

// buildOccurrences strips the quotes off every captured string node.
func (e *Extractor) buildOccurrences(matches []queries.QueryMatch, sourceCode []byte) []Occurrence {
	occurrences := make([]Occurrence, 0, len(matches))
	for _, match := range matches {
		for _, capture := range match.Captures {
			if capture.Category != "specifier" {
				continue
			}
			start := int(capture.Location.StartByte) + 1
			end := int(capture.Location.EndByte) - 1
			if end <= start || end > len(sourceCode) {
				// '' or an unterminated literal in a broken file
				continue
			}
			occurrences = append(occurrences, Occurrence{
				Specifier: string(sourceCode[start:end]),
				Start:     start,
				End:       end,
				Line:      int(capture.Location.StartLine),
			})
		}
	}
	return occurrences
}
