package queries

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/gnana997/movets/pkg/parser"
)

// Test fixtures
var (
	testLogger        *slog.Logger
	testParserManager *parser.ParserManager
	testQueryManager  *QueryManager
)

func setupTest(t *testing.T) {
	t.Helper()

	testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	testParserManager = parser.NewParserManager(testLogger)
	testQueryManager = NewQueryManager(testParserManager, testLogger)
}

func teardownTest(t *testing.T) {
	t.Helper()

	if testQueryManager != nil {
		testQueryManager.Close()
	}
	if testParserManager != nil {
		testParserManager.Close()
	}
}

// runSpecifierQuery parses source and returns the captured texts in order.
func runSpecifierQuery(t *testing.T, source string, lang parser.Language, isTSX bool) []string {
	t.Helper()

	src := []byte(source)
	tree, err := testParserManager.Parse(src, lang, isTSX)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	defer tree.Close()

	query, err := testQueryManager.GetQuery(lang, isTSX, QueryTypeSpecifiers)
	if err != nil {
		t.Fatalf("failed to get query: %v", err)
	}

	matches, err := testQueryManager.ExecuteQuery(tree, query, src)
	if err != nil {
		t.Fatalf("failed to execute query: %v", err)
	}

	var texts []string
	for _, match := range matches {
		for _, capture := range match.Captures {
			if capture.Category != "specifier" || capture.Field != "source" {
				t.Errorf("unexpected capture %q", capture.Name)
			}
			texts = append(texts, capture.Text)
		}
	}
	return texts
}

// ===========================================================================
// QUERY COMPILATION TESTS
// ===========================================================================

func TestQueryCompilation(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	grammars := []struct {
		name  string
		lang  parser.Language
		isTSX bool
	}{
		{"typescript", parser.LanguageTypeScript, false},
		{"tsx", parser.LanguageTypeScript, true},
		{"javascript", parser.LanguageJavaScript, false},
	}

	for _, g := range grammars {
		t.Run(g.name, func(t *testing.T) {
			query, err := testQueryManager.GetQuery(g.lang, g.isTSX, QueryTypeSpecifiers)
			if err != nil {
				t.Fatalf("failed to compile %s specifier query: %v", g.name, err)
			}
			if query == nil {
				t.Fatal("compiled query is nil")
			}
		})
	}
}

func TestQueryCompilation_UnknownLanguage(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	if _, err := testQueryManager.GetQuery(parser.LanguageUnknown, false, QueryTypeSpecifiers); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestQueryCaching(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	first, err := testQueryManager.GetQuery(parser.LanguageTypeScript, false, QueryTypeSpecifiers)
	if err != nil {
		t.Fatalf("failed to get query: %v", err)
	}
	second, err := testQueryManager.GetQuery(parser.LanguageTypeScript, false, QueryTypeSpecifiers)
	if err != nil {
		t.Fatalf("failed to get query: %v", err)
	}
	if first != second {
		t.Error("expected cached query to be reused")
	}

	tsx, err := testQueryManager.GetQuery(parser.LanguageTypeScript, true, QueryTypeSpecifiers)
	if err != nil {
		t.Fatalf("failed to get tsx query: %v", err)
	}
	if tsx == first {
		t.Error("tsx grammar must not share the typescript query")
	}
}

// ===========================================================================
// QUERY EXECUTION TESTS
// ===========================================================================

func TestQueryExecution_TypeScript(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	source := `import { a } from './a';
import type { T } from "../types";
import './polyfill';
import {
  b,
  c, // './not-this'
} from '@app/b';
export * from './reexport';
export { d } from 'pkg/d';
export const local = 1;
import legacy = require('./legacy');
const lazy = import('./lazy');
declare module 'ambient' {
  import { z } from './nested';
}
`
	got := runSpecifierQuery(t, source, parser.LanguageTypeScript, false)
	want := []string{`'./a'`, `"../types"`, `'./polyfill'`, `'@app/b'`, `'./reexport'`, `'pkg/d'`}

	if len(got) != len(want) {
		t.Fatalf("expected %d specifiers, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("specifier %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestQueryExecution_TSX(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	source := `import React from 'react';
import { Card } from './Card';
export const App = () => <Card title="./not-an-import" />;
`
	got := runSpecifierQuery(t, source, parser.LanguageTypeScript, true)
	if len(got) != 2 || got[0] != `'react'` || got[1] != `'./Card'` {
		t.Errorf("unexpected specifiers: %v", got)
	}
}

func TestQueryExecution_JavaScript(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	source := `import def, { named } from './lib';
const cjs = require('./cjs');
export * as ns from './ns';
`
	got := runSpecifierQuery(t, source, parser.LanguageJavaScript, false)
	if len(got) != 2 || got[0] != `'./lib'` || got[1] != `'./ns'` {
		t.Errorf("unexpected specifiers: %v", got)
	}
}

func TestQueryExecution_Location(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	src := []byte("// header\nimport x from './x';\n")
	tree, err := testParserManager.Parse(src, parser.LanguageTypeScript, false)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	defer tree.Close()

	query, _ := testQueryManager.GetQuery(parser.LanguageTypeScript, false, QueryTypeSpecifiers)
	matches, err := testQueryManager.ExecuteQuery(tree, query, src)
	if err != nil {
		t.Fatalf("failed to execute query: %v", err)
	}
	if len(matches) != 1 || len(matches[0].Captures) != 1 {
		t.Fatalf("expected one capture, got %v", matches)
	}

	loc := matches[0].Captures[0].Location
	if loc.StartLine != 2 {
		t.Errorf("expected line 2, got %d", loc.StartLine)
	}
	if string(src[loc.StartByte:loc.EndByte]) != "'./x'" {
		t.Errorf("byte range covers %q", src[loc.StartByte:loc.EndByte])
	}
}

func TestExecuteQuery_NilArguments(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	if _, err := testQueryManager.ExecuteQuery(nil, nil, nil); err == nil {
		t.Error("expected error for nil tree")
	}
}

// ===========================================================================
// CAPTURE PROCESSING TESTS
// ===========================================================================

func TestParseCaptureName(t *testing.T) {
	tests := []struct {
		input            string
		expectedCategory string
		expectedField    string
	}{
		{"specifier.source", "specifier", "source"},
		{"package_name", "package_name", ""},
		{"a.b.c", "a", "b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			category, field := parseCaptureName(tt.input)
			if category != tt.expectedCategory || field != tt.expectedField {
				t.Errorf("parseCaptureName(%q) = (%q, %q), want (%q, %q)",
					tt.input, category, field, tt.expectedCategory, tt.expectedField)
			}
		})
	}
}

// ===========================================================================
// CONCURRENCY TESTS
// ===========================================================================

func TestConcurrentQueryCompilation(t *testing.T) {
	setupTest(t)
	defer teardownTest(t)

	var wg sync.WaitGroup
	results := make(chan error, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(isTSX bool) {
			defer wg.Done()
			_, err := testQueryManager.GetQuery(parser.LanguageTypeScript, isTSX, QueryTypeSpecifiers)
			results <- err
		}(i%2 == 0)
	}
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Errorf("concurrent compilation failed: %v", err)
		}
	}
	if n := len(testQueryManager.cache); n != 2 {
		t.Errorf("expected 2 cached queries, got %d", n)
	}
}
