// Package specifiers holds the tree-sitter patterns that locate module
// specifiers in import and re-export declarations.
package specifiers

// statements matches the source string of every top-level import and
// `export ... from` declaration. Both grammars name the field "source".
//
// Not matched:
//   - import x = require('y') (source lives on import_require_clause)
//   - dynamic import('y') and require('y') calls
//   - declarations nested in `declare module` or namespace blocks
//
// Captures:
//   - @specifier.source - the string node, quotes included
const statements = `
; import { a } from './a';  import './side-effect';  import type { T } from './t';
(program
  (import_statement
    source: (string) @specifier.source))

; export * from './a';  export { b } from './b';  export * as ns from './ns';
(program
  (export_statement
    source: (string) @specifier.source))
`

// TSQueries is compiled against both the TypeScript and TSX grammars.
const TSQueries = statements

// JSQueries is compiled against the JavaScript grammar (JSX included).
const JSQueries = statements
