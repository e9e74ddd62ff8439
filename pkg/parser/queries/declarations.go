package queries

// DeclarationQueries matches top-level const/let declarations, exported or
// not. Both grammars share these node names.
//
// Captures:
//   - @decl.name  the declared identifier
//   - @decl.value the initializer expression
const DeclarationQueries = `
(program
  (lexical_declaration
    (variable_declarator
      name: (identifier) @decl.name
      value: (_) @decl.value)))

(program
  (export_statement
    declaration: (lexical_declaration
      (variable_declarator
        name: (identifier) @decl.name
        value: (_) @decl.value))))
`
