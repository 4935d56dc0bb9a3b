package delta

import (
	"strings"
	"time"

	"deltascan/internal/model"

	"github.com/dlclark/regexp2"
	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver"
	"go.uber.org/zap"
)

// DefaultMatchTimeout bounds regex evaluation over the delta text so a
// pathological script surfaces as a typed failure instead of a stall.
const DefaultMatchTimeout = 2 * time.Second

// Parser extracts the scan targets introduced by a DDL delta script.
// Scripts that parse as MySQL/ANSI SQL go through the AST; everything else
// (T-SQL bracket identifiers, GO batches) falls back to pattern extraction.
type Parser struct {
	defaultSchema string
	matchTimeout  time.Duration
	sqlParser     *parser.Parser
	logger        *zap.SugaredLogger

	createRe *regexp2.Regexp
	alterRe  *regexp2.Regexp
}

// Delimited, backtick-quoted, double-quoted, or bare identifier.
const identPattern = `(?:\[[^\]]+\]|` + "`[^`]+`" + `|"[^"]+"|[A-Za-z_][A-Za-z0-9_$]*)`

func NewParser(defaultSchema string, matchTimeout time.Duration, logger *zap.SugaredLogger) *Parser {
	if matchTimeout <= 0 {
		matchTimeout = DefaultMatchTimeout
	}
	createRe := regexp2.MustCompile(
		`(?is)\bCREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(`+identPattern+`(?:\s*\.\s*`+identPattern+`)?)\s*\(`, 0)
	alterRe := regexp2.MustCompile(
		`(?is)\bALTER\s+TABLE\s+(`+identPattern+`(?:\s*\.\s*`+identPattern+`)?)\s+ADD\s+(?:COLUMN\s+)?(.+?)(?=\bALTER\b|\bCREATE\b|\z)`, 0)
	createRe.MatchTimeout = matchTimeout
	alterRe.MatchTimeout = matchTimeout

	return &Parser{
		defaultSchema: defaultSchema,
		matchTimeout:  matchTimeout,
		sqlParser:     parser.New(),
		logger:        logger,
		createRe:      createRe,
		alterRe:       alterRe,
	}
}

// Parse returns the deduplicated set of (schema, table, column) locations
// the delta introduces. An empty or no-op delta yields an empty set.
func (p *Parser) Parse(sqlText string) (model.TargetSet, error) {
	targets := model.NewTargetSet()
	if strings.TrimSpace(sqlText) == "" {
		return targets, nil
	}

	if stmts, _, err := p.sqlParser.Parse(sqlText, "", ""); err == nil {
		p.collectFromAST(stmts, targets)
		return targets, nil
	}

	// Script is not valid MySQL/ANSI SQL (typically T-SQL); fall back to
	// pattern extraction.
	p.logger.Debugw("delta did not parse as SQL AST, using pattern extraction")
	if err := p.collectFromPatterns(sqlText, targets); err != nil {
		return nil, err
	}
	return targets, nil
}

func (p *Parser) collectFromAST(stmts []ast.StmtNode, targets model.TargetSet) {
	for _, stmt := range stmts {
		switch node := stmt.(type) {
		case *ast.CreateTableStmt:
			schema := node.Table.Schema.O
			if schema == "" {
				schema = p.defaultSchema
			}
			for _, col := range node.Cols {
				targets.Add(model.ScanTarget{
					Schema: schema,
					Table:  node.Table.Name.O,
					Column: col.Name.Name.O,
				})
			}
		case *ast.AlterTableStmt:
			schema := node.Table.Schema.O
			if schema == "" {
				schema = p.defaultSchema
			}
			for _, spec := range node.Specs {
				if spec.Tp != ast.AlterTableAddColumns {
					continue
				}
				for _, col := range spec.NewColumns {
					targets.Add(model.ScanTarget{
						Schema: schema,
						Table:  node.Table.Name.O,
						Column: col.Name.Name.O,
					})
				}
			}
		}
	}
}

func (p *Parser) collectFromPatterns(sqlText string, targets model.TargetSet) error {
	// T-SQL scripts often carry no statement semicolons at all, so matching
	// the whole text would let one ALTER's column capture run into the next
	// statement. Split at GO separators and top-level semicolons first.
	for _, stmt := range splitStatements(stripComments(sqlText)) {
		if err := p.collectFromStatement(stmt, targets); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) collectFromStatement(stmt string, targets model.TargetSet) error {
	// regexp2 capture indexes count runes, not bytes.
	runes := []rune(stmt)

	m, err := p.createRe.FindStringMatch(stmt)
	if err != nil {
		return model.NewScanError(model.ErrCodeParseTimeout, "delta pattern matching timed out", err)
	}
	for m != nil {
		schema, table := p.splitQualified(m.GroupByNumber(1).String())
		body, ok := columnListAt(runes, m.Index+m.Length-1)
		if ok {
			for _, col := range columnsFromList(body) {
				targets.Add(model.ScanTarget{Schema: schema, Table: table, Column: col})
			}
		}
		m, err = p.createRe.FindNextMatch(m)
		if err != nil {
			return model.NewScanError(model.ErrCodeParseTimeout, "delta pattern matching timed out", err)
		}
	}

	m, err = p.alterRe.FindStringMatch(stmt)
	if err != nil {
		return model.NewScanError(model.ErrCodeParseTimeout, "delta pattern matching timed out", err)
	}
	for m != nil {
		schema, table := p.splitQualified(m.GroupByNumber(1).String())
		for _, col := range columnsFromList(m.GroupByNumber(2).String()) {
			targets.Add(model.ScanTarget{Schema: schema, Table: table, Column: col})
		}
		m, err = p.alterRe.FindNextMatch(m)
		if err != nil {
			return model.NewScanError(model.ErrCodeParseTimeout, "delta pattern matching timed out", err)
		}
	}
	return nil
}

// splitQualified separates an optionally schema-qualified name, honoring
// identifier delimiters so dots inside them are not split points.
func (p *Parser) splitQualified(qualified string) (schema, table string) {
	parts := splitTopLevel(qualified, '.')
	switch len(parts) {
	case 2:
		return stripDelimiters(parts[0]), stripDelimiters(parts[1])
	default:
		return p.defaultSchema, stripDelimiters(parts[len(parts)-1])
	}
}

// columnListAt extracts the parenthesized body starting at the opening
// paren at rune index open, balancing nested parens (type arguments, CHECKs).
func columnListAt(text []rune, open int) (string, bool) {
	if open < 0 || open >= len(text) || text[open] != '(' {
		return "", false
	}
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return string(text[open+1 : i]), true
			}
		case '\'':
			i = skipQuotedRunes(text, i, '\'')
		case '[':
			i = skipQuotedRunes(text, i, ']')
		case '`':
			i = skipQuotedRunes(text, i, '`')
		case '"':
			i = skipQuotedRunes(text, i, '"')
		}
	}
	return "", false
}

func skipQuotedRunes(text []rune, start int, closer rune) int {
	for i := start + 1; i < len(text); i++ {
		if text[i] == closer {
			return i
		}
	}
	return len(text) - 1
}

func skipQuoted(text string, start int, closer byte) int {
	for i := start + 1; i < len(text); i++ {
		if text[i] == closer {
			return i
		}
	}
	return len(text) - 1
}

// Table-level entries that are not column definitions.
var constraintKeywords = map[string]struct{}{
	"CONSTRAINT": {}, "PRIMARY": {}, "FOREIGN": {}, "UNIQUE": {},
	"KEY": {}, "INDEX": {}, "CHECK": {}, "PERIOD": {}, "FULLTEXT": {},
}

// columnsFromList splits a column definition list on top-level commas and
// returns the leading identifier of each entry, skipping constraints.
func columnsFromList(body string) []string {
	var cols []string
	for _, entry := range splitTopLevel(body, ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name := leadIdentifier(entry)
		if name == "" {
			continue
		}
		if _, isConstraint := constraintKeywords[strings.ToUpper(name)]; isConstraint {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}

// splitStatements divides a script into individual statements: first at GO
// batch separators, then at semicolons outside parens and string literals.
func splitStatements(s string) []string {
	var stmts []string
	for _, batch := range splitOnGo(s) {
		for _, stmt := range splitTopLevel(batch, ';') {
			if strings.TrimSpace(stmt) != "" {
				stmts = append(stmts, stmt)
			}
		}
	}
	return stmts
}

// splitOnGo breaks the script at lines consisting of the GO batch separator,
// optionally with a repeat count ("GO 5").
func splitOnGo(s string) []string {
	var batches []string
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if isGoSeparator(line) {
			batches = append(batches, b.String())
			b.Reset()
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return append(batches, b.String())
}

func isGoSeparator(line string) bool {
	fields := strings.Fields(line)
	switch len(fields) {
	case 1:
		return strings.EqualFold(fields[0], "GO")
	case 2:
		if !strings.EqualFold(fields[0], "GO") {
			return false
		}
		for _, c := range fields[1] {
			if c < '0' || c > '9' {
				return false
			}
		}
		return true
	}
	return false
}

// stripComments blanks out -- line comments and /* */ blocks so commented
// column definitions in migration scripts do not confuse extraction.
// Comment markers inside string literals are left alone.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			end := skipQuoted(s, i, '\'')
			b.WriteString(s[i : end+1])
			i = end
		case s[i] == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++ // past the closing slash
			b.WriteByte(' ')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// leadIdentifier reads the first (possibly delimited) identifier of entry.
func leadIdentifier(entry string) string {
	if entry == "" {
		return ""
	}
	switch entry[0] {
	case '[':
		return delimitedLead(entry, ']')
	case '`':
		return delimitedLead(entry, '`')
	case '"':
		return delimitedLead(entry, '"')
	}
	i := 0
	for i < len(entry) {
		c := entry[i]
		if c == '_' || c == '$' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(i > 0 && c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	return entry[:i]
}

func delimitedLead(entry string, closer byte) string {
	for i := 1; i < len(entry); i++ {
		if entry[i] == closer {
			return entry[1:i]
		}
	}
	return ""
}

// splitTopLevel splits on sep outside parens and identifier delimiters.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '\'':
			i = skipQuoted(s, i, '\'')
		case '[':
			i = skipQuoted(s, i, ']')
		case '`':
			i = skipQuoted(s, i, '`')
		case '"':
			i = skipQuoted(s, i, '"')
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

func stripDelimiters(ident string) string {
	ident = strings.TrimSpace(ident)
	if len(ident) >= 2 {
		switch {
		case ident[0] == '[' && ident[len(ident)-1] == ']',
			ident[0] == '`' && ident[len(ident)-1] == '`',
			ident[0] == '"' && ident[len(ident)-1] == '"':
			return ident[1 : len(ident)-1]
		}
	}
	return ident
}
