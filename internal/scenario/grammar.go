// Package scenario runs farm scripts: line-oriented command files that drive
// a simulation through a full season without a UI.
//
//	# comments run to end of line
//	ambient T 21
//	set "Level 1" L 12
//	plant "Level 1" Lettuce 40
//	simulate 2
//	market
//	offer 1 120
//	skip 2
//	sellall
//	remove harvested
//	notes "planted lettuce under full light"
//	status
package scenario

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Script is the top-level AST node.
type Script struct {
	Statements []*Statement `parser:"@@*"`
}

// Statement is one command.
type Statement struct {
	Pos lexer.Position

	Ambient  *Ambient  `parser:"  @@"`
	Set      *Set      `parser:"| @@"`
	Plant    *Plant    `parser:"| @@"`
	Remove   *Remove   `parser:"| @@"`
	Simulate *Simulate `parser:"| @@"`
	Market   *Market   `parser:"| @@"`
	Offer    *Offer    `parser:"| @@"`
	Skip     *Skip     `parser:"| @@"`
	SellAll  *SellAll  `parser:"| @@"`
	Status   *Status   `parser:"| @@"`
	Notes    *Notes    `parser:"| @@"`
}

// Ambient: ambient VAR VALUE
type Ambient struct {
	Var   string  `parser:"\"ambient\" @Ident"`
	Value float64 `parser:"@Number"`
}

// Set: set LEVEL VAR VALUE
type Set struct {
	Level string  `parser:"\"set\" @(String | Ident)"`
	Var   string  `parser:"@Ident"`
	Value float64 `parser:"@Number"`
}

// Plant: plant LEVEL CROP COUNT
type Plant struct {
	Level string `parser:"\"plant\" @(String | Ident)"`
	Crop  string `parser:"@(String | Ident)"`
	Count int    `parser:"@Number"`
}

// Remove: remove (harvested | dead | terminal | ID+)
type Remove struct {
	Which string `parser:"\"remove\" ( @(\"harvested\" | \"dead\" | \"terminal\")"`
	IDs   []int  `parser:"| @Number+ )"`
}

// Simulate: simulate [MONTHS]
type Simulate struct {
	Keyword bool `parser:"@\"simulate\""`
	Months  int  `parser:"@Number?"`
}

// Market: market
type Market struct {
	Keyword bool `parser:"@\"market\""`
}

// Offer: offer CUSTOMER PRICE
type Offer struct {
	Customer int     `parser:"\"offer\" @Number"`
	Price    float64 `parser:"@Number"`
}

// Skip: skip CUSTOMER
type Skip struct {
	Customer int `parser:"\"skip\" @Number"`
}

// SellAll: sellall
type SellAll struct {
	Keyword bool `parser:"@\"sellall\""`
}

// Status: status
type Status struct {
	Keyword bool `parser:"@\"status\""`
}

// Notes: notes TEXT
type Notes struct {
	Text string `parser:"\"notes\" @String"`
}

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Number", Pattern: `-?[0-9]+(\.[0-9]+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
})

var parser = participle.MustBuild[Script](
	participle.Lexer(scriptLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
)

// Parse parses a script. name is used in error positions.
func Parse(name, src string) (*Script, error) {
	return parser.ParseString(name, src)
}
