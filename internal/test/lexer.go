package test

import (
	"math/rand"
	"strings"
)

// validTokens holds one spelling of every lexeme the scanner accepts, plus
// a few identifiers and literals to mix in.
var validTokens = []string{
	"if", "else", "fn", "let", "loop",
	"(", ")", "{", "}", ":", ";",
	"+", "-", "*", "/", "&", "|", "!", ",",
	"=", "==", "!=", "<", "<=", ">", ">=",
	"0", "1", "42", "123", "9001",
	"x", "y", "acc", "total", "main",
}

func GetRandomTokens(size int) string {
	return GetRandomTokensWithSep(size, " ")
}

func GetRandomTokensWithSep(size int, sep string) string {
	var toks []string
	for len(toks) < size {
		toks = append(toks, validTokens[rand.Intn(len(validTokens))])
	}

	return strings.Join(toks, sep)
}
