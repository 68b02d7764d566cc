// Package prompt assembles the grounded prompt sent to the generation service.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
)

// Language selects the instruction template.
type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageJapanese Language = "ja"
)

// Refusal strings the model is told to answer with verbatim when the passages
// do not support an answer.
const (
	RefusalText         = "I cannot answer this question from the provided documents."
	RefusalTextJapanese = "提供された資料からはこの質問に回答できません。"
)

// ParseLanguage maps a configuration value to a Language.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case "", LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageJapanese:
		return LanguageJapanese, nil
	default:
		return "", fmt.Errorf("unknown prompt language %q", s)
	}
}

// Builder renders prompts for one language. The zero value renders English.
type Builder struct {
	lang Language
}

// NewBuilder returns a builder for lang.
func NewBuilder(lang Language) *Builder {
	return &Builder{lang: lang}
}

// Refusal returns the refusal string of the builder's language.
func (b *Builder) Refusal() string {
	if b.lang == LanguageJapanese {
		return RefusalTextJapanese
	}
	return RefusalText
}

// Build renders the prompt for query grounded on passages, in order.
func (b *Builder) Build(query string, passages []string) string {
	if b.lang == LanguageJapanese {
		return render(japaneseTemplate, query, passages, RefusalTextJapanese)
	}
	return render(englishTemplate, query, passages, RefusalText)
}

// Build renders the English prompt.
func Build(query string, passages []string) string {
	return render(englishTemplate, query, passages, RefusalText)
}

type template struct {
	instructions string
	context      string
	question     string
	empty        string
}

var englishTemplate = template{
	instructions: "You are an assistant that answers questions using only the reference passages below.\n" +
		"Rules:\n" +
		"1. Begin your answer by stating which passage numbers support it, for example \"Source: [1], [3]\".\n" +
		"2. Use only information found in the passages. Do not rely on prior knowledge.\n" +
		"3. If the passages do not contain enough information to answer, reply with exactly:\n" +
		"%s",
	context:  "[Reference passages]",
	question: "[Question]",
	empty:    "(no passages)",
}

var japaneseTemplate = template{
	instructions: "以下の参考情報のみを使って質問に答えてください。\n" +
		"ルール:\n" +
		"1. 回答の最初に根拠となる参考情報の番号を示してください（例: 「出典: [1], [3]」）。\n" +
		"2. 参考情報に書かれている内容だけを使い、推測で答えないでください。\n" +
		"3. 参考情報から回答できない場合は、次の文だけを返してください:\n" +
		"%s",
	context:  "[参考情報]",
	question: "[質問]",
	empty:    "（参考情報なし）",
}

func render(t template, query string, passages []string, refusal string) string {
	var b strings.Builder

	fmt.Fprintf(&b, t.instructions, refusal)
	b.WriteString("\n\n")
	b.WriteString(t.context)
	b.WriteByte('\n')
	if len(passages) == 0 {
		b.WriteString(t.empty)
		b.WriteByte('\n')
	}
	for i, p := range passages {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(p)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(t.question)
	b.WriteByte('\n')
	b.WriteString(query)
	return b.String()
}
