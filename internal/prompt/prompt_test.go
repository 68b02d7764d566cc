package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ContainsQueryAndPassagesInOrder(t *testing.T) {
	p := Build("What is X?", []string{"first passage", "second passage"})

	assert.Contains(t, p, "[1] first passage")
	assert.Contains(t, p, "[2] second passage")
	assert.Less(t, strings.Index(p, "first passage"), strings.Index(p, "second passage"))
	assert.True(t, strings.HasSuffix(p, "[Question]\nWhat is X?"))
}

func TestBuild_InstructsSourceFirstAndRefusal(t *testing.T) {
	p := Build("q", []string{"x"})

	assert.Contains(t, p, "Begin your answer by stating which passage numbers support it")
	assert.Contains(t, p, RefusalText)
}

func TestBuild_Deterministic(t *testing.T) {
	passages := []string{"a", "b", "c"}
	assert.Equal(t, Build("q", passages), Build("q", passages))
}

func TestBuild_NoPassages(t *testing.T) {
	p := Build("q", nil)
	assert.Contains(t, p, "(no passages)")
	assert.Contains(t, p, RefusalText)
}

func TestBuilder_Japanese(t *testing.T) {
	b := NewBuilder(LanguageJapanese)
	p := b.Build("質問です", []string{"資料A"})

	assert.Contains(t, p, "[参考情報]")
	assert.Contains(t, p, "[1] 資料A")
	assert.Contains(t, p, "[質問]\n質問です")
	assert.Contains(t, p, RefusalTextJapanese)
	assert.Equal(t, RefusalTextJapanese, b.Refusal())
}

func TestBuilder_ZeroValueIsEnglish(t *testing.T) {
	var b Builder
	assert.Equal(t, Build("q", []string{"p"}), b.Build("q", []string{"p"}))
	assert.Equal(t, RefusalText, b.Refusal())
}

func TestParseLanguage(t *testing.T) {
	lang, err := ParseLanguage("")
	require.NoError(t, err)
	assert.Equal(t, LanguageEnglish, lang)

	lang, err = ParseLanguage("JA")
	require.NoError(t, err)
	assert.Equal(t, LanguageJapanese, lang)

	_, err = ParseLanguage("fr")
	assert.Error(t, err)
}
