package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/shanehull/grantwatch/internal/types"
)

func TestResolvePrefersCandidatesInOrder(t *testing.T) {
	a := types.Announcement{
		Title:        "2026년 수출바우처",
		Link:         "https://www.bizinfo.go.kr/x",
		IDCandidates: []string{"", "  PBLN_000123 ", "https://www.bizinfo.go.kr/x"},
	}
	assert.Equal(t, "PBLN_000123", Resolve(a))
}

func TestResolveFallsBackToContentHash(t *testing.T) {
	a := types.Announcement{Title: "예비창업패키지", Link: "https://www.k-startup.go.kr/a"}
	id := Resolve(a)
	assert.Len(t, id, 64)
	assert.Equal(t, ContentHash("예비창업패키지", "https://www.k-startup.go.kr/a"), id)
}

func TestResolveUnusableRecordHasNoIdentifier(t *testing.T) {
	assert.Empty(t, Resolve(types.Announcement{Description: "본문만 있음"}))
}

func TestContentHashDistinguishesTitles(t *testing.T) {
	assert.NotEqual(t, ContentHash("a", "l"), ContentHash("b", "l"))
	assert.NotEqual(t, ContentHash("a|b", ""), ContentHash("a", "b"))
}

func TestPropertyIdentifierIgnoresWhitespace(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[가-힣A-Za-z0-9&]{1,8}`), 1, 6).Draw(t, "words")
		link := rapid.StringMatching(`https://example\.go\.kr/[a-z0-9]{1,10}`).Draw(t, "link")
		sep := rapid.SampledFrom([]string{" ", "  ", "\t", "\n ", " "}).Draw(t, "sep")
		pad := rapid.SampledFrom([]string{"", " ", "\n", "\t "}).Draw(t, "pad")

		clean := types.Announcement{Title: strings.Join(words, " "), Link: link}
		noisy := types.Announcement{Title: pad + strings.Join(words, sep) + pad, Link: pad + link}

		if Resolve(clean) != Resolve(noisy) {
			t.Fatalf("identifier changed with whitespace: %q vs %q", clean.Title, noisy.Title)
		}
	})
}
