package ai

import (
	"fmt"
	"strings"

	"github.com/shanehull/grantwatch/internal/types"
)

const systemInstruction = `
# [INSTRUCTION]

You summarize Korean government and public-agency support-program announcements
(지원사업 공고) for a small business owner who skims a chat channel.

Write exactly one sentence in Korean, at most 80 characters, stating who may
apply and what support is offered (funding amount, loan, voucher, export
assistance, R&D grant). Do not repeat the title verbatim. Do not invent
amounts, dates or eligibility conditions that are not in the text. If the text
is too thin to say anything useful, describe the program type only.
`

// promptFields lists the announcement fields sent to the model, in order.
var promptFields = []struct {
	label string
	value func(types.Announcement) string
}{
	{"제목", func(a types.Announcement) string { return a.Title }},
	{"소관기관", func(a types.Announcement) string { return a.Organization }},
	{"수행기관", func(a types.Announcement) string { return a.Agency }},
	{"신청기간", func(a types.Announcement) string { return a.ApplicationPeriod }},
	{"해시태그", func(a types.Announcement) string { return a.Hashtags }},
	{"내용", func(a types.Announcement) string { return a.Description }},
}

const maxPromptRunes = 4000

func buildPrompt(a types.Announcement) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following announcement:\n\n---\n")
	for _, f := range promptFields {
		v := strings.TrimSpace(f.value(a))
		if v == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", f.label, v))
	}

	p := sb.String()
	if r := []rune(p); len(r) > maxPromptRunes {
		p = string(r[:maxPromptRunes])
	}
	return p
}
