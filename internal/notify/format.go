package notify

import (
	"fmt"
	"strings"

	"github.com/shanehull/grantwatch/internal/types"
)

const (
	DefaultDigestMax = 10
	noTitle          = "(제목 없음)"
)

type Mode string

const (
	ModeItem   Mode = "item"
	ModeDigest Mode = "digest"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeItem:
		return ModeItem, true
	case ModeDigest:
		return ModeDigest, true
	}
	return "", false
}

// Batch is one outbound message and the identifiers it accounts for.
type Batch struct {
	Source   string
	Category types.Category
	Text     string
	IDs      []string
	Total    int
	Entries  []types.Candidate
}

// Subject is the first line of the message, used where a channel wants one.
func (b Batch) Subject() string {
	subject, _, _ := strings.Cut(b.Text, "\n")
	return strings.TrimSpace(subject)
}

// Format renders candidates in the given mode.
func Format(mode Mode, label string, cands []types.Candidate, digestMax int) []Batch {
	if mode == ModeDigest {
		return FormatDigests(label, cands, digestMax)
	}
	return FormatItems(label, cands)
}

// FormatItems renders one message per candidate.
func FormatItems(label string, cands []types.Candidate) []Batch {
	batches := make([]Batch, 0, len(cands))
	for _, c := range cands {
		var sb strings.Builder
		fmt.Fprintf(&sb, "📌 [%s 신규 지원사업 알림]\n", label)
		fmt.Fprintf(&sb, "• 분류: %s\n", c.Category.Label())
		fmt.Fprintf(&sb, "• 제목: %s\n", orDefault(c.Title, noTitle))
		fmt.Fprintf(&sb, "• 소관: %s\n", orDefault(c.Organization, "-"))
		fmt.Fprintf(&sb, "• 신청기간: %s\n", orDefault(c.ApplicationPeriod, "-"))
		fmt.Fprintf(&sb, "• 해시태그: %s\n", orDefault(c.Hashtags, "-"))
		fmt.Fprintf(&sb, "• 링크: %s", orDefault(c.Link, "-"))
		if s := strings.TrimSpace(c.Summary); s != "" {
			fmt.Fprintf(&sb, "\n• 요약: %s", s)
		}

		batches = append(batches, Batch{
			Source:   label,
			Category: c.Category,
			Text:     sb.String(),
			IDs:      []string{c.ID},
			Total:    1,
			Entries:  []types.Candidate{c},
		})
	}
	return batches
}

// FormatDigests renders one message per non-empty category in priority
// order. At most limit entries are shown; the rest are left out of IDs.
func FormatDigests(label string, cands []types.Candidate, limit int) []Batch {
	if limit <= 0 {
		limit = DefaultDigestMax
	}

	grouped := make(map[types.Category][]types.Candidate)
	for _, c := range cands {
		if c.Category == types.CategoryNone {
			continue
		}
		grouped[c.Category] = append(grouped[c.Category], c)
	}

	var batches []Batch
	for _, cat := range types.Categories {
		items := grouped[cat]
		if len(items) == 0 {
			continue
		}
		shown := items
		if len(shown) > limit {
			shown = shown[:limit]
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📌 [%s · %s]\n", label, cat.Label())
		fmt.Fprintf(&sb, "총 %d건 (표시 %d건)\n", len(items), len(shown))

		ids := make([]string, 0, len(shown))
		for i, c := range shown {
			fmt.Fprintf(&sb, "\n%d. %s\n", i+1, orDefault(c.Title, noTitle))
			if c.Organization != "" {
				fmt.Fprintf(&sb, "   - 기관: %s\n", c.Organization)
			}
			if c.ApplicationPeriod != "" {
				fmt.Fprintf(&sb, "   - 신청기간: %s\n", c.ApplicationPeriod)
			}
			if c.PostedDate != "" {
				fmt.Fprintf(&sb, "   - 공고일자: %s\n", c.PostedDate)
			}
			fmt.Fprintf(&sb, "   - 링크: %s", orDefault(c.Link, "-"))
			if i < len(shown)-1 {
				sb.WriteString("\n")
			}
			ids = append(ids, c.ID)
		}

		batches = append(batches, Batch{
			Source:   label,
			Category: cat,
			Text:     sb.String(),
			IDs:      ids,
			Total:    len(items),
			Entries:  append([]types.Candidate(nil), shown...),
		})
	}
	return batches
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
