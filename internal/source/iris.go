package source

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/shanehull/grantwatch/internal/types"
)

const (
	IRISName       = "iris"
	irisListURL    = "https://www.iris.go.kr/contents/retrieveBsnsAncmBtinSituListView.do"
	receivingMark  = "접수중"
	sectionMark    = "#### " + receivingMark
	metaPrefix     = "공고번호"
	DefaultIRISMax = 40
)

var (
	orgLinePattern = regexp.MustCompile(`^.+\s>\s.+$`)
	postedPattern  = regexp.MustCompile(`공고일자\s*:\s*(\d{4}-\d{2}-\d{2})`)
	statusPattern  = regexp.MustCompile(`공고상태\s*:\s*(\S+)`)
	statusLabels   = map[string]bool{receivingMark: true, "마감": true, "접수예정": true}
)

type IRISConfig struct {
	URL   string
	Limit int
}

// IRIS scans the IRIS business-announcement listing as flattened text.
type IRIS struct {
	cfg    IRISConfig
	client *Client
	log    zerolog.Logger
}

func NewIRIS(cfg IRISConfig, client *Client, log zerolog.Logger) *IRIS {
	if cfg.URL == "" {
		cfg.URL = irisListURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultIRISMax
	}
	return &IRIS{cfg: cfg, client: client, log: log.With().Str("adapter", IRISName).Logger()}
}

func (i *IRIS) Name() string { return IRISName }

func (i *IRIS) Fields() FieldMap {
	return FieldMap{
		Title:        []string{"title"},
		Organization: []string{"org"},
		PostedDate:   []string{"pub_date"},
		Link:         []string{"link"},
		Status:       []string{"status"},
	}
}

func (i *IRIS) Fetch(ctx context.Context) ([]types.Record, error) {
	body, err := i.client.get(ctx, i.cfg.URL, nil, true)
	if err != nil {
		return nil, err
	}
	lines, err := TextLines(body)
	if err != nil {
		i.log.Warn().Err(err).Msg("failed to parse listing page")
		return nil, nil
	}
	records := ScanReceiving(lines, i.cfg.URL, i.cfg.Limit)
	i.log.Debug().Int("lines", len(lines)).Int("records", len(records)).Msg("scanned listing page")
	return records, nil
}

// TextLines flattens an HTML document into its trimmed, non-empty visible
// text nodes in document order.
func TextLines(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			for _, ln := range strings.Split(n.Data, "\n") {
				if ln = strings.TrimSpace(ln); ln != "" {
					lines = append(lines, ln)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return lines, nil
}

// sliceFromReceiving drops everything before the "currently receiving"
// section, falling back to the first bare status word.
func sliceFromReceiving(lines []string) []string {
	for i, ln := range lines {
		if strings.Contains(ln, sectionMark) {
			return trimBefore(lines, i, sectionMark)
		}
	}
	for i, ln := range lines {
		if strings.Contains(ln, receivingMark) {
			return trimBefore(lines, i, receivingMark)
		}
	}
	return lines
}

func trimBefore(lines []string, i int, mark string) []string {
	out := append([]string(nil), lines[i:]...)
	head := out[0][strings.Index(out[0], mark):]
	out[0] = head
	return out
}

type scanState int

const (
	seekingOrg scanState = iota
	seekingTitle
	seekingMeta
)

type irisBlock struct {
	org, title, meta string
}

// ScanReceiving walks the flattened lines with a cursor and emits one record
// per organization / title / metadata block whose status is receiving.
func ScanReceiving(lines []string, link string, limit int) []types.Record {
	lines = sliceFromReceiving(lines)

	var records []types.Record
	emit := func(b irisBlock) {
		if b.title == "" {
			return
		}
		var posted, status string
		if m := postedPattern.FindStringSubmatch(b.meta); m != nil {
			posted = m[1]
		}
		if m := statusPattern.FindStringSubmatch(b.meta); m != nil {
			status = m[1]
		}
		if status != "" && !strings.Contains(status, receivingMark) {
			return
		}
		records = append(records, types.Record{
			"org":      b.org,
			"title":    b.title,
			"pub_date": posted,
			"status":   status,
			"link":     link,
		})
	}

	state := seekingOrg
	var cur irisBlock
	i := 0
	for i < len(lines) && (limit <= 0 || len(records) < limit) {
		ln := lines[i]
		switch state {
		case seekingOrg:
			if orgLinePattern.MatchString(ln) {
				cur = irisBlock{org: ln}
				state = seekingTitle
			}
			i++
		case seekingTitle, seekingMeta:
			switch {
			case strings.HasPrefix(ln, metaPrefix):
				cur.meta = ln
				emit(cur)
				state = seekingOrg
				i++
			case statusLabels[ln]:
				i++
			case orgLinePattern.MatchString(ln):
				// Block without metadata; this line opens the next one.
				emit(cur)
				state = seekingOrg
			case state == seekingTitle:
				cur.title = ln
				state = seekingMeta
				i++
			default:
				i++
			}
		}
	}
	if state != seekingOrg && (limit <= 0 || len(records) < limit) {
		emit(cur)
	}
	return records
}
