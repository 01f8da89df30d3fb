package source

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/shanehull/grantwatch/internal/ident"
	"github.com/shanehull/grantwatch/internal/types"
)

const (
	KStartupName        = "kstartup"
	kstartupOrigin      = "https://www.k-startup.go.kr"
	kstartupOngoingURL  = "https://www.k-startup.go.kr/web/contents/bizpbanc-ongoing.do"
	minTitleRunes       = 6
	DefaultAllowPattern = `^https?://`
)

type KStartupConfig struct {
	URLs         []string
	Origin       string
	AllowPattern string
}

// KStartup collects announcement anchors from the K-Startup listing pages.
// The markup is not stable, so only the anchor text and href are used.
type KStartup struct {
	cfg    KStartupConfig
	allow  *regexp.Regexp
	client *Client
	log    zerolog.Logger
}

func NewKStartup(cfg KStartupConfig, client *Client, log zerolog.Logger) (*KStartup, error) {
	if len(cfg.URLs) == 0 {
		cfg.URLs = []string{kstartupOngoingURL}
	}
	if cfg.Origin == "" {
		cfg.Origin = kstartupOrigin
	}
	if cfg.AllowPattern == "" {
		cfg.AllowPattern = DefaultAllowPattern
	}
	allow, err := regexp.Compile(cfg.AllowPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid kstartup allow pattern %q: %w", cfg.AllowPattern, err)
	}
	return &KStartup{
		cfg:    cfg,
		allow:  allow,
		client: client,
		log:    log.With().Str("adapter", KStartupName).Logger(),
	}, nil
}

func (k *KStartup) Name() string { return KStartupName }

func (k *KStartup) Fields() FieldMap {
	return FieldMap{
		Title: []string{"title"},
		Link:  []string{"link"},
	}
}

func (k *KStartup) Fetch(ctx context.Context) ([]types.Record, error) {
	var records []types.Record
	seen := make(map[string]struct{})

	for _, u := range k.cfg.URLs {
		body, err := k.client.get(ctx, u, nil, true)
		if err != nil {
			return nil, err
		}
		page, err := ParseAnchors(body, k.cfg.Origin, k.allow)
		if err != nil {
			k.log.Warn().Err(err).Str("url", u).Msg("failed to parse listing page")
			continue
		}
		for _, r := range page {
			id := ident.ContentHash(r["title"].(string), r["link"].(string))
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			records = append(records, r)
		}
		k.log.Debug().Str("url", u).Int("anchors", len(page)).Msg("parsed listing page")
	}
	return records, nil
}

// ParseAnchors returns {title, link} records for every anchor whose text is
// long enough to be a title and whose resolved link passes allow.
func ParseAnchors(body []byte, origin string, allow *regexp.Regexp) ([]types.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var records []types.Record
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		title := strings.Join(strings.Fields(s.Text()), " ")
		if utf8.RuneCountInString(title) < minTitleRunes {
			return
		}
		href, _ := s.Attr("href")
		link := absolute(origin, href)
		if link == "" {
			return
		}
		if allow != nil && !allow.MatchString(link) {
			return
		}
		records = append(records, types.Record{"title": title, "link": link})
	})
	return records, nil
}
