package source

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/shanehull/grantwatch/internal/types"
)

const (
	BizinfoName     = "bizinfo"
	bizinfoAPIURL   = "https://www.bizinfo.go.kr/uss/rss/bizinfoApi.do"
	bizinfoOrigin   = "https://www.bizinfo.go.kr"
	previewMaxRunes = 500
)

type BizinfoConfig struct {
	APIKey      string
	Endpoint    string
	ResultCount int
	Hashtags    []string
}

// Bizinfo reads the Bizinfo (기업마당) support-program JSON API.
type Bizinfo struct {
	cfg    BizinfoConfig
	client *Client
	log    zerolog.Logger
}

func NewBizinfo(cfg BizinfoConfig, client *Client, log zerolog.Logger) *Bizinfo {
	if cfg.Endpoint == "" {
		cfg.Endpoint = bizinfoAPIURL
	}
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = 200
	}
	return &Bizinfo{cfg: cfg, client: client, log: log.With().Str("adapter", BizinfoName).Logger()}
}

func (b *Bizinfo) Name() string { return BizinfoName }

func (b *Bizinfo) Fields() FieldMap {
	return FieldMap{
		Title:             []string{"title", "pblancNm"},
		Description:       []string{"description", "bsnsSumryCn"},
		Organization:      []string{"author", "jrsdInsttNm"},
		Agency:            []string{"excInsttNm"},
		Hashtags:          []string{"hashTags", "hashtags"},
		ApplicationPeriod: []string{"reqstDt", "reqstBeginEndDe"},
		PostedDate:        []string{"pubDate", "creatPnttm"},
		Link:              []string{"link", "pblancUrl"},
		IDs:               []string{"seq", "pblancId", "link"},
	}
}

func (b *Bizinfo) Fetch(ctx context.Context) ([]types.Record, error) {
	params := url.Values{
		"crtfcKey":  {b.cfg.APIKey},
		"dataType":  {"json"},
		"searchCnt": {strconv.Itoa(b.cfg.ResultCount)},
	}
	if len(b.cfg.Hashtags) > 0 {
		params.Set("hashtags", strings.Join(b.cfg.Hashtags, ","))
	}

	body, err := b.client.get(ctx, b.cfg.Endpoint, params, false)
	if err != nil {
		return nil, err
	}

	records := ParseBizinfo(body, b.log)
	for _, r := range records {
		for _, k := range []string{"link", "pblancUrl"} {
			if s, ok := r[k].(string); ok && strings.HasPrefix(strings.TrimSpace(s), "/") {
				r[k] = absolute(bizinfoOrigin, s)
			}
		}
	}
	return records, nil
}

type payloadShape int

const (
	shapeUnknown payloadShape = iota
	shapeArray
	shapeWrappedArray
	shapeWrappedItem
	shapeWrappedItems
)

func (s payloadShape) String() string {
	switch s {
	case shapeArray:
		return "array"
	case shapeWrappedArray:
		return "jsonArray[]"
	case shapeWrappedItem:
		return "jsonArray.item{}"
	case shapeWrappedItems:
		return "jsonArray.item[]"
	}
	return "unknown"
}

func detectShape(data any) payloadShape {
	switch v := data.(type) {
	case []any:
		return shapeArray
	case map[string]any:
		switch inner := v["jsonArray"].(type) {
		case []any:
			return shapeWrappedArray
		case map[string]any:
			switch inner["item"].(type) {
			case map[string]any:
				return shapeWrappedItem
			case []any:
				return shapeWrappedItems
			}
		}
	}
	return shapeUnknown
}

// normalizePayload flattens every known response shape into one list.
func normalizePayload(data any) ([]types.Record, payloadShape) {
	shape := detectShape(data)
	switch shape {
	case shapeArray:
		return objects(data.([]any)), shape
	case shapeWrappedArray:
		return objects(data.(map[string]any)["jsonArray"].([]any)), shape
	case shapeWrappedItem:
		item := data.(map[string]any)["jsonArray"].(map[string]any)["item"].(map[string]any)
		return []types.Record{item}, shape
	case shapeWrappedItems:
		return objects(data.(map[string]any)["jsonArray"].(map[string]any)["item"].([]any)), shape
	}
	return nil, shape
}

func objects(in []any) []types.Record {
	out := make([]types.Record, 0, len(in))
	for _, x := range in {
		if m, ok := x.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// ParseBizinfo decodes an API body. Unrecognized payloads are logged with a
// bounded preview and produce no records.
func ParseBizinfo(body []byte, log zerolog.Logger) []types.Record {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		log.Warn().
			Err(err).
			Str("type", "invalid-json").
			Str("preview", preview(string(body))).
			Msg("bizinfo response is not JSON")
		return nil
	}

	records, shape := normalizePayload(data)
	if shape == shapeUnknown {
		log.Warn().
			Str("type", jsonType(data)).
			Str("preview", preview(previewText(data))).
			Msg("bizinfo response could not be parsed into an announcement list")
		return nil
	}
	log.Debug().Str("shape", shape.String()).Int("records", len(records)).Msg("parsed bizinfo response")
	return records
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	}
	return "unknown"
}

func previewText(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

const previewEllipsis = " ..."

// preview bounds s to previewMaxRunes characters, ellipsis included.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewMaxRunes {
		return s
	}
	keep := previewMaxRunes - utf8.RuneCountInString(previewEllipsis)
	return string([]rune(s)[:keep]) + previewEllipsis
}
