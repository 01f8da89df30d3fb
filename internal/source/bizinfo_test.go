package source

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bizinfoItem = `{"seq":"101","title":"2026 수출바우처","link":"/web/lay1/bbs/S1T122C128/AS/74/view.do?pblancId=PBLN_1","author":"산업통상자원부","hashTags":"수출,전북"}`

func TestParseBizinfoShapesAreEquivalent(t *testing.T) {
	bodies := map[string]string{
		"array":            `[` + bizinfoItem + `]`,
		"jsonArray[]":      `{"jsonArray":[` + bizinfoItem + `]}`,
		"jsonArray.item{}": `{"jsonArray":{"item":` + bizinfoItem + `}}`,
		"jsonArray.item[]": `{"jsonArray":{"item":[` + bizinfoItem + `]}}`,
	}

	b := NewBizinfo(BizinfoConfig{}, nil, zerolog.Nop())
	var want []string
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			records := ParseBizinfo([]byte(body), zerolog.Nop())
			require.Len(t, records, 1)
			a := Normalize(records[0], b.Fields())
			got := []string{a.Title, a.Organization, a.Hashtags, a.IDCandidates[0]}
			if want == nil {
				want = got
			}
			assert.Equal(t, want, got)
			assert.Equal(t, "2026 수출바우처", a.Title)
		})
	}
}

func TestParseBizinfoSkipsNonObjects(t *testing.T) {
	records := ParseBizinfo([]byte(`{"jsonArray":[1,"x",null,`+bizinfoItem+`]}`), zerolog.Nop())
	assert.Len(t, records, 1)
}

func TestParseBizinfoUnknownShapes(t *testing.T) {
	for _, body := range []string{`{}`, `{"jsonArray":"none"}`, `{"jsonArray":{"item":7}}`, `"text"`, `null`, `not json`} {
		var logs bytes.Buffer
		records := ParseBizinfo([]byte(body), zerolog.New(&logs))
		assert.Empty(t, records, body)
		assert.Contains(t, logs.String(), `"level":"warn"`, body)
	}
}

func TestParseBizinfoLogsTypeAndPreview(t *testing.T) {
	var logs bytes.Buffer
	ParseBizinfo([]byte(`{}`), zerolog.New(&logs))
	assert.Contains(t, logs.String(), `"type":"object"`)
	assert.Contains(t, logs.String(), `"preview":"{}"`)
}

func TestPreviewTruncates(t *testing.T) {
	short := strings.Repeat("가", previewMaxRunes)
	assert.Equal(t, short, preview(short))

	long := strings.Repeat("가", previewMaxRunes+10)
	got := preview(long)
	assert.True(t, strings.HasSuffix(got, " ..."))
	assert.Equal(t, previewMaxRunes, len([]rune(got)))
	assert.Equal(t, strings.Repeat("가", previewMaxRunes-4), strings.TrimSuffix(got, " ..."))

	edge := strings.Repeat("가", previewMaxRunes+1)
	assert.Equal(t, previewMaxRunes, len([]rune(preview(edge))))
}

func TestBizinfoFetch(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonArray":[` + bizinfoItem + `]}`))
	}))
	defer srv.Close()

	b := NewBizinfo(BizinfoConfig{
		APIKey:   "key",
		Endpoint: srv.URL,
		Hashtags: []string{"전북", "충남", "수출"},
	}, NewClient(time.Second, zerolog.Nop()), zerolog.Nop())

	records, err := b.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []string{"key"}, query["crtfcKey"])
	assert.Equal(t, []string{"json"}, query["dataType"])
	assert.Equal(t, []string{"200"}, query["searchCnt"])
	assert.Equal(t, []string{"전북,충남,수출"}, query["hashtags"])

	a := Normalize(records[0], b.Fields())
	assert.Equal(t, "https://www.bizinfo.go.kr/web/lay1/bbs/S1T122C128/AS/74/view.do?pblancId=PBLN_1", a.Link)
}

func TestBizinfoFetchEmptyObjectIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b := NewBizinfo(BizinfoConfig{Endpoint: srv.URL}, NewClient(time.Second, zerolog.Nop()), zerolog.Nop())
	records, err := b.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBizinfoFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewBizinfo(BizinfoConfig{Endpoint: srv.URL}, NewClient(time.Second, zerolog.Nop()), zerolog.Nop())
	_, err := b.Fetch(context.Background())
	require.Error(t, err)
}
