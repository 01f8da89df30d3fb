package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanehull/grantwatch/internal/classify"
	"github.com/shanehull/grantwatch/internal/history"
	"github.com/shanehull/grantwatch/internal/keywords"
	"github.com/shanehull/grantwatch/internal/notify"
	"github.com/shanehull/grantwatch/internal/source"
	"github.com/shanehull/grantwatch/internal/types"
)

const testTaxonomy = `
sources:
  fake: [수출, 융자, R&D, 전북, 충남, 창업]
categories:
  export: [수출]
  financing: [융자]
  rnd: [R&D]
  region_a: [전북]
  region_b: [충남]
`

type fakeAdapter struct {
	records []types.Record
	err     error
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Fields() source.FieldMap {
	return source.FieldMap{
		Title:        []string{"title"},
		Organization: []string{"org"},
		Link:         []string{"link"},
		IDs:          []string{"id"},
	}
}

func (f *fakeAdapter) Fetch(context.Context) ([]types.Record, error) {
	// Hand out copies so a run cannot mutate the fixture.
	out := make([]types.Record, len(f.records))
	for i, r := range f.records {
		c := types.Record{}
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out, f.err
}

type recordingSender struct {
	batches []notify.Batch
	failAt  int
}

func (s *recordingSender) Send(_ context.Context, b notify.Batch) error {
	if s.failAt > 0 && len(s.batches)+1 == s.failAt {
		return errors.New("telegram sendMessage failed: 502")
	}
	s.batches = append(s.batches, b)
	return nil
}

func (s *recordingSender) ids() []string {
	var ids []string
	for _, b := range s.batches {
		ids = append(ids, b.IDs...)
	}
	return ids
}

type fixture struct {
	dir      string
	taxonomy *keywords.Taxonomy
	sender   *recordingSender
	runner   *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tx, err := keywords.Parse([]byte(testTaxonomy))
	require.NoError(t, err)
	sender := &recordingSender{}
	return &fixture{
		dir:      t.TempDir(),
		taxonomy: tx,
		sender:   sender,
		runner:   NewRunner(classify.NewClassifier(tx), sender, nil, zerolog.Nop()),
	}
}

func (f *fixture) source(t *testing.T, a source.Adapter, mode notify.Mode) Source {
	t.Helper()
	store, err := history.Open(context.Background(), history.Config{Dir: f.dir}, a.Name(), "", zerolog.Nop())
	require.NoError(t, err)
	return Source{
		Adapter: a,
		Label:   "테스트",
		Mode:    mode,
		Filter:  classify.NewFilter(f.taxonomy.Source("fake")),
		History: history.NewManager(store, zerolog.Nop()),
	}
}

func rec(id, title string) types.Record {
	return types.Record{"id": id, "title": title, "link": "https://example.com/" + id}
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := &fakeAdapter{records: []types.Record{
		rec("1", "전북 수출 지원"),
		rec("2", "충남 창업 융자"),
		rec("3", "무관한 공지"),
	}}
	src := f.source(t, a, notify.ModeItem)

	rep, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Sent)
	assert.Equal(t, StageDone, rep.Stage)
	assert.ElementsMatch(t, []string{"1", "2"}, f.sender.ids())

	f.sender.batches = nil
	rep, err = f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Sent)
	assert.Equal(t, 0, rep.New)
	assert.Empty(t, f.sender.batches)
}

func TestRunExclusivityAndPriority(t *testing.T) {
	f := newFixture(t)
	a := &fakeAdapter{records: []types.Record{
		rec("1", "전북 수출 융자"),
		rec("2", "충남 R&D 융자"),
		rec("3", "충남 R&D"),
		rec("4", "전북 충남"),
		rec("5", "충남 창업"),
	}}
	src := f.source(t, a, notify.ModeDigest)

	_, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)

	byCategory := map[types.Category][]string{}
	seen := map[string]int{}
	for _, b := range f.sender.batches {
		byCategory[b.Category] = append(byCategory[b.Category], b.IDs...)
		for _, id := range b.IDs {
			seen[id]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s appears in %d batches", id, n)
	}
	assert.Equal(t, map[types.Category][]string{
		types.CategoryExport:    {"1"},
		types.CategoryFinancing: {"2"},
		types.CategoryRnD:       {"3"},
		types.CategoryRegionA:   {"4"},
		types.CategoryRegionB:   {"5"},
	}, byCategory)

	var order []types.Category
	for _, b := range f.sender.batches {
		order = append(order, b.Category)
	}
	assert.Equal(t, types.Categories, order)
}

func TestRunCapsCandidates(t *testing.T) {
	f := newFixture(t)
	var records []types.Record
	for i := 0; i < 500; i++ {
		records = append(records, rec(fmt.Sprintf("id-%03d", i), "수출 지원 "+fmt.Sprint(i)))
	}
	src := f.source(t, &fakeAdapter{records: records}, notify.ModeItem)
	src.MaxPerRun = 60

	rep, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 500, rep.Relevant)
	assert.Equal(t, 60, rep.Capped)
	assert.Equal(t, 60, rep.Sent)
	assert.Equal(t, 60, src.History.Len())
	assert.Equal(t, "id-000", f.sender.ids()[0])
	assert.Equal(t, "id-059", f.sender.ids()[59])

	// The next run picks up where this one stopped.
	f.sender.batches = nil
	rep, err = f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 440, rep.New)
	assert.Equal(t, "id-060", f.sender.ids()[0])
	assert.Equal(t, 120, src.History.Len())
}

func TestRunCapSkipsUnclassified(t *testing.T) {
	f := newFixture(t)
	var records []types.Record
	for i := 0; i < 5; i++ {
		records = append(records, rec(fmt.Sprintf("menu-%d", i), "창업 메뉴 항목 "+fmt.Sprint(i)))
	}
	for i := 0; i < 5; i++ {
		records = append(records, rec(fmt.Sprintf("export-%d", i), "수출 공고 "+fmt.Sprint(i)))
	}
	src := f.source(t, &fakeAdapter{records: records}, notify.ModeItem)
	src.MaxPerRun = 5

	rep, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Relevant)
	assert.Equal(t, 5, rep.Classified)
	assert.Equal(t, 5, rep.Capped)
	assert.Equal(t, 5, rep.Sent)
	assert.Equal(t, []string{"export-0", "export-1", "export-2", "export-3", "export-4"}, f.sender.ids())
	assert.Equal(t, 5, src.History.Len())
	assert.False(t, src.History.Has("menu-0"))

	f.sender.batches = nil
	rep, err = f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Relevant)
	assert.Equal(t, 0, rep.Classified)
	assert.Equal(t, 0, rep.Sent)
	assert.Equal(t, 5, src.History.Len())
}

func TestRunDoesNotMarkUnclassified(t *testing.T) {
	f := newFixture(t)
	a := &fakeAdapter{records: []types.Record{rec("1", "창업 교육")}}
	src := f.source(t, a, notify.ModeItem)

	rep, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Relevant)
	assert.Equal(t, 0, rep.Classified)
	assert.Empty(t, f.sender.batches)
	assert.False(t, src.History.Has("1"))

	_, err = os.Stat(filepath.Join(f.dir, "seen_fake.json"))
	assert.True(t, os.IsNotExist(err), "state must not be written when nothing was sent")
}

func TestRunDigestOverflowResurfaces(t *testing.T) {
	f := newFixture(t)
	var records []types.Record
	for i := 0; i < 13; i++ {
		records = append(records, rec(fmt.Sprintf("r%02d", i), "R&D 과제"))
	}
	src := f.source(t, &fakeAdapter{records: records}, notify.ModeDigest)
	src.DigestMax = 10

	rep, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, f.sender.batches, 1)
	assert.Equal(t, 13, f.sender.batches[0].Total)
	assert.Equal(t, 10, rep.Marked)

	f.sender.batches = nil
	_, err = f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"r10", "r11", "r12"}, f.sender.ids())
}

func TestRunSendFailurePersistsSuccesses(t *testing.T) {
	f := newFixture(t)
	f.sender.failAt = 3
	a := &fakeAdapter{records: []types.Record{
		rec("1", "수출 A"), rec("2", "수출 B"), rec("3", "수출 C"), rec("4", "수출 D"),
	}}
	src := f.source(t, a, notify.ModeItem)

	rep, err := f.runner.Run(context.Background(), src)
	require.Error(t, err)
	assert.Equal(t, 2, rep.Sent)

	store, err := history.Open(context.Background(), history.Config{Dir: f.dir}, "fake", "", zerolog.Nop())
	require.NoError(t, err)
	reloaded := history.NewManager(store, zerolog.Nop())
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, []string{"1", "2"}, reloaded.Sorted())
}

func TestRunFetchErrorLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	src := f.source(t, &fakeAdapter{err: errors.New("received non-OK status code 500")}, notify.ModeItem)

	rep, err := f.runner.Run(context.Background(), src)
	require.Error(t, err)
	assert.Equal(t, StageFetching, rep.Stage)
	assert.Empty(t, f.sender.batches)
}

func TestRunDropsDuplicatesAndUnusable(t *testing.T) {
	f := newFixture(t)
	a := &fakeAdapter{records: []types.Record{
		rec("1", "수출 A"),
		rec("1", "수출 A (중복)"),
		{"id": "9"},
		{"title": "  수출  안내 ", "link": ""},
		{"title": "수출 안내", "link": ""},
	}}
	src := f.source(t, a, notify.ModeItem)

	rep, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Usable)
	assert.Equal(t, 2, rep.New)
	assert.Equal(t, 2, rep.Sent)
}

func TestRunBizinfoEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := newFixture(t)
	client := source.NewClient(time.Second, zerolog.Nop())
	src := f.source(t, source.NewBizinfo(source.BizinfoConfig{Endpoint: srv.URL}, client, zerolog.Nop()), notify.ModeItem)

	rep, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Fetched)
	assert.Equal(t, StageDone, rep.Stage)
	assert.Empty(t, f.sender.batches)

	_, err = os.Stat(filepath.Join(f.dir, "seen_bizinfo.json"))
	assert.True(t, os.IsNotExist(err))
}

type stubSummarizer struct{ fail bool }

func (s stubSummarizer) Summarize(_ context.Context, a types.Announcement) (string, error) {
	if s.fail {
		return "", errors.New("quota exceeded")
	}
	return "요약: " + a.Title, nil
}

func TestRunSummaries(t *testing.T) {
	f := newFixture(t)
	f.runner = NewRunner(classify.NewClassifier(f.taxonomy), f.sender, stubSummarizer{}, zerolog.Nop())
	src := f.source(t, &fakeAdapter{records: []types.Record{rec("1", "수출 A")}}, notify.ModeItem)

	rep, err := f.runner.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summarized)
	assert.Contains(t, f.sender.batches[0].Text, "• 요약: 요약: 수출 A")

	f2 := newFixture(t)
	f2.runner = NewRunner(classify.NewClassifier(f2.taxonomy), f2.sender, stubSummarizer{fail: true}, zerolog.Nop())
	src2 := f2.source(t, &fakeAdapter{records: []types.Record{rec("1", "수출 A")}}, notify.ModeItem)

	rep, err = f2.runner.Run(context.Background(), src2)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Summarized)
	assert.Equal(t, 1, rep.Sent)
	assert.NotContains(t, f2.sender.batches[0].Text, "요약")
}

type namedAdapter struct {
	fakeAdapter
	name string
}

func (n *namedAdapter) Name() string { return n.name }

func TestRunAllContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	broken := &namedAdapter{name: "broken", fakeAdapter: fakeAdapter{err: errors.New("timeout")}}
	working := &namedAdapter{name: "working", fakeAdapter: fakeAdapter{records: []types.Record{rec("1", "수출 A")}}}

	reports, err := f.runner.RunAll(context.Background(), []Source{
		f.source(t, broken, notify.ModeItem),
		f.source(t, working, notify.ModeItem),
	}, 10*time.Millisecond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[1].Sent)
	assert.Equal(t, []string{"1"}, f.sender.ids())
}

func TestRunAllStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	a := &namedAdapter{name: "a", fakeAdapter: fakeAdapter{}}
	b := &namedAdapter{name: "b", fakeAdapter: fakeAdapter{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports, err := f.runner.RunAll(ctx, []Source{f.source(t, a, notify.ModeItem), f.source(t, b, notify.ModeItem)}, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, reports, 1)
}
