/*
Package pipeline runs one poll of each configured source: load the seen-set,
fetch, normalize, filter, classify, batch, deliver and persist.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanehull/grantwatch/internal/ai"
	"github.com/shanehull/grantwatch/internal/classify"
	"github.com/shanehull/grantwatch/internal/history"
	"github.com/shanehull/grantwatch/internal/ident"
	"github.com/shanehull/grantwatch/internal/notify"
	"github.com/shanehull/grantwatch/internal/source"
	"github.com/shanehull/grantwatch/internal/types"
)

const DefaultMaxPerRun = 30

// Stage names as they appear in logs and reports.
const (
	StageLoadingSeen = "loading-seen"
	StageFetching    = "fetching"
	StageNormalizing = "normalizing"
	StageFiltering   = "filtering"
	StageClassifying = "classifying"
	StageBatching    = "batching"
	StageNotifying   = "notifying"
	StagePersisting  = "persisting"
	StageDone        = "done"
)

// Source is everything the runner needs to poll one adapter.
type Source struct {
	Adapter   source.Adapter
	Label     string
	Mode      notify.Mode
	MaxPerRun int
	DigestMax int
	Pace      time.Duration
	Filter    *classify.Filter
	History   *history.Manager
}

// Report holds per-stage survivor counts for one source run.
type Report struct {
	Source     string
	Stage      string
	Fetched    int
	Usable     int
	New        int
	Relevant   int
	Capped     int
	Classified int
	Summarized int
	Batches    int
	Sent       int
	Marked     int
	SeenTotal  int
}

type Runner struct {
	classifier *classify.Classifier
	sender     notify.Sender
	summarizer ai.Summarizer
	log        zerolog.Logger
}

// NewRunner builds a runner. summarizer may be nil.
func NewRunner(classifier *classify.Classifier, sender notify.Sender, summarizer ai.Summarizer, log zerolog.Logger) *Runner {
	return &Runner{
		classifier: classifier,
		sender:     sender,
		summarizer: summarizer,
		log:        log,
	}
}

// Run polls one source. Fetch and send failures are returned; on a send
// failure the batches delivered before it are still persisted.
func (r *Runner) Run(ctx context.Context, src Source) (Report, error) {
	name := src.Adapter.Name()
	log := r.log.With().Str("source", name).Logger()
	rep := Report{Source: name}

	stage := func(s string) {
		rep.Stage = s
		log.Debug().Str("stage", s).Msg("stage")
	}
	done := func() (Report, error) {
		stage(StageDone)
		rep.SeenTotal = src.History.Len()
		return rep, nil
	}

	stage(StageLoadingSeen)
	if err := src.History.Load(ctx); err != nil {
		return rep, err
	}

	stage(StageFetching)
	records, err := src.Adapter.Fetch(ctx)
	if err != nil {
		return rep, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	rep.Fetched = len(records)
	log.Info().Int("fetched", rep.Fetched).Msg("fetched records")
	if rep.Fetched == 0 {
		return done()
	}

	stage(StageNormalizing)
	fresh := r.fresh(records, src, &rep)
	if len(fresh) == 0 {
		log.Info().Msg("nothing new")
		return done()
	}

	stage(StageFiltering)
	var relevant []types.Candidate
	for _, c := range fresh {
		if src.Filter.Relevant(c.Announcement) {
			relevant = append(relevant, c)
		}
	}
	rep.Relevant = len(relevant)
	if rep.Relevant == 0 {
		log.Info().Int("new", rep.New).Msg("no relevant announcements")
		return done()
	}

	stage(StageClassifying)
	var classified []types.Candidate
	for _, c := range relevant {
		c.Category = r.classifier.Classify(c.Announcement)
		if c.Category == types.CategoryNone {
			log.Debug().Str("id", c.ID).Str("title", c.Title).Msg("unclassified, skipping")
			continue
		}
		classified = append(classified, c)
	}
	rep.Classified = len(classified)
	if rep.Classified == 0 {
		log.Info().Int("relevant", rep.Relevant).Msg("no classified announcements")
		return done()
	}

	// The cap counts deliverable candidates only. Unclassified records are
	// never marked seen and would otherwise hold the front slots every run.
	limit := src.MaxPerRun
	if limit <= 0 {
		limit = DefaultMaxPerRun
	}
	if len(classified) > limit {
		classified = classified[:limit]
	}
	rep.Capped = len(classified)

	if src.Mode != notify.ModeDigest && r.summarizer != nil {
		rep.Summarized = r.summarize(ctx, classified, log)
	}

	stage(StageBatching)
	batches := notify.Format(src.Mode, src.Label, classified, src.DigestMax)
	rep.Batches = len(batches)
	if rep.Batches == 0 {
		return done()
	}

	stage(StageNotifying)
	notifier := notify.NewNotifier(r.sender, src.Pace, log)
	sent, sendErr := notifier.Deliver(ctx, batches, func(b notify.Batch) {
		src.History.Add(b.IDs...)
		rep.Marked += len(b.IDs)
	})
	rep.Sent = sent

	if sent > 0 {
		stage(StagePersisting)
		if err := src.History.Save(ctx); err != nil {
			return rep, errors.Join(sendErr, err)
		}
	}

	log.Info().
		Int("sent", rep.Sent).
		Int("batches", rep.Batches).
		Int("marked", rep.Marked).
		Msg("delivered")

	if sendErr != nil {
		return rep, fmt.Errorf("failed to deliver %s: %w", name, sendErr)
	}
	return done()
}

// fresh normalizes records and keeps usable, unseen, first-occurrence ones.
func (r *Runner) fresh(records []types.Record, src Source, rep *Report) []types.Candidate {
	fm := src.Adapter.Fields()
	inRun := make(map[string]struct{}, len(records))

	var out []types.Candidate
	for _, rec := range records {
		a := source.Normalize(rec, fm)
		if !a.Usable() {
			continue
		}
		rep.Usable++

		id := ident.Resolve(a)
		if id == "" {
			continue
		}
		if _, dup := inRun[id]; dup {
			continue
		}
		inRun[id] = struct{}{}
		if src.History.Has(id) {
			continue
		}
		out = append(out, types.Candidate{Announcement: a, ID: id})
	}
	rep.New = len(out)
	return out
}

func (r *Runner) summarize(ctx context.Context, cands []types.Candidate, log zerolog.Logger) int {
	n := 0
	for i := range cands {
		s, err := r.summarizer.Summarize(ctx, cands[i].Announcement)
		if err != nil {
			log.Warn().Err(err).Str("id", cands[i].ID).Msg("summary failed")
			if ctx.Err() != nil {
				return n
			}
			continue
		}
		cands[i].Summary = s
		n++
	}
	return n
}

// RunAll polls sources in order with a pause between them. A failing source
// does not stop the others; all errors are joined.
func (r *Runner) RunAll(ctx context.Context, sources []Source, pause time.Duration) ([]Report, error) {
	var reports []Report
	var errs []error

	for i, src := range sources {
		if i > 0 && pause > 0 {
			select {
			case <-ctx.Done():
				return reports, errors.Join(append(errs, ctx.Err())...)
			case <-time.After(pause):
			}
		}

		rep, err := r.Run(ctx, src)
		reports = append(reports, rep)
		if err != nil {
			r.log.Error().Err(err).Str("source", rep.Source).Str("stage", rep.Stage).Msg("source run failed")
			errs = append(errs, err)
			if ctx.Err() != nil {
				return reports, errors.Join(errs...)
			}
		}
	}
	return reports, errors.Join(errs...)
}
