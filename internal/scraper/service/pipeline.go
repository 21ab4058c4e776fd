package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rizkirmdhn/catcast/internal/catalog"
	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/messaging"
	"github.com/rizkirmdhn/catcast/internal/metrics"
	"github.com/rizkirmdhn/catcast/internal/playlist"
	"github.com/rizkirmdhn/catcast/internal/retry"
	"github.com/rizkirmdhn/catcast/internal/stream"
	"github.com/rizkirmdhn/catcast/pkg/models"
	"github.com/sirupsen/logrus"
)

// Default pacing between upstream requests
const (
	DefaultChannelDelay = 300 * time.Millisecond
	DefaultPageDelay    = time.Second
)

// PageFetcher returns the records of one catalog page
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) catalog.Page
}

// StreamResolver finds the stream of one channel
type StreamResolver interface {
	Resolve(ctx context.Context, shortname string) stream.Result
}

// DocumentSink persists a finished document
type DocumentSink interface {
	Write(doc *playlist.Document) error
}

// PageSummary counts what happened to one page
type PageSummary struct {
	Page    int    `json:"page"`
	Outcome string `json:"outcome"`
	Records int    `json:"records"`
	Valid   int    `json:"valid"`
	Emitted int    `json:"emitted"`
}

// Summary describes a finished run
type Summary struct {
	RunID    string        `json:"runId"`
	Pages    []PageSummary `json:"pages"`
	Stats    models.Stats  `json:"stats"`
	Duration time.Duration `json:"duration"`
}

// Emitted is the number of entries in the written document
func (s *Summary) Emitted() int {
	return s.Stats.ChannelsEmitted
}

// Pipeline runs fetch, validate, resolve and assemble over a page list and
// writes the document once at the end. A run is strictly sequential.
type Pipeline struct {
	fetcher   PageFetcher
	resolver  StreamResolver
	assembler *playlist.Assembler
	sink      DocumentSink
	log       logrus.FieldLogger

	events   messaging.Publisher
	exchange string

	channelDelay time.Duration
	pageDelay    time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithEvents publishes run events to exchange through pub
func WithEvents(pub messaging.Publisher, exchange string) Option {
	return func(p *Pipeline) {
		p.events = pub
		p.exchange = exchange
	}
}

// WithPacing sets the delay after each channel and after each page
func WithPacing(channelDelay, pageDelay time.Duration) Option {
	return func(p *Pipeline) {
		p.channelDelay = channelDelay
		p.pageDelay = pageDelay
	}
}

// WithSleep replaces the pacing timer
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) {
		p.sleep = sleep
	}
}

// NewPipeline wires the run stages together
func NewPipeline(fetcher PageFetcher, resolver StreamResolver, assembler *playlist.Assembler, sink DocumentSink, log logrus.FieldLogger, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:      fetcher,
		resolver:     resolver,
		assembler:    assembler,
		sink:         sink,
		log:          log,
		channelDelay: DefaultChannelDelay,
		pageDelay:    DefaultPageDelay,
		sleep:        retry.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes pages in order, each page once. An empty runID gets a fresh UUID.
// Only a sink failure or a cancelled context make Run return an error;
// upstream failures shrink the document instead. A cancelled run writes nothing.
func (p *Pipeline) Run(ctx context.Context, runID string, pages []int) (*Summary, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	pages = config.UniquePages(pages)
	started := time.Now()
	summary := &Summary{RunID: runID, Pages: make([]PageSummary, 0, len(pages))}
	doc := playlist.NewDocument()

	log := p.log.WithFields(logrus.Fields{
		"run_id": runID,
	})
	log.WithField("pages", config.FormatPages(pages)).Info("Starting playlist run")

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return p.abort(ctx, summary, started, err)
		}

		ps, err := p.processPage(ctx, log, summary, doc, page)
		summary.Pages = append(summary.Pages, ps)
		if err != nil {
			return p.abort(ctx, summary, started, err)
		}
		summary.Stats.PagesProcessed++

		if err := p.sleep(ctx, p.pageDelay); err != nil {
			return p.abort(ctx, summary, started, err)
		}
	}

	if err := p.sink.Write(doc); err != nil {
		err = fmt.Errorf("failed to write playlist: %w", err)
		return p.abort(ctx, summary, started, err)
	}

	summary.Duration = time.Since(started)
	metrics.ObserveRun(summary.Duration)
	stats := summary.Stats
	p.publish(ctx, models.GenerateLog{RunID: runID, Status: models.StatusCompleted, Stats: &stats})

	log.WithFields(logrus.Fields{
		"pages_processed":  summary.Stats.PagesProcessed,
		"channels_seen":    summary.Stats.ChannelsSeen,
		"channels_emitted": summary.Stats.ChannelsEmitted,
		"duration":         summary.Duration.Round(time.Millisecond).String(),
	}).Info("Playlist run complete")

	return summary, nil
}

// processPage handles one page. The error is non-nil only when ctx ends.
func (p *Pipeline) processPage(ctx context.Context, log *logrus.Entry, summary *Summary, doc *playlist.Document, page int) (PageSummary, error) {
	runID := summary.RunID
	log = log.WithField("page", page)

	p.publish(ctx, models.GenerateLog{RunID: runID, Status: models.StatusPageStarted, Page: page})
	log.Info("Processing catalog page")

	fetched := p.fetcher.FetchPage(ctx, page)
	metrics.RecordAttempts(metrics.TargetCatalog, fetched.Outcome.String(), fetched.Attempts)

	ps := PageSummary{
		Page:    page,
		Outcome: fetched.Outcome.String(),
		Records: len(fetched.Records),
	}

	if len(fetched.Records) == 0 {
		if err := ctx.Err(); err != nil {
			return ps, err
		}
		event := models.GenerateLog{RunID: runID, Status: models.StatusPageEmpty, Page: page}
		if fetched.Err != nil {
			event.Error = fetched.Err.Error()
		}
		p.publish(ctx, event)
		log.WithField("outcome", ps.Outcome).Info("Catalog page has no channels")
		return ps, nil
	}

	for i := range fetched.Records {
		record := fetched.Records[i]
		summary.Stats.ChannelsSeen++

		if !playlist.IsValid(record) {
			log.WithFields(logrus.Fields{
				"id":        record.ID.String(),
				"shortname": record.Shortname,
			}).Debug("Skipping incomplete channel record")
			p.publish(ctx, models.GenerateLog{RunID: runID, Status: models.StatusSkippedInvalid, Page: page, Channel: &record})
			continue
		}
		ps.Valid++

		res := p.resolver.Resolve(ctx, record.Shortname)
		metrics.RecordAttempts(metrics.TargetChannel, res.Outcome.String(), res.Attempts)

		if res.Found {
			doc.Append(page, p.assembler.Emit(record, res.Stream, page))
			ps.Emitted++
			summary.Stats.ChannelsEmitted++

			stats := summary.Stats
			p.publish(ctx, models.GenerateLog{
				RunID:   runID,
				Status:  models.StatusResolved,
				Page:    page,
				Channel: &record,
				Stream:  &res.Stream,
				Stats:   &stats,
			})
			log.WithFields(logrus.Fields{
				"shortname": record.Shortname,
				"stream":    res.Stream.URL,
			}).Debug("Channel added")
		} else {
			if err := ctx.Err(); err != nil {
				return ps, err
			}
			event := models.GenerateLog{RunID: runID, Status: models.StatusNotFound, Page: page, Channel: &record}
			if res.Err != nil {
				event.Error = res.Err.Error()
			}
			p.publish(ctx, event)
			log.WithFields(logrus.Fields{
				"shortname": record.Shortname,
				"attempts":  res.Attempts,
				"outcome":   res.Outcome.String(),
			}).Warn("No stream found for channel")
		}

		if err := p.sleep(ctx, p.channelDelay); err != nil {
			return ps, err
		}
	}

	log.WithFields(logrus.Fields{
		"records": ps.Records,
		"valid":   ps.Valid,
		"emitted": ps.Emitted,
	}).Info("Catalog page done")

	return ps, nil
}

func (p *Pipeline) abort(ctx context.Context, summary *Summary, started time.Time, err error) (*Summary, error) {
	summary.Duration = time.Since(started)
	stats := summary.Stats
	p.publish(context.WithoutCancel(ctx), models.GenerateLog{
		RunID:  summary.RunID,
		Status: models.StatusFailed,
		Error:  err.Error(),
		Stats:  &stats,
	})

	p.log.WithFields(logrus.Fields{
		"run_id": summary.RunID,
	}).WithError(err).Error("Playlist run stopped")

	return summary, err
}

// publish sends a run event and records it. Failures are only logged.
func (p *Pipeline) publish(ctx context.Context, event models.GenerateLog) {
	metrics.Observe(event)
	if p.events == nil {
		return
	}
	if err := p.events.PublishJSON(ctx, p.exchange, config.RoutingLogGenerator, event); err != nil {
		p.log.WithFields(logrus.Fields{
			"run_id": event.RunID,
			"status": event.Status,
		}).WithError(err).Warn("Failed to publish run event")
	}
}
