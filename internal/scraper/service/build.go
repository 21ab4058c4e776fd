package service

import (
	"context"

	"github.com/rizkirmdhn/catcast/internal/catalog"
	"github.com/rizkirmdhn/catcast/internal/common/browser"
	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/httpclient"
	"github.com/rizkirmdhn/catcast/internal/common/logger"
	"github.com/rizkirmdhn/catcast/internal/common/messaging"
	"github.com/rizkirmdhn/catcast/internal/playlist"
	"github.com/rizkirmdhn/catcast/internal/retry"
	"github.com/rizkirmdhn/catcast/internal/stream"
	"github.com/sirupsen/logrus"
)

// BuildPipeline assembles a Pipeline from configuration. pub may be nil.
// The returned release func shuts down the headless browser when one was started.
func BuildPipeline(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, pub messaging.Publisher) (*Pipeline, func()) {
	sc := cfg.GetScraperConfig()
	pc := cfg.GetPlaylistConfig()

	identity := httpclient.Identity{
		UserAgent: sc.UserAgent,
		Referer:   sc.Referer,
		Origin:    sc.Origin,
	}
	policy := retry.Policy{
		MaxAttempts: sc.MaxAttempts,
		Backoff:     sc.Backoff,
	}

	client := httpclient.New(identity, sc.Timeout)
	release := func() {}

	var pages httpclient.Getter = client
	if sc.Render {
		renderer := browser.NewRenderer(ctx, identity, sc.Timeout, logger.NewComponentLogger(log, "browser"))
		pages = renderer
		release = renderer.Close
		log.WithField(logger.FieldComponent, "pipeline").Info("Rendering channel pages with headless Chrome")
	}

	opts := []Option{WithPacing(sc.ChannelDelay, sc.PageDelay)}
	if pub != nil {
		opts = append(opts, WithEvents(pub, cfg.GetRabbitMQConfig().Exchange))
	}

	p := NewPipeline(
		catalog.NewFetcher(client, sc.APIURL, policy, logger.NewComponentLogger(log, "catalog")),
		stream.NewResolver(pages, sc.SiteURL, policy, logger.NewComponentLogger(log, "stream")),
		playlist.NewAssembler(sc.PlayerUserAgent, sc.Referer, pc.GroupFormat),
		playlist.NewFileSink(pc.Output),
		logger.NewComponentLogger(log, "pipeline"),
		opts...,
	)
	return p, release
}
