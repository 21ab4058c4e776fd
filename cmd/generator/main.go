package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rizkirmdhn/catcast/internal/common/config"
	"github.com/rizkirmdhn/catcast/internal/common/logger"
	"github.com/rizkirmdhn/catcast/internal/common/messaging"
	"github.com/rizkirmdhn/catcast/internal/scraper/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var (
		configFile string
		reportDir  string
		events     bool
	)

	cmd := &cobra.Command{
		Use:          "generator",
		Short:        "Build an M3U playlist from the catcast.tv channel catalog",
		Long:         "Fetches the configured catalog pages, resolves each channel's live stream and writes one M3U playlist.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
			}
			return run(cmd, v, events, reportDir)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default ./config.json)")
	flags.BoolVar(&events, "events", false, "publish run events to RabbitMQ (rabbitmq.url must be set)")
	flags.StringVar(&reportDir, "report-dir", "", "also write a JSON run summary into this directory")
	flags.StringP("pages", "p", config.DefaultPages, "pages to process, e.g. 1-50,480,481")
	flags.StringP("output", "o", "catcast_tv.m3u", "playlist output path")
	flags.Bool("render", false, "render channel pages in headless Chrome")
	flags.Int("log-level", int(logrus.InfoLevel), "logrus level (0 panic .. 6 trace)")

	for key, flag := range map[string]string{
		"playlist.pages":  "pages",
		"playlist.output": "output",
		"scraper.render":  "render",
		"app.logLevel":    "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper, events bool, reportDir string) error {
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return err
	}

	log := logger.New(cfg)
	log.WithFields(logrus.Fields{
		"component": "generator_main",
		"config":    fmt.Sprintf("%+v", cfg.Scraper),
	}).Debug("Scraper configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pub messaging.Publisher
	if events {
		client, err := messaging.NewRabbitMQClient(&cfg.RabbitMq, log)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer client.Close()
		if err := messaging.Setup(client, messaging.Binding{
			Queue:       cfg.RabbitMq.Queue.Log,
			RoutingKeys: []string{config.RoutingLogGenerator},
		}); err != nil {
			return err
		}
		pub = client
	}

	pipeline, release := service.BuildPipeline(ctx, cfg, log, pub)
	defer release()

	pages, err := cfg.Playlist.PageList()
	if err != nil {
		return err
	}

	summary, err := pipeline.Run(ctx, "", pages)
	out := cmd.OutOrStdout()
	if summary != nil {
		service.RenderSummary(out, summary)
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted, playlist not written: %w", context.Cause(ctx))
		}
		return err
	}

	fmt.Fprintf(out, "%d channels written to %s\n", summary.Emitted(), cfg.Playlist.Output)

	if reportDir != "" {
		path, err := service.ExportSummary(summary, reportDir, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "run summary written to %s\n", path)
	}
	return nil
}
