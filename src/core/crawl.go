package core

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/andrewyi/autoria-crawler/src/analyzer"
	"github.com/andrewyi/autoria-crawler/src/config"
	"github.com/andrewyi/autoria-crawler/src/controller"
	"github.com/andrewyi/autoria-crawler/src/downloader"
	"github.com/andrewyi/autoria-crawler/src/urlbuilder"
	"github.com/andrewyi/autoria-crawler/src/util"
)

// Crawl 执行一次完整的抓取，所有请求结束或ctx取消后返回
// 每次调用都会创建新的下载器，已请求url的去重只在本次抓取内有效
func Crawl(ctx context.Context, cfg *config.Config, logger *log.Logger, sink controller.Sink) (controller.Stats, error) {
	urls, err := urlbuilder.New(cfg.Crawl.ListingURL, cfg.Crawl.PhoneURL, cfg.Crawl.StartPage)
	if err != nil {
		return controller.Stats{}, err
	}

	domains, err := allowedDomains(cfg.Crawl.ListingURL, cfg.Crawl.PhoneURL)
	if err != nil {
		return controller.Stats{}, err
	}

	d, err := downloader.NewSimpleDownloader(ctx, downloader.Options{
		AllowedDomains:              domains,
		UserAgent:                   cfg.Downloader.UserAgent,
		ConcurrentRequests:          cfg.Downloader.ConcurrentRequests,
		ConcurrentRequestsPerDomain: cfg.Downloader.ConcurrentRequestsPerDomain,
		Timeout:                     cfg.Downloader.Timeout,
		Retry:                       cfg.Downloader.Retry,
		RetryDelay:                  cfg.Downloader.RetryDelay,
	}, logger)
	if err != nil {
		return controller.Stats{}, err
	}

	c := controller.NewSimpleController(
		ctx,
		controller.Options{StrictTokenRequired: cfg.Crawl.StrictTokenRequired},
		urls,
		analyzer.NewSimpleAnalyzer(logger),
		d,
		sink,
		logger,
	)
	d.Handle(c)

	begin := time.Now()
	logger.WithField("url", cfg.Crawl.ListingURL).WithField("strict_token_required", cfg.Crawl.StrictTokenRequired).Info("crawl started")
	if err = c.Start(); err != nil {
		return c.Stats(), err
	}
	d.Wait()

	stats := c.Stats()
	logger.WithFields(log.Fields{
		"elapsed":         time.Since(begin).Round(time.Second).String(),
		"listings_parsed": stats.ListingsParsed,
		"postings_parsed": stats.PostingsParsed,
		"phone_lookups":   stats.PhoneLookups,
		"finalized":       stats.Finalized,
		"failed":          stats.Failed,
		"persist_failed":  stats.PersistFailed,
		"duplicates":      stats.Duplicates,
	}).Info("crawl finished")

	return stats, ctx.Err()
}

func allowedDomains(urls ...string) ([]string, error) {
	var domains []string
	seen := make(map[string]bool)
	for _, u := range urls {
		d, err := util.GetDomain(u)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	return domains, nil
}
