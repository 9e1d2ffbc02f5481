// 每个请求携带一个entity.Task作为流程上下文，状态转换如下：
// listing: ListingRequested -> ListingParsed
// posting: PostingRequested -> PostingParsed -> [PhoneRequested -> PhoneParsed] -> Finalized
// 任何一步的hard failure都进入Failed，只影响当前的listing页面或posting
package controller

import (
	"context"
	"errors"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/andrewyi/autoria-crawler/src/analyzer"
	"github.com/andrewyi/autoria-crawler/src/downloader"
	"github.com/andrewyi/autoria-crawler/src/entity"
	"github.com/andrewyi/autoria-crawler/src/enum"
	"github.com/andrewyi/autoria-crawler/src/urlbuilder"
)

type counters struct {
	listingsParsed atomic.Int64
	postingsParsed atomic.Int64
	phoneLookups   atomic.Int64
	finalized      atomic.Int64
	failed         atomic.Int64
	persistFailed  atomic.Int64
	duplicates     atomic.Int64
}

type SimpleController struct {
	ctx    context.Context
	logger *log.Logger
	opts   Options

	urls       *urlbuilder.Builder
	analyzer   analyzer.Analyzer
	downloader downloader.Downloader
	sink       Sink

	// 翻页任务在一次抓取中只生成一次
	paginated atomic.Bool
	stats     counters
}

func NewSimpleController(
	ctx context.Context,
	opts Options,
	urls *urlbuilder.Builder,
	a analyzer.Analyzer,
	d downloader.Downloader,
	sink Sink,
	logger *log.Logger,
) *SimpleController {

	return &SimpleController{
		ctx:        ctx,
		logger:     logger,
		opts:       opts,
		urls:       urls,
		analyzer:   a,
		downloader: d,
		sink:       sink,
	}
}

func (c *SimpleController) Start() error {
	u, err := c.urls.ListingURL(c.urls.StartPage())
	if err != nil {
		return err
	}
	return c.downloader.Download(&entity.Task{
		Kind:  enum.TaskKindListing,
		State: enum.FlowStateListingRequested,
		URL:   u,
		Page:  c.urls.StartPage(),
	})
}

func (c *SimpleController) Stats() Stats {
	return Stats{
		ListingsParsed: c.stats.listingsParsed.Load(),
		PostingsParsed: c.stats.postingsParsed.Load(),
		PhoneLookups:   c.stats.phoneLookups.Load(),
		Finalized:      c.stats.finalized.Load(),
		Failed:         c.stats.failed.Load(),
		PersistFailed:  c.stats.persistFailed.Load(),
		Duplicates:     c.stats.duplicates.Load(),
	}
}

func (c *SimpleController) OnResponse(task *entity.Task, page entity.PageInfo) {
	switch task.Kind {
	case enum.TaskKindListing:
		c.onListing(task, page)
	case enum.TaskKindPosting:
		c.onPosting(task, page)
	case enum.TaskKindPhone:
		c.onPhone(task, page)
	default:
		c.logger.WithField("url", task.URL).WithField("kind", task.Kind).Error("unknown task kind")
	}
}

func (c *SimpleController) OnError(task *entity.Task, err error) {
	if errors.Is(err, downloader.ErrDuplicate) {
		c.duplicate(task, err)
		return
	}

	// 电话查询失败不入库，避免覆盖已有电话
	c.fail(task, err)
}

func (c *SimpleController) onListing(task *entity.Task, page entity.PageInfo) {
	listing, err := c.analyzer.AnalyzeListing(page)
	if err != nil {
		c.fail(task, err)
		return
	}
	task.State = enum.FlowStateListingParsed
	c.stats.listingsParsed.Add(1)

	for _, href := range listing.URLs {
		u, err := c.urls.PostingURL(href)
		if err != nil {
			c.logger.WithError(err).WithField("url", task.URL).WithField("href", href).Warn("skip posting href")
			continue
		}
		c.schedule(&entity.Task{
			Kind:       enum.TaskKindPosting,
			State:      enum.FlowStatePostingRequested,
			URL:        u,
			PostingURL: u,
		})
	}

	if task.Page == c.urls.StartPage() {
		c.paginate(task, listing)
	}

	if task.TotalPages > 0 && task.Page == task.TotalPages {
		c.logger.WithField("total_pages", task.TotalPages).Info("parsed last listing page")
	}
}

// paginate 只信任起始页上的总页数
func (c *SimpleController) paginate(task *entity.Task, listing *entity.ListingPage) {
	if listing.PaginationErr != nil {
		c.logger.WithError(listing.PaginationErr).WithField("url", task.URL).Warn("fail to extract total pages, stop paginating")
		return
	}
	if !c.paginated.CompareAndSwap(false, true) {
		return
	}

	task.TotalPages = listing.TotalPages
	c.logger.WithField("total_pages", listing.TotalPages).Info("listing pages discovered")

	for p := task.Page + 1; p <= listing.TotalPages; p++ {
		u, err := c.urls.ListingURL(p)
		if err != nil {
			c.logger.WithError(err).WithField("page", p).Warn("fail to build listing url")
			continue
		}
		c.schedule(&entity.Task{
			Kind:       enum.TaskKindListing,
			State:      enum.FlowStateListingRequested,
			URL:        u,
			Page:       p,
			TotalPages: listing.TotalPages,
		})
	}
}

func (c *SimpleController) onPosting(task *entity.Task, page entity.PageInfo) {
	posting, err := c.analyzer.AnalyzePosting(page)
	if err != nil {
		c.fail(task, err)
		return
	}
	task.State = enum.FlowStatePostingParsed
	c.stats.postingsParsed.Add(1)

	car := posting.Car
	car.URL = task.PostingURL
	task.Car = &car
	task.PostingID = posting.ID
	task.Token = posting.Token

	if posting.Token == nil {
		if c.opts.StrictTokenRequired {
			c.fail(task, ErrNoSecurityToken)
			return
		}
		car.PhoneNumber = posting.PagePhone
		c.finalize(task, car)
		return
	}

	if posting.ID == "" {
		c.fail(task, ErrNoPostingID)
		return
	}
	u, err := c.urls.PhoneLookupURL(posting.ID, posting.Token.Hash, posting.Token.Expires)
	if err != nil {
		c.fail(task, err)
		return
	}

	// 电话查询使用独立的Task，记录随之传递
	c.schedule(&entity.Task{
		Kind:       enum.TaskKindPhone,
		State:      enum.FlowStatePhoneRequested,
		URL:        u,
		PostingURL: task.PostingURL,
		PostingID:  posting.ID,
		Token:      posting.Token,
		Car:        &car,
	})
}

func (c *SimpleController) onPhone(task *entity.Task, page entity.PageInfo) {
	task.State = enum.FlowStatePhoneParsed
	c.stats.phoneLookups.Add(1)

	car := *task.Car
	car.PhoneNumber = c.analyzer.AnalyzePhone(page)
	if car.PhoneNumber == nil {
		c.logger.WithFields(taskFields(task)).Warn("phone not available")
	}
	c.finalize(task, car)
}

func (c *SimpleController) schedule(task *entity.Task) {
	if err := c.downloader.Download(task); err != nil {
		if errors.Is(err, downloader.ErrDuplicate) {
			c.duplicate(task, err)
			return
		}
		c.fail(task, err)
	}
}

func (c *SimpleController) finalize(task *entity.Task, car entity.Car) {
	task.State = enum.FlowStateFinalized
	task.Car = &car

	if err := c.sink.UpsertCar(c.ctx, car); err != nil {
		c.stats.persistFailed.Add(1)
		c.logger.WithError(err).WithFields(taskFields(task)).Warn("fail to upsert car")
		return
	}
	c.stats.finalized.Add(1)
	c.logger.WithField("url", car.URL).Debug("car saved")
}

func (c *SimpleController) fail(task *entity.Task, err error) {
	fields := taskFields(task)
	task.State = enum.FlowStateFailed
	c.stats.failed.Add(1)
	c.logger.WithError(err).WithFields(fields).Warn("fail to process " + task.Kind.String())
}

func (c *SimpleController) duplicate(task *entity.Task, err error) {
	c.stats.duplicates.Add(1)
	c.logger.WithError(err).WithField("url", task.URL).Debug("skip duplicate request")
}

// taskFields 日志中带上已经提取到的部分记录，便于排查
func taskFields(task *entity.Task) log.Fields {
	fields := log.Fields{
		"url":   task.URL,
		"kind":  task.Kind.String(),
		"state": task.State.String(),
	}
	if task.Kind == enum.TaskKindListing {
		fields["page"] = task.Page
	}
	if task.PostingURL != "" && task.PostingURL != task.URL {
		fields["posting_url"] = task.PostingURL
	}
	if task.PostingID != "" {
		fields["posting_id"] = task.PostingID
	}
	if task.Car != nil {
		fields["title"] = task.Car.Title
		fields["price_usd"] = task.Car.PriceUSD
	}
	return fields
}

var _ Controller = (*SimpleController)(nil)
