// 基于colly的异步下载器
// 并发上限分为全局与单域名两级，超时与重试也在此处理，上层只关心最终的成功或失败
package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	log "github.com/sirupsen/logrus"

	"github.com/andrewyi/autoria-crawler/src/entity"
	"github.com/andrewyi/autoria-crawler/src/enum"
)

const (
	taskKey       = "task"
	retryCountKey = "retry_count"
)

type Options struct {
	AllowedDomains []string
	UserAgent      string

	// colly只按第一条匹配的规则限流：AllowedDomains内的请求只受ConcurrentRequestsPerDomain约束，
	// ConcurrentRequests只约束其余域名，不是所有请求的总上限
	ConcurrentRequests          int
	ConcurrentRequestsPerDomain int

	Timeout    time.Duration
	Retry      int
	RetryDelay time.Duration
}

type SimpleDownloader struct {
	ctx     context.Context
	logger  *log.Logger
	opts    Options
	handler Handler

	collector *colly.Collector
}

func NewSimpleDownloader(ctx context.Context, opts Options, logger *log.Logger) (*SimpleDownloader, error) {
	if opts.ConcurrentRequests < 1 || opts.ConcurrentRequestsPerDomain < 1 {
		return nil, fmt.Errorf("concurrency must be positive, got %d/%d",
			opts.ConcurrentRequests, opts.ConcurrentRequestsPerDomain)
	}

	collectorOpts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.Async(true),
		colly.IgnoreRobotsTxt(),
	}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}
	if len(opts.AllowedDomains) > 0 {
		collectorOpts = append(collectorOpts, colly.AllowedDomains(opts.AllowedDomains...))
	}
	c := colly.NewCollector(collectorOpts...)
	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}

	// 规则按顺序匹配且只取第一条，站点请求落在单域名规则上，其余落到"*"规则
	perDomain := opts.ConcurrentRequestsPerDomain
	if perDomain > opts.ConcurrentRequests {
		perDomain = opts.ConcurrentRequests
	}
	var rules []*colly.LimitRule
	for _, d := range opts.AllowedDomains {
		rules = append(rules, &colly.LimitRule{
			DomainGlob:  "*" + d + "*",
			Parallelism: perDomain,
		})
	}
	rules = append(rules, &colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: opts.ConcurrentRequests,
	})
	if err := c.Limits(rules); err != nil {
		return nil, fmt.Errorf("fail to set limit rules: %w", err)
	}

	d := &SimpleDownloader{
		ctx:       ctx,
		logger:    logger,
		opts:      opts,
		collector: c,
	}
	c.OnResponse(d.onResponse)
	c.OnError(d.onError)
	return d, nil
}

// Handle 必须在第一次Download之前设置
func (d *SimpleDownloader) Handle(h Handler) {
	d.handler = h
}

func (d *SimpleDownloader) Download(task *entity.Task) error {
	ctx := colly.NewContext()
	ctx.Put(taskKey, task)

	hdr := http.Header{}
	if task.Kind == enum.TaskKindPhone {
		hdr.Set("Accept", "application/json")
	}

	err := d.collector.Request(http.MethodGet, task.URL, nil, ctx, hdr)
	var visited *colly.AlreadyVisitedError
	if errors.As(err, &visited) {
		return fmt.Errorf("%w: %s", ErrDuplicate, task.URL)
	}
	return err
}

func (d *SimpleDownloader) Wait() {
	d.collector.Wait()
}

func (d *SimpleDownloader) onResponse(r *colly.Response) {
	task, ok := r.Ctx.GetAny(taskKey).(*entity.Task)
	if !ok {
		d.logger.WithField("url", r.Request.URL.String()).Error("response without task")
		return
	}
	d.logger.WithFields(log.Fields{
		"url":    r.Request.URL.String(),
		"status": r.StatusCode,
		"kind":   task.Kind.String(),
	}).Debug("page downloaded")

	var header http.Header
	if r.Headers != nil {
		header = *r.Headers
	}
	d.handler.OnResponse(task, entity.PageInfo{
		URL:        r.Request.URL.String(),
		StatusCode: r.StatusCode,
		Header:     header,
		Content:    r.Body,
	})
}

func (d *SimpleDownloader) onError(r *colly.Response, err error) {
	task, ok := r.Ctx.GetAny(taskKey).(*entity.Task)
	if !ok {
		d.logger.WithError(err).WithField("url", r.Request.URL.String()).Error("error without task")
		return
	}

	// 重定向到已经请求过的地址
	var visited *colly.AlreadyVisitedError
	if errors.As(err, &visited) {
		d.handler.OnError(task, fmt.Errorf("%w: %s", ErrDuplicate, visited.Destination))
		return
	}

	if d.retry(r, err) {
		return
	}

	if r.StatusCode > 0 {
		err = fmt.Errorf("%w: %d %v", ErrHTTPStatus, r.StatusCode, err)
	}
	d.handler.OnError(task, err)
}

// retry 对网络错误、5xx以及429进行有限次重试，重试次数记录在请求上下文中
func (d *SimpleDownloader) retry(r *colly.Response, err error) bool {
	if d.opts.Retry <= 0 || d.ctx.Err() != nil || !transient(r, err) {
		return false
	}

	count, _ := r.Ctx.GetAny(retryCountKey).(int)
	if count >= d.opts.Retry {
		d.logger.WithError(err).WithFields(log.Fields{
			"url":     r.Request.URL.String(),
			"status":  r.StatusCode,
			"retries": count,
		}).Warn("give up after retries")
		return false
	}
	r.Ctx.Put(retryCountKey, count+1)

	d.logger.WithError(err).WithFields(log.Fields{
		"url":   r.Request.URL.String(),
		"retry": count + 1,
	}).Debug("retry request")

	if d.opts.RetryDelay > 0 {
		select {
		case <-d.ctx.Done():
			return false
		case <-time.After(d.opts.RetryDelay):
		}
	}
	if retryErr := r.Request.Retry(); retryErr != nil {
		d.logger.WithError(retryErr).WithField("url", r.Request.URL.String()).Warn("fail to retry request")
		return false
	}
	return true
}

func transient(r *colly.Response, err error) bool {
	if r.StatusCode >= http.StatusInternalServerError || r.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if r.StatusCode != 0 {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused", "connection reset", "eof", "broken pipe",
		"timeout", "temporary failure", "no such host",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
