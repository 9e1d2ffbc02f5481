package core

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Job 为一次定时执行的任务，ctx在调度停止时取消
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Schedule 按cron表达式周期执行job，同一个job上一轮未结束时跳过本轮
// ctx取消后等待正在执行的job退出再返回
func Schedule(ctx context.Context, logger *log.Logger, jobs ...Job) error {
	cronLogger := cron.PrintfLogger(logger)
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.Spec, func() {
			runJob(ctx, logger, job)
		}); err != nil {
			return fmt.Errorf("fail to schedule %s with %q: %w", job.Name, job.Spec, err)
		}
		logger.WithField("job", job.Name).WithField("spec", job.Spec).Info("job scheduled")
	}

	c.Start()
	<-ctx.Done()
	logger.Info("scheduler stopping, waiting for running jobs")
	<-c.Stop().Done()
	return nil
}

func runJob(ctx context.Context, logger *log.Logger, job Job) {
	if ctx.Err() != nil {
		return
	}
	logger.WithField("job", job.Name).Info("job started")
	if err := job.Run(ctx); err != nil {
		logger.WithError(err).WithField("job", job.Name).Error("job failed")
		return
	}
	logger.WithField("job", job.Name).Info("job finished")
}
