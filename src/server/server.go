package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/andrewyi/autoria-crawler/src/config"
	"github.com/andrewyi/autoria-crawler/src/core"
	"github.com/andrewyi/autoria-crawler/src/dbstorage"
	"github.com/andrewyi/autoria-crawler/src/filestorage"
	"github.com/andrewyi/autoria-crawler/src/util"
)

type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger
	config *config.Config

	dbStorage *dbstorage.SimpleDBStorage
}

func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) initLog() {
	var logger = log.New()
	logger.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	if s.config.Log.Context {
		logger.SetReportCaller(true)
	}

	if logLevel, err := log.ParseLevel(s.config.Log.Level); err != nil {
		logger.SetLevel(log.InfoLevel)
	} else {
		logger.SetLevel(logLevel)
	}
	s.logger = logger
}

// prepare 读取配置、初始化日志并开始监听退出信号，每个命令都先调用
func (s *Server) prepare(ctx *cli.Context) error {
	configPath := ctx.GlobalString("config")
	var cfg = &config.Config{}
	if err := util.ReadConfig(configPath, config.Defaults, cfg); err != nil {
		return fmt.Errorf("fail to load config, err: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config, err: %w", err)
	}
	s.config = cfg

	s.initLog()
	go s.wait()
	return nil
}

func (s *Server) openDBStorage() error {
	dbStorage, err := dbstorage.NewSimpleDBStorage(s.config.DatabaseURL())
	if err != nil {
		return fmt.Errorf("fail to create dbstorage handler, err: %w", err)
	}
	if err = dbStorage.Ping(s.ctx); err != nil {
		dbStorage.Close()
		return fmt.Errorf("fail to connect database, err: %w", err)
	}
	s.dbStorage = dbStorage
	return nil
}

// Crawl 执行一次抓取
func (s *Server) Crawl(ctx *cli.Context) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}
	if err := s.openDBStorage(); err != nil {
		return err
	}
	defer s.Stop()

	return s.crawl(s.ctx)
}

// Export 执行一次导出
func (s *Server) Export(ctx *cli.Context) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}
	if err := s.openDBStorage(); err != nil {
		return err
	}
	defer s.Stop()

	return s.export(s.ctx)
}

// Schedule 常驻运行，按配置的cron表达式定时抓取与导出
func (s *Server) Schedule(ctx *cli.Context) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}
	if err := s.openDBStorage(); err != nil {
		return err
	}
	defer s.Stop()

	return core.Schedule(s.ctx, s.logger,
		core.Job{Name: "crawl", Spec: s.config.Schedule.Crawl, Run: s.crawl},
		core.Job{Name: "export", Spec: s.config.Schedule.Export, Run: s.export},
	)
}

// Migrate 创建或更新表结构
func (s *Server) Migrate(ctx *cli.Context) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}
	if err := s.openDBStorage(); err != nil {
		return err
	}
	defer s.Stop()

	if err := s.dbStorage.Sync(); err != nil {
		return fmt.Errorf("fail to sync tables, err: %w", err)
	}
	s.logger.Info("tables synced")
	return nil
}

func (s *Server) crawl(ctx context.Context) error {
	_, err := core.Crawl(ctx, s.config, s.logger, s.dbStorage)
	if errors.Is(err, context.Canceled) {
		s.logger.Warn("crawl interrupted")
		return nil
	}
	return err
}

func (s *Server) export(ctx context.Context) error {
	result, err := core.Export(ctx, s.logger, s.dbStorage,
		filestorage.NewSimpleFileStorage(s.config.Export.Location),
		core.ExportOptions{
			ChunkSize: s.config.Export.ChunkSize,
			Worker:    s.config.Export.Worker,
		},
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("fail to export cars, err: %w", err)
	}
	s.logger.WithFields(log.Fields{
		"dir":     result.Dir,
		"files":   result.Files,
		"records": result.Records,
	}).Info("export completed")
	return nil
}

func (s *Server) wait() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	select {
	case <-c:
		s.logger.Warn("interrupt signal, server gonna stop")
		s.cancel()
	case <-s.ctx.Done():
	}
}

func (s *Server) Stop() {
	s.cancel()
	if s.dbStorage != nil {
		s.dbStorage.Close()
	}
}
