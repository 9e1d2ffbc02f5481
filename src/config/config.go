package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config 在启动时读取一次，之后只读传递
type Config struct {
	Log struct {
		Context bool   `mapstructure:"context"`
		Level   string `mapstructure:"level"`
	} `mapstructure:"log"`

	Crawl struct {
		ListingURL          string `mapstructure:"listing_url"`
		PhoneURL            string `mapstructure:"phone_url"`
		StartPage           int    `mapstructure:"start_page"`
		StrictTokenRequired bool   `mapstructure:"strict_token_required"`
	} `mapstructure:"crawl"`

	Downloader struct {
		ConcurrentRequests          int           `mapstructure:"concurrent_requests"`
		ConcurrentRequestsPerDomain int           `mapstructure:"concurrent_requests_per_domain"`
		Timeout                     time.Duration `mapstructure:"timeout"`
		Retry                       int           `mapstructure:"retry"`
		RetryDelay                  time.Duration `mapstructure:"retry_delay"`
		UserAgent                   string        `mapstructure:"user_agent"`
	} `mapstructure:"downloader"`

	Database struct {
		URL      string `mapstructure:"url"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Export struct {
		Location  string `mapstructure:"location"`
		ChunkSize int    `mapstructure:"chunk_size"`
		Worker    uint32 `mapstructure:"worker"`
	} `mapstructure:"export"`

	Schedule struct {
		Crawl  string `mapstructure:"crawl"`
		Export string `mapstructure:"export"`
	} `mapstructure:"schedule"`
}

// Defaults 对应每一个配置项的默认值，环境变量只有在key注册过之后才会被viper读取
var Defaults = map[string]interface{}{
	"log.context": false,
	"log.level":   "info",

	"crawl.listing_url":           "https://auto.ria.com/uk/car/used/",
	"crawl.phone_url":             "https://auto.ria.com/users/phones/",
	"crawl.start_page":            1,
	"crawl.strict_token_required": false,

	"downloader.concurrent_requests":            16,
	"downloader.concurrent_requests_per_domain": 8,
	"downloader.timeout":                        "30s",
	"downloader.retry":                          2,
	"downloader.retry_delay":                    "2s",
	"downloader.user_agent":                     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",

	"database.url":      "",
	"database.host":     "localhost",
	"database.port":     5432,
	"database.user":     "postgres",
	"database.password": "",
	"database.name":     "autoria",
	"database.sslmode":  "disable",

	"export.location":   "./export",
	"export.chunk_size": 1000,
	"export.worker":     2,

	"schedule.crawl":  "0 12 * * *",
	"schedule.export": "0 0 * * *",
}

// DatabaseURL 优先使用database.url，否则由host/port等字段拼接
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.Database.SSLMode)
	}
	return u.String()
}

func (c *Config) Validate() error {
	if c.Crawl.ListingURL == "" {
		return fmt.Errorf("crawl.listing_url is required")
	}
	if c.Crawl.PhoneURL == "" {
		return fmt.Errorf("crawl.phone_url is required")
	}
	if c.Crawl.StartPage < 1 {
		return fmt.Errorf("crawl.start_page must be positive, got %d", c.Crawl.StartPage)
	}
	if c.Downloader.ConcurrentRequests < 1 {
		return fmt.Errorf("downloader.concurrent_requests must be positive, got %d", c.Downloader.ConcurrentRequests)
	}
	if c.Downloader.ConcurrentRequestsPerDomain < 1 {
		return fmt.Errorf("downloader.concurrent_requests_per_domain must be positive, got %d",
			c.Downloader.ConcurrentRequestsPerDomain)
	}
	if c.Export.ChunkSize < 1 {
		return fmt.Errorf("export.chunk_size must be positive, got %d", c.Export.ChunkSize)
	}
	if c.Export.Worker < 1 {
		return fmt.Errorf("export.worker must be positive, got %d", c.Export.Worker)
	}
	return nil
}
