package controller

import (
	"context"
	"errors"

	"github.com/andrewyi/autoria-crawler/src/downloader"
	"github.com/andrewyi/autoria-crawler/src/entity"
)

var (
	ErrNoSecurityToken = errors.New("security token not found")
	ErrNoPostingID     = errors.New("posting id not found")
)

// Sink 接收已完成的记录，按url进行upsert
type Sink interface {
	UpsertCar(context.Context, entity.Car) error
}

// Controller 驱动listing -> posting -> phone的抓取流程
type Controller interface {
	downloader.Handler
	Start() error
	Stats() Stats
}

// Options 在启动时确定，运行期间不会修改
type Options struct {
	// 为true时posting页面缺少电话查询凭证视为失败，否则使用页面上的电话（可能为空）
	StrictTokenRequired bool
}

type Stats struct {
	ListingsParsed int64
	PostingsParsed int64
	PhoneLookups   int64
	Finalized      int64
	Failed         int64
	PersistFailed  int64
	Duplicates     int64
}
