package downloader

import (
	"errors"

	"github.com/andrewyi/autoria-crawler/src/entity"
)

var (
	// ErrDuplicate 同一次抓取中url已经被请求过
	ErrDuplicate  = errors.New("url already requested")
	ErrHTTPStatus = errors.New("unexpected http status")
)

// Downloader 异步发起请求，结果通过Handler回调返回
// Task作为关联状态随请求透传，回调时原样带回
type Downloader interface {
	Download(*entity.Task) error
	Wait()
}

// Handler 的方法会被并发调用
type Handler interface {
	OnResponse(*entity.Task, entity.PageInfo)
	OnError(*entity.Task, error)
}
