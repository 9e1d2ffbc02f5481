package analyzer

import (
	"errors"

	"github.com/andrewyi/autoria-crawler/src/entity"
)

// hard extraction errors，对应的listing页面或posting被放弃
var (
	ErrNoTitle        = errors.New("title not found")
	ErrNoPrice        = errors.New("price not found")
	ErrBadPrice       = errors.New("price is not numeric")
	ErrBadImagesCount = errors.New("images count is not numeric")
	ErrNoPagination   = errors.New("pagination not found")
	ErrBadPagination  = errors.New("pagination is not numeric")
)

// Analyzer 只负责从已下载内容中提取字段，不涉及网络与存储
// 可选字段缺失以nil表示（soft miss），必选字段缺失以error返回（hard failure）
type Analyzer interface {
	AnalyzeListing(entity.PageInfo) (*entity.ListingPage, error)
	AnalyzePosting(entity.PageInfo) (*entity.Posting, error)
	AnalyzePhone(entity.PageInfo) *int64
}
