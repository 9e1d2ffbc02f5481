package entity

import (
	"net/http"

	"github.com/andrewyi/autoria-crawler/src/enum"
)

// Car 是一条posting最终归一化后的记录，url为唯一标识
// 指针字段为可选字段，nil表示页面上没有提取到（soft miss）
type Car struct {
	URL         string
	Title       string
	PriceUSD    int64
	Odometer    *int64
	Username    *string
	ImageURL    *string
	ImagesCount int
	CarNumber   *string
	CarVIN      *string
	PhoneNumber *int64
}

// Token 是posting页面中签发的电话查询凭证，仅在单次流程中使用，不落库
type Token struct {
	Hash    string
	Expires string
}

// 保存了下载的内容
type PageInfo struct {
	URL        string
	StatusCode int
	Header     http.Header
	Content    []byte
}

// ListingPage 为listing页面的解析结果
// PaginationErr 只影响翻页，不影响已经解析到的posting url
type ListingPage struct {
	URLs          []string
	TotalPages    int
	PaginationErr error
}

// Posting 为posting页面的解析结果
// Token为nil表示页面中没有电话查询凭证
// PagePhone 为页面中直接暴露的电话号码，仅在无token时使用
type Posting struct {
	Car       Car
	ID        string
	Token     *Token
	PagePhone *int64
}

// Task 是一次请求携带的流程上下文，通过下载器透传并随响应返回
type Task struct {
	Kind  enum.TaskKind
	State enum.FlowState
	URL   string

	// listing
	Page       int
	TotalPages int

	// posting / phone
	PostingURL string
	PostingID  string
	Token      *Token
	Car        *Car
}

// ExportedCar 为导出文件中的单条记录
type ExportedCar struct {
	ID          int64   `json:"id"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	PriceUSD    int64   `json:"price_usd"`
	Odometer    *int64  `json:"odometer"`
	Username    *string `json:"username"`
	ImageURL    *string `json:"image_url"`
	ImagesCount int     `json:"images_count"`
	CarNumber   *string `json:"car_number"`
	CarVIN      *string `json:"car_vin"`
	PhoneNumber *int64  `json:"phone_number"`
	CreatedAt   string  `json:"created_at"`
}
