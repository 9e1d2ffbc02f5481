// 构造三类请求地址：listing分页、posting页面、电话查询
// 所有方法都是纯函数，非法输入返回错误而不是空url
package urlbuilder

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrInvalidURL  = errors.New("invalid url")
	ErrInvalidPage = errors.New("invalid page number")
	ErrEmptyParam  = errors.New("empty parameter")
)

const pageParam = "page"

type Builder struct {
	listing   *url.URL
	phone     *url.URL
	startPage int
}

// New listingBase为搜索结果页地址，phoneBase为电话查询接口前缀，两者都必须是http(s)绝对地址
func New(listingBase, phoneBase string, startPage int) (*Builder, error) {
	listing, err := parseAbsolute(listingBase)
	if err != nil {
		return nil, fmt.Errorf("listing base: %w", err)
	}
	phone, err := parseAbsolute(phoneBase)
	if err != nil {
		return nil, fmt.Errorf("phone base: %w", err)
	}
	if startPage < 1 {
		return nil, fmt.Errorf("%w: start page %d", ErrInvalidPage, startPage)
	}
	return &Builder{
		listing:   listing,
		phone:     phone,
		startPage: startPage,
	}, nil
}

func (b *Builder) StartPage() int {
	return b.startPage
}

// ListingURL page为0时使用起始页，原有的query参数保留
func (b *Builder) ListingURL(page int) (string, error) {
	if page < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	if page == 0 {
		page = b.startPage
	}
	u := *b.listing
	q := u.Query()
	q.Set(pageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PostingURL 相对地址以listing地址为基准补全
func (b *Builder) PostingURL(href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("%w: posting href", ErrEmptyParam)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidURL, href, err)
	}
	u := b.listing.ResolveReference(ref)
	u.Fragment = ""
	if !isHTTP(u) {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, href)
	}
	return u.String(), nil
}

// PhoneLookupURL 形如 <phone base>/<postingID>?hash=...&expires=...
func (b *Builder) PhoneLookupURL(postingID, hash, expires string) (string, error) {
	postingID = strings.TrimSpace(postingID)
	if postingID == "" || hash == "" || expires == "" {
		return "", fmt.Errorf("%w: posting id %q, hash %q, expires %q", ErrEmptyParam, postingID, hash, expires)
	}
	u := *b.phone
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + postingID
	u.RawPath = ""
	// 保持hash在前、expires在后的顺序
	query := "hash=" + url.QueryEscape(hash) + "&expires=" + url.QueryEscape(expires)
	if u.RawQuery != "" {
		query = u.RawQuery + "&" + query
	}
	u.RawQuery = query
	return u.String(), nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, raw, err)
	}
	if !isHTTP(u) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	return u, nil
}

func isHTTP(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
