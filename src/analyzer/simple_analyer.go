// 针对auto.ria.com的页面结构提取字段
// 站点同时存在多种markup，每个字段按固定顺序尝试多个位置，先命中者为准
package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/andrewyi/autoria-crawler/src/entity"
	"github.com/andrewyi/autoria-crawler/src/enum"
	"github.com/andrewyi/autoria-crawler/src/util"
)

const (
	selPostingLinks = "#searchResults > section > div.content-bar > a.m-link-ticket"
	selPagination   = "#pagination > nav"
	selPageItem     = "span.page-item"

	selLDJSON = "script#ldJson2"
	selTitle  = "div[class*=heading] > h1[class*=head]"

	selPhotos      = "#photosBlock"
	selMainImage   = "div[class*=carousel] > div > div[class*=photo] > picture > source"
	selShowAll     = "div[class*=preview-gallery] > div.action_disp_all_block > a"
	selSlides      = "div[class*=carousel] > div[class*=carousel-inner] > div[class*=photo]:not([class*=phone-in-photo])"
	selVINBadge    = "main.auto-content > div > div[class*=vin-checked]"
	selPlate       = "span[class*=state-num]"
	selVINLabel    = "span.label-vin"
	selToken       = "script[data-hash][data-expires]"
	selPagePhone   = "aside > div[class*=holder-manager] > div > a[class*=phone-btn]"
	attrPostingID  = "data-auto-id"
	pageEllipsis   = "..."
	phoneJSONField = "formattedPhoneNumber"
)

// 价格容器，按顺序尝试
var priceSelectors = []string{
	"aside > section > span.green",
	"aside > section > div.price_value > strong",
}

// 卖家名称，按顺序尝试
var usernameSelectors = []struct {
	sel     string
	ownText bool
}{
	{"section#userInfoBlock > div > div.seller_info_area > div.seller_info_name", true},
	{"section#userInfoBlock > div > div.seller_info_area > h4.seller_info_name > a", false},
}

type SimpleAnalyzer struct {
	logger *log.Logger
}

func NewSimpleAnalyzer(logger *log.Logger) Analyzer {
	return &SimpleAnalyzer{
		logger: logger,
	}
}

func newDocument(page entity.PageInfo) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(page.Content))
}

func (a *SimpleAnalyzer) AnalyzeListing(page entity.PageInfo) (*entity.ListingPage, error) {
	doc, err := newDocument(page)
	if err != nil {
		return nil, fmt.Errorf("fail to parse listing page: %w", err)
	}

	var listing = &entity.ListingPage{}
	doc.Find(selPostingLinks).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			listing.URLs = append(listing.URLs, strings.TrimSpace(href))
		}
	})

	listing.TotalPages, listing.PaginationErr = totalPages(doc)
	return listing, nil
}

// totalPages 优先读取"..."之后的页码，即最后一页
// 页数较少时没有"..."，此时取所有页码中的最大值
func totalPages(doc *goquery.Document) (int, error) {
	nav := doc.Find(selPagination).First()
	if nav.Length() == 0 {
		return 0, ErrNoPagination
	}

	items := nav.Find(selPageItem)
	ellipsis := items.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), pageEllipsis)
	}).First()

	if ellipsis.Length() > 0 {
		var text string
		ellipsis.NextAllFiltered("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			link := s.Find("a").First()
			if link.Length() == 0 {
				return true
			}
			text = util.StripSpaces(link.Text())
			return false
		})
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("%w: %q", ErrBadPagination, text)
		}
		return n, nil
	}

	var last int
	items.Find("a").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(util.StripSpaces(s.Text())); err == nil && n > last {
			last = n
		}
	})
	if last == 0 {
		return 0, fmt.Errorf("%w: no numeric page link", ErrBadPagination)
	}
	return last, nil
}

func (a *SimpleAnalyzer) AnalyzePosting(page entity.PageInfo) (*entity.Posting, error) {
	doc, err := newDocument(page)
	if err != nil {
		return nil, fmt.Errorf("fail to parse posting page: %w", err)
	}

	ld := a.ldCar(doc, page.URL)

	var car = entity.Car{URL: page.URL}

	if car.Title, err = title(doc, ld); err != nil {
		return nil, err
	}
	if car.PriceUSD, err = price(doc, ld); err != nil {
		return nil, err
	}
	if ld != nil {
		car.Odometer = ld.odometer()
	}
	car.Username = username(doc)
	car.ImageURL = imageURL(doc)
	if car.ImagesCount, err = imagesCount(doc); err != nil {
		return nil, err
	}
	car.CarNumber = plate(doc)
	car.CarVIN = vin(doc, ld)

	var posting = &entity.Posting{
		Car:       car,
		Token:     token(doc),
		PagePhone: pagePhone(doc),
	}
	if id, ok := doc.Find("body").First().Attr(attrPostingID); ok {
		posting.ID = strings.TrimSpace(id)
	}

	if posting.Token == nil {
		a.logger.WithField("url", page.URL).Debug("security token not found")
	}
	return posting, nil
}

// ldCar 结构化数据块不存在或无法解析时返回nil，字段转而从markup中读取
func (a *SimpleAnalyzer) ldCar(doc *goquery.Document, u string) *ldCar {
	script := doc.Find(selLDJSON).First()
	if script.Length() == 0 {
		return nil
	}
	ld, err := parseLDCar(script.Text())
	if err != nil {
		a.logger.WithError(err).WithField("url", u).Warn("fail to parse ld+json block")
		return nil
	}
	return ld
}

func title(doc *goquery.Document, ld *ldCar) (string, error) {
	if ld != nil && ld.Name != "" {
		return ld.Name, nil
	}
	if t, ok := doc.Find(selTitle).First().Attr("title"); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t), nil
	}
	return "", ErrNoTitle
}

func price(doc *goquery.Document, ld *ldCar) (int64, error) {
	if ld != nil {
		if p, ok := ld.price(); ok {
			return p, nil
		}
	}
	for _, sel := range priceSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		text := s.Text()
		p, err := strconv.ParseInt(util.Digits(text), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadPrice, strings.TrimSpace(text))
		}
		return p, nil
	}
	return 0, ErrNoPrice
}

func username(doc *goquery.Document) *string {
	for _, v := range usernameSelectors {
		s := doc.Find(v.sel).First()
		if s.Length() == 0 {
			continue
		}
		var text string
		if v.ownText {
			text = ownText(s)
		} else {
			text = strings.TrimSpace(s.Text())
		}
		if text != "" {
			return &text
		}
	}
	return nil
}

func imageURL(doc *goquery.Document) *string {
	src, ok := doc.Find(selPhotos).Find(selMainImage).First().Attr("srcset")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return nil
	}
	return &src
}

// imagesCount 优先读取"显示全部N张"按钮，按钮不存在时统计轮播图片数量（排除电话遮罩图）
func imagesCount(doc *goquery.Document) (int, error) {
	photos := doc.Find(selPhotos).First()
	showAll := photos.Find(selShowAll).First()
	if showAll.Length() > 0 {
		n, ok := util.FirstInt(showAll.Text())
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrBadImagesCount, strings.TrimSpace(showAll.Text()))
		}
		return n, nil
	}
	return photos.Find(selSlides).Length(), nil
}

func plate(doc *goquery.Document) *string {
	s := doc.Find(selVINBadge).Find(selPlate).First()
	if s.Length() == 0 {
		return nil
	}
	if text := ownText(s); text != "" {
		return &text
	}
	return nil
}

func vin(doc *goquery.Document, ld *ldCar) *string {
	if ld != nil && ld.VIN != "" && !maskedVIN(ld.VIN) {
		v := ld.VIN
		return &v
	}
	s := doc.Find(selVINBadge).Find(selVINLabel).First()
	if s.Length() == 0 {
		return nil
	}
	text := ownText(s)
	if text == "" || maskedVIN(text) {
		return nil
	}
	return &text
}

func maskedVIN(v string) bool {
	return strings.Contains(strings.ToLower(v), enum.MaskedVINPlaceholder)
}

func token(doc *goquery.Document) *entity.Token {
	s := doc.Find(selToken).First()
	hash, _ := s.Attr("data-hash")
	expires, _ := s.Attr("data-expires")
	hash, expires = strings.TrimSpace(hash), strings.TrimSpace(expires)
	if hash == "" || expires == "" {
		return nil
	}
	return &entity.Token{Hash: hash, Expires: expires}
}

// pagePhone 部分页面直接在按钮链接中给出电话，不带国家码
func pagePhone(doc *goquery.Document) *int64 {
	href, ok := doc.Find(selPagePhone).First().Attr("href")
	if !ok {
		return nil
	}
	return parsePhone(util.Digits(href), false)
}

func (a *SimpleAnalyzer) AnalyzePhone(page entity.PageInfo) *int64 {
	var data map[string]interface{}
	if err := json.Unmarshal(page.Content, &data); err != nil {
		a.logger.WithError(err).WithField("url", page.URL).Warn("fail to decode phone response")
		return nil
	}
	formatted, ok := data[phoneJSONField].(string)
	if !ok {
		a.logger.WithField("url", page.URL).Warn("phone not found in response")
		return nil
	}
	phone := parsePhone(util.Digits(formatted), true)
	if phone == nil {
		a.logger.WithField("url", page.URL).WithField("phone", formatted).Warn("fail to extract phone number")
	}
	return phone
}

// parsePhone 少于MinPhoneDigits位视为无效
func parsePhone(digits string, withCountryCode bool) *int64 {
	if len(digits) < enum.MinPhoneDigits {
		return nil
	}
	if withCountryCode && !strings.HasPrefix(digits, enum.PhoneCountryCode) {
		digits = enum.PhoneCountryCode + digits
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// ownText 返回元素自身（不含子元素）第一段非空文本
func ownText(s *goquery.Selection) string {
	var text string
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if c.Nodes[0].Type != html.TextNode {
			return true
		}
		text = strings.TrimSpace(c.Nodes[0].Data)
		return text == ""
	})
	return text
}
