// 数据库表，所有可选字段都允许为null，images_count总能提取到（可能为0）因此为not null
package schema

import (
	"time"
)

type Car struct {
	ID          int64     `xorm:"bigint pk autoincr 'id'"`
	URL         string    `xorm:"varchar(768) notnull unique(uk_cars_url) 'url'"`
	Title       string    `xorm:"varchar(255) notnull 'title'"`
	PriceUSD    int64     `xorm:"integer notnull 'price_usd'"`
	Odometer    *int64    `xorm:"bigint null 'odometer'"`
	Username    *string   `xorm:"varchar(255) null 'username'"`
	ImageURL    *string   `xorm:"text null 'image_url'"`
	ImagesCount int       `xorm:"smallint notnull default 0 'images_count'"`
	CarNumber   *string   `xorm:"varchar(255) null 'car_number'"`
	CarVIN      *string   `xorm:"varchar(255) null 'car_vin'"`
	PhoneNumber *int64    `xorm:"bigint null 'phone_number'"`
	CreatedAt   time.Time `xorm:"created notnull default CURRENT_TIMESTAMP 'created_at'"`
	UpdatedAt   time.Time `xorm:"updated notnull default CURRENT_TIMESTAMP 'updated_at'"`
}

func (c *Car) TableName() string {
	return "cars"
}
