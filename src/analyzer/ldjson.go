package analyzer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ldCar 对应posting页面中 script#ldJson2 的schema.org结构
type ldCar struct {
	Name     string          `json:"name"`
	Offers   json.RawMessage `json:"offers"`
	Odometer *struct {
		Value flexNumber `json:"value"`
	} `json:"mileageFromOdometer"`
	VIN string `json:"vehicleIdentificationNumber"`
}

type ldOffer struct {
	Price flexNumber `json:"price"`
}

// flexNumber 兼容 15500、15500.0 以及 "15 500" 几种写法
type flexNumber struct {
	Valid bool
	Value int64
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		s = strings.Join(strings.Fields(raw), "")
		if s == "" {
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// 非数字的值按缺失处理
		return nil
	}
	n.Valid = true
	n.Value = int64(f)
	return nil
}

// price offers可能是对象也可能是数组，取第一个正数价格
func (c *ldCar) price() (int64, bool) {
	raw := bytes.TrimSpace(c.Offers)
	if len(raw) == 0 {
		return 0, false
	}
	var offers []ldOffer
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &offers); err != nil {
			return 0, false
		}
	} else {
		var o ldOffer
		if err := json.Unmarshal(raw, &o); err != nil {
			return 0, false
		}
		offers = append(offers, o)
	}
	for _, o := range offers {
		if o.Price.Valid && o.Price.Value > 0 {
			return o.Price.Value, true
		}
	}
	return 0, false
}

func (c *ldCar) odometer() *int64 {
	if c.Odometer == nil || !c.Odometer.Value.Valid || c.Odometer.Value.Value < 0 {
		return nil
	}
	v := c.Odometer.Value.Value
	return &v
}

func parseLDCar(raw string) (*ldCar, error) {
	var c ldCar
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &c); err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(c.Name)
	c.VIN = strings.TrimSpace(c.VIN)
	return &c, nil
}
