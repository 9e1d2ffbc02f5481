package util

import (
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/viper"
)

// ReadConfig 读取yaml配置，文件可以不存在，此时完全依赖defaults与环境变量
// 环境变量的key为配置路径大写并以_替换.，例如 DATABASE_URL
func ReadConfig(filePath string, defaults map[string]interface{}, out interface{}) error {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // for nested structure
	v.AutomaticEnv()

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			v.SetConfigFile(filePath)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	return v.Unmarshal(out)
}

// host中可能残留有:port信息，需要进一步移除
func GetDomain(u string) (string, error) {
	oURL, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	return strings.Split(oURL.Host, ":")[0], nil
}

// Digits 仅保留字符串中的数字
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var intRe = regexp.MustCompile(`\d+`)

// FirstInt 提取字符串中第一段连续数字
func FirstInt(s string) (int, bool) {
	m := intRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// StripSpaces 移除所有空白字符（包括nbsp）
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
