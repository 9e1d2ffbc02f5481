package filestorage

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SimpleFileStorage 将内容以json格式写入location下的文件
// name可以包含子目录，目录不存在时自动创建
type SimpleFileStorage struct {
	location string
}

func NewSimpleFileStorage(location string) FileStorage {
	return &SimpleFileStorage{
		location: location,
	}
}

// Store 缩进4个空格，保留非ASCII字符原样输出
func (s *SimpleFileStorage) Store(name string, v interface{}) error {
	fp := filepath.Join(s.location, name)
	if err := os.MkdirAll(filepath.Dir(fp), os.ModePerm); err != nil {
		return err
	}

	// 先写临时文件再rename，避免留下写了一半的文件
	tmp := fp + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err = enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, fp)
}
