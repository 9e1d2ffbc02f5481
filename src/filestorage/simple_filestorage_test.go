package filestorage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreWritesIndentedJSON(t *testing.T) {
	dir := t.TempDir()
	s := NewSimpleFileStorage(dir)

	v := []map[string]interface{}{{"title": "Škoda & Audi <A6>", "price_usd": 100}}
	require.NoError(t, s.Store(filepath.Join("01012024120000", "exported_cars_0_1000.json"), v))

	content, err := os.ReadFile(filepath.Join(dir, "01012024120000", "exported_cars_0_1000.json"))
	require.NoError(t, err)
	assert.Equal(t, "[\n    {\n        \"price_usd\": 100,\n        \"title\": \"Škoda & Audi <A6>\"\n    }\n]\n", string(content))

	_, err = os.Stat(filepath.Join(dir, "01012024120000", "exported_cars_0_1000.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreUnsupportedValue(t *testing.T) {
	dir := t.TempDir()
	s := NewSimpleFileStorage(dir)

	err := s.Store("bad.json", map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
