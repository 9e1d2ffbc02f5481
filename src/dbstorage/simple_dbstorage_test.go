package dbstorage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewyi/autoria-crawler/src/entity"
)

func TestBuildUpsertSQL(t *testing.T) {
	got := buildUpsertSQL("cars", "url", []string{"title", "price_usd"})
	assert.Equal(t,
		"INSERT INTO cars (url, title, price_usd, created_at, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP) "+
			"ON CONFLICT (url) DO UPDATE SET title = EXCLUDED.title, price_usd = EXCLUDED.price_usd, updated_at = CURRENT_TIMESTAMP",
		got)
}

func TestUpsertCarSQLNeverTouchesKeyOrCreatedAt(t *testing.T) {
	_, set, ok := strings.Cut(upsertCarSQL, "DO UPDATE SET ")
	require.True(t, ok)
	assignments := strings.Split(set, ", ")

	assert.NotContains(t, assignments, "url = EXCLUDED.url")
	for _, a := range assignments {
		assert.False(t, strings.HasPrefix(a, "created_at "), a)
	}
	for _, c := range mutableColumns {
		assert.Contains(t, assignments, c+" = EXCLUDED."+c)
	}
	assert.Contains(t, assignments, "updated_at = CURRENT_TIMESTAMP")
	assert.Len(t, assignments, len(mutableColumns)+1)
}

func TestUpsertCarArgsMatchPlaceholders(t *testing.T) {
	odometer := int64(95000)
	vin := "WBA00000000000000"
	car := entity.Car{
		URL:         "https://auto.ria.com/uk/auto_a.html",
		Title:       "BMW X5",
		PriceUSD:    12000,
		Odometer:    &odometer,
		ImagesCount: 24,
		CarVIN:      &vin,
	}
	args := upsertCarArgs(car)
	require.Len(t, args, strings.Count(upsertCarSQL, "?"))
	require.Len(t, args, len(mutableColumns)+1)

	byColumn := map[string]interface{}{"url": args[0]}
	for i, c := range mutableColumns {
		byColumn[c] = args[i+1]
	}
	assert.Equal(t, car.URL, byColumn["url"])
	assert.Equal(t, car.Title, byColumn["title"])
	assert.Equal(t, car.PriceUSD, byColumn["price_usd"])
	assert.Equal(t, &odometer, byColumn["odometer"])
	assert.Equal(t, car.ImagesCount, byColumn["images_count"])
	assert.Equal(t, &vin, byColumn["car_vin"])

	// 空字段以类型化的nil指针传给驱动，写入NULL
	assert.Equal(t, (*string)(nil), byColumn["username"])
	assert.Equal(t, (*int64)(nil), byColumn["phone_number"])
}

// newTestStorage 需要一个可写的postgres，未设置CRAWLER_TEST_DATABASE_URL时跳过
func newTestStorage(t *testing.T) *SimpleDBStorage {
	dbURL := os.Getenv("CRAWLER_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("CRAWLER_TEST_DATABASE_URL not set")
	}
	s, err := NewSimpleDBStorage(dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Sync())
	return s
}

func testCar(url string) entity.Car {
	odometer := int64(125000)
	username := "Олександр"
	phone := int64(380671234567)
	return entity.Car{
		URL:         url,
		Title:       "BMW X5 2015",
		PriceUSD:    25500,
		Odometer:    &odometer,
		Username:    &username,
		ImagesCount: 24,
		PhoneNumber: &phone,
	}
}

func uniqueURL() string {
	return fmt.Sprintf("https://auto.ria.com/uk/auto_test_%d.html", time.Now().UnixNano())
}

func TestUpsertCarIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	car := testCar(uniqueURL())

	require.NoError(t, s.UpsertCar(ctx, car))
	first, err := s.GetCarByURL(ctx, car.URL)
	require.NoError(t, err)

	require.NoError(t, s.UpsertCar(ctx, car))
	second, err := s.GetCarByURL(ctx, car.URL)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.PriceUSD, second.PriceUSD)
	assert.Equal(t, first.PhoneNumber, second.PhoneNumber)
	assert.Nil(t, second.CarVIN)
}

func TestUpsertCarOverwritesMutableFields(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	car := testCar(uniqueURL())

	require.NoError(t, s.UpsertCar(ctx, car))
	first, err := s.GetCarByURL(ctx, car.URL)
	require.NoError(t, err)

	vin := "WBAKS410500J12345"
	car.PriceUSD = 24000
	car.CarVIN = &vin
	car.PhoneNumber = nil
	require.NoError(t, s.UpsertCar(ctx, car))

	second, err := s.GetCarByURL(ctx, car.URL)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, car.URL, second.URL)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.EqualValues(t, 24000, second.PriceUSD)
	require.NotNil(t, second.CarVIN)
	assert.Equal(t, vin, *second.CarVIN)
	assert.Nil(t, second.PhoneNumber)
}

func TestFindCarsOrderedByID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.UpsertCar(ctx, testCar(uniqueURL())))
	}

	cars, err := s.FindCars(ctx, 0, 1000)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(cars), 3)
	for i := 1; i < len(cars); i++ {
		assert.Less(t, cars[i-1].ID, cars[i].ID)
	}
}

func TestGetCarByURLNotExist(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetCarByURL(context.Background(), uniqueURL())
	assert.ErrorIs(t, err, ErrDataNotExist)
}
