package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/andrewyi/autoria-crawler/src/dbstorage/schema"
	"github.com/andrewyi/autoria-crawler/src/entity"
	"github.com/andrewyi/autoria-crawler/src/filestorage"
	"github.com/andrewyi/autoria-crawler/src/routingpool"
)

const (
	exportDirLayout   = "02012006150405"
	createdAtLayout   = "2006-01-02 15:04:05.999999"
	exportFilePattern = "exported_cars_%d_%d.json"
)

// CarReader 按id顺序分页读取记录
type CarReader interface {
	FindCars(ctx context.Context, offset, limit int) ([]*schema.Car, error)
}

type ExportOptions struct {
	ChunkSize int
	Worker    uint32
}

type ExportResult struct {
	Dir     string
	Files   int64
	Records int64
}

type exportJob struct {
	offset int
	cars   []*schema.Car
}

// Export 将全部记录按ChunkSize分页写入 <now>/exported_cars_<offset>_<offset+chunk>.json
// 读取是顺序的，写文件由worker并发完成
func Export(ctx context.Context, logger *log.Logger, reader CarReader, files filestorage.FileStorage,
	opts ExportOptions, now time.Time) (*ExportResult, error) {

	if opts.ChunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}

	var result = &ExportResult{Dir: now.Format(exportDirLayout)}
	var filesWritten, records int64
	jobs := make(chan exportJob, opts.Worker)

	pool := routingpool.NewSimpleRoutingPool(ctx, opts.Worker, func(ctx context.Context) error {
		var errs []error
		for job := range jobs {
			name := filepath.Join(result.Dir, fmt.Sprintf(exportFilePattern, job.offset, job.offset+opts.ChunkSize))
			if err := files.Store(name, toExportedCars(job.cars)); err != nil {
				logger.WithError(err).WithField("file", name).Error("fail to write export file")
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			atomic.AddInt64(&filesWritten, 1)
			atomic.AddInt64(&records, int64(len(job.cars)))
			logger.WithField("file", name).WithField("records", len(job.cars)).Debug("export file written")
		}
		return errors.Join(errs...)
	})
	if err := pool.Start(); err != nil {
		return nil, err
	}

	readErr := produceExportJobs(ctx, reader, opts.ChunkSize, jobs)
	close(jobs)
	writeErr := pool.Stop()

	result.Files = atomic.LoadInt64(&filesWritten)
	result.Records = atomic.LoadInt64(&records)
	if err := errors.Join(readErr, writeErr); err != nil {
		return result, err
	}
	return result, nil
}

func produceExportJobs(ctx context.Context, reader CarReader, chunkSize int, jobs chan<- exportJob) error {
	for offset := 0; ; offset += chunkSize {
		cars, err := reader.FindCars(ctx, offset, chunkSize)
		if err != nil {
			return fmt.Errorf("fail to read cars at offset %d: %w", offset, err)
		}
		if len(cars) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case jobs <- exportJob{offset: offset, cars: cars}:
		}
		if len(cars) < chunkSize {
			return nil
		}
	}
}

func toExportedCars(cars []*schema.Car) []entity.ExportedCar {
	exported := make([]entity.ExportedCar, 0, len(cars))
	for _, c := range cars {
		exported = append(exported, entity.ExportedCar{
			ID:          c.ID,
			URL:         c.URL,
			Title:       c.Title,
			PriceUSD:    c.PriceUSD,
			Odometer:    c.Odometer,
			Username:    c.Username,
			ImageURL:    c.ImageURL,
			ImagesCount: c.ImagesCount,
			CarNumber:   c.CarNumber,
			CarVIN:      c.CarVIN,
			PhoneNumber: c.PhoneNumber,
			CreatedAt:   c.CreatedAt.Format(createdAtLayout),
		})
	}
	return exported
}
