// 实现了一个最简单的协程池
// worker自行决定从哪里获取任务，返回即视为退出
// NOTE: 注意当前实现没有处理worker崩溃、需要重启等问题
package routingpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type SimpleRoutingPool struct {
	wg sync.WaitGroup

	ctx      context.Context
	size     uint32
	workerFn func(context.Context) error

	mu   sync.Mutex
	errs []error
}

func NewSimpleRoutingPool(ctx context.Context, size uint32, workerFn func(context.Context) error) RoutingPool {
	return &SimpleRoutingPool{
		ctx:      ctx,
		size:     size,
		workerFn: workerFn,
	}
}

func (s *SimpleRoutingPool) Start() error {
	if s.size == 0 {
		return fmt.Errorf("routing pool size must be positive")
	}
	var i uint32
	for ; i != s.size; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.workerFn(s.ctx); err != nil {
				s.mu.Lock()
				s.errs = append(s.errs, err)
				s.mu.Unlock()
			}
		}()
	}
	return nil
}

func (s *SimpleRoutingPool) Stop() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}
