package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRejectsBadSpec(t *testing.T) {
	logger, _ := test.NewNullLogger()
	err := Schedule(context.Background(), logger, Job{Name: "crawl", Spec: "every noon", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestScheduleStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Schedule(ctx, logger, Job{Name: "export", Spec: "0 0 * * *", Run: func(context.Context) error { return nil }})
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunJob(t *testing.T) {
	logger, hook := test.NewNullLogger()

	var ran int
	runJob(context.Background(), logger, Job{Name: "crawl", Run: func(context.Context) error {
		ran++
		return errors.New("boom")
	}})
	assert.Equal(t, 1, ran)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "job failed", hook.LastEntry().Message)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runJob(ctx, logger, Job{Name: "crawl", Run: func(context.Context) error {
		ran++
		return nil
	}})
	assert.Equal(t, 1, ran)
}
