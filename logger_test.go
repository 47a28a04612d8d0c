package annoy

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hupe1980/annoy/distance"
	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newTextLogger(&buf, slog.LevelInfo).WithIndex(16, distance.MetricAngular)
	ctx := context.Background()

	l.LogAdd(ctx, 1, 16, nil)
	assert.Empty(t, buf.String(), "debug records are below the level")

	l.LogBuild(ctx, 10, 321, time.Second, nil)
	out := buf.String()
	assert.Contains(t, out, `msg=build`)
	assert.Contains(t, out, "trees=10")
	assert.Contains(t, out, "dimension=16")
	assert.Contains(t, out, "metric=Angular")

	buf.Reset()
	l.LogSave(ctx, "/tmp/x.ann", 0, errors.New("disk full"))
	out = buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="save failed"`)
	assert.Contains(t, out, `error="disk full"`)

	buf.Reset()
	l.LogLoad(ctx, "bytes", BackingCopy, nil)
	assert.Contains(t, buf.String(), "backing=copy")
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogSearch(context.Background(), 10, 0, 0, errors.New("ignored"))
}

func TestUnknownMetricWarns(t *testing.T) {
	var buf bytes.Buffer
	idx, err := Create(3, "hamming", WithLogger(newTextLogger(&buf, slog.LevelWarn)))
	assert.NoError(t, err)
	defer idx.Close()

	assert.Contains(t, buf.String(), "unknown metric")
	assert.Contains(t, buf.String(), "metric=hamming")
}
