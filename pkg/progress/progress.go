// Package progress draws a progress bar over the files of a run, when the
// context was opened with a writer for it.
package progress

import (
	"context"
	"io"
	"path/filepath"
	"time"

	pb "github.com/schollz/progressbar/v3"
)

type pbVal struct {
	w io.Writer
}

type pbKey struct{}

// throttle is the minimum time between redraws.
var throttle = 65 * time.Millisecond

// Open enables progress bars on w for everything run under the returned
// context.
func Open(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, pbKey{}, pbVal{w})
}

// Progress is a bar, or a no-op when progress output is disabled.
type Progress struct {
	bar    *pb.ProgressBar
	prefix string
}

func (t *Progress) Tick() {
	if t.bar == nil {
		return
	}

	t.bar.Add(1)
}

func (t *Progress) Close() {
	if t.bar == nil {
		return
	}

	t.bar.Finish()
}

// On shows the file being worked on.
func (t *Progress) On(path string) {
	if t.bar == nil {
		return
	}

	t.bar.Describe(t.prefix + ": " + filepath.Base(path))
}

func Count(ctx context.Context, total int64, desc string) *Progress {
	val, ok := ctx.Value(pbKey{}).(pbVal)
	if !ok || total == 0 {
		return &Progress{}
	}

	bar := pb.NewOptions64(
		total,
		pb.OptionSetDescription(desc),
		pb.OptionSetWriter(val.w),
		pb.OptionSetWidth(20),
		pb.OptionThrottle(throttle),
		pb.OptionShowCount(),
		pb.OptionSetPredictTime(false),
		pb.OptionSetTheme(
			pb.Theme{Saucer: "=", SaucerPadding: " ", BarStart: "[", BarEnd: "]"},
		),
		pb.OptionClearOnFinish(),
	)

	return &Progress{prefix: desc, bar: bar}
}
