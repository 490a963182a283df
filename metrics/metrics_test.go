package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	c := New()
	mfs, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) != 9 {
		t.Fatalf("got %d registered metrics, want 9", len(mfs))
	}
}

func TestTwoCollectorsDoNotCollide(t *testing.T) {
	a := New()
	b := New()
	a.FramesSent.Inc()
	b.FramesSent.Inc()
	b.FramesSent.Inc()

	if got := testutil.ToFloat64(a.FramesSent); got != 1 {
		t.Fatalf("a.FramesSent = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.FramesSent); got != 2 {
		t.Fatalf("b.FramesSent = %v, want 2", got)
	}
}
