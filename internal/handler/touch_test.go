package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/replay"
	"github.com/xkilldash9x/foresight/internal/settings"
)

func setupTouch(t *testing.T, strategy settings.TouchStrategy) (*Touch, *mockDispatcher, *replay.Host, []*replay.Node) {
	t.Helper()
	d := newMockDispatcher()
	d.settings.TouchDeviceStrategy = strategy
	host := replay.NewHost(replay.WithStart(epoch))
	nodes := []*replay.Node{
		replay.NewNode("visible", geometry.Rect{Top: 10, Left: 10, Right: 50, Bottom: 50}, false),
		replay.NewNode("below", geometry.Rect{Top: 1000, Left: 10, Right: 50, Bottom: 1050}, false),
	}
	host.Append(nodes...)
	for _, n := range nodes {
		d.track(n)
	}
	return NewTouch(d, host, zaptest.NewLogger(t)), d, host, nodes
}

func TestTouch_OnTouchStart(t *testing.T) {
	h, d, host, nodes := setupTouch(t, settings.TouchOnTouchStart)
	h.Connect(context.Background())
	defer h.Disconnect()
	assert.Equal(t, settings.TouchOnTouchStart, h.Strategy())
	assert.Equal(t, 2, host.ListenerCount())

	host.Touch(nodes[1])
	host.Touch(nodes[1])
	require.Len(t, d.hits, 1)
	assert.Equal(t, "below", d.hits[0].name)
	assert.Equal(t, schemas.TouchHit(), d.hits[0].hit)
	assert.Equal(t, 1, host.ListenerCount(), "fired elements stop listening")
}

func TestTouch_Viewport(t *testing.T) {
	h, d, host, _ := setupTouch(t, settings.TouchViewport)
	h.Connect(context.Background())
	defer h.Disconnect()

	host.Settle()
	require.Len(t, d.hits, 1)
	assert.Equal(t, "visible", d.hits[0].name)
	assert.Equal(t, schemas.ViewportHit(), d.hits[0].hit)
	assert.Equal(t, 1, host.ObservedCount())

	host.Scroll(0, 980)
	host.Settle()
	require.Len(t, d.hits, 2)
	assert.Equal(t, "below", d.hits[1].name)
	assert.Equal(t, 0, host.ObservedCount())
}

func TestTouch_StrategySwap(t *testing.T) {
	h, d, host, nodes := setupTouch(t, settings.TouchOnTouchStart)
	h.Connect(context.Background())

	d.apply(h, settings.Partial{TouchDeviceStrategy: settings.Ptr(settings.TouchViewport)})
	assert.Equal(t, settings.TouchViewport, h.Strategy())
	assert.Equal(t, 0, host.ListenerCount())
	assert.Equal(t, 2, host.ObservedCount())

	host.Touch(nodes[1])
	assert.Empty(t, d.hits)

	h.Disconnect()
	assert.Equal(t, 0, host.ObservedCount())
	assert.Equal(t, settings.TouchStrategy(""), h.Strategy())

	h.Observe(d.reg.Elements()[0])
	assert.Equal(t, 0, host.ObservedCount(), "observing while disconnected is ignored")
}

// recordingHost keeps every intersection callback it hands out so a test can
// replay a batch after its observer was replaced.
type recordingHost struct {
	*replay.Host
	callbacks []dom.ObserverCallback
}

func (h *recordingHost) NewIntersectionObserver(cb dom.ObserverCallback) dom.Observer {
	h.callbacks = append(h.callbacks, cb)
	return h.Host.NewIntersectionObserver(cb)
}

func TestTouch_StaleObserverBatchIgnored(t *testing.T) {
	d := newMockDispatcher()
	d.settings.TouchDeviceStrategy = settings.TouchViewport
	host := &recordingHost{Host: replay.NewHost(replay.WithStart(epoch))}
	below := replay.NewNode("below", geometry.Rect{Top: 1000, Left: 10, Right: 50, Bottom: 1050}, false)
	host.Append(below)
	d.track(below)

	h := NewTouch(d, host, zaptest.NewLogger(t))
	h.Connect(context.Background())
	defer h.Disconnect()

	d.apply(h, settings.Partial{TouchDeviceStrategy: settings.Ptr(settings.TouchOnTouchStart)})
	d.apply(h, settings.Partial{TouchDeviceStrategy: settings.Ptr(settings.TouchViewport)})
	require.Len(t, host.callbacks, 2)
	require.Equal(t, 1, host.ObservedCount())

	retired := host.callbacks[0]
	retired([]dom.PositionEntry{{Target: below, BoundingBox: below.BoundingBox(), IsIntersecting: true}})

	assert.Empty(t, d.hits)
	assert.Equal(t, 1, host.ObservedCount(), "the current observer keeps watching")

	current := host.callbacks[1]
	current([]dom.PositionEntry{{Target: below, BoundingBox: below.BoundingBox(), IsIntersecting: true}})
	require.Len(t, d.hits, 1)
	assert.Equal(t, schemas.ViewportHit(), d.hits[0].hit)
	assert.Equal(t, 0, host.ObservedCount())
}
