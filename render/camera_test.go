package render

import (
	"slices"
	"testing"

	"github.com/lixenwraith/sixty-below/constant"
	"github.com/lixenwraith/sixty-below/world"
)

func smallLayout(t *testing.T) world.Layout {
	t.Helper()
	l, err := world.NewLayout(6, 5) // 64x32 tiles, 4x2 chunks
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestCameraChunkLists(t *testing.T) {
	c := NewCamera(smallLayout(t), 20, 10)

	if got, want := c.DisplayChunks(), []int{0, 1}; !slices.Equal(got, want) {
		t.Errorf("display = %v, want %v", got, want)
	}
	if got, want := c.PreloadChunks(), []int{2, 4, 5, 6}; !slices.Equal(got, want) {
		t.Errorf("preload = %v, want %v", got, want)
	}
}

func TestCameraCenterOnClamps(t *testing.T) {
	tests := []struct {
		name   string
		tx, ty int
		wantX  int
		wantY  int
	}{
		{"origin", 0, 0, 0, 0},
		{"middle", 32, 16, 22, 11},
		{"far corner", 1000, 1000, 44, 22},
		{"negative", -50, -50, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera(smallLayout(t), 20, 10)
			c.CenterOn(tt.tx, tt.ty)
			if x, y := c.Origin(); x != tt.wantX || y != tt.wantY {
				t.Errorf("origin = (%d,%d), want (%d,%d)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestCameraViewLargerThanWorld(t *testing.T) {
	c := NewCamera(smallLayout(t), 200, 100)
	c.CenterOn(30, 30)
	if x, y := c.Origin(); x != 0 || y != 0 {
		t.Errorf("origin = (%d,%d), want (0,0)", x, y)
	}
	if len(c.DisplayChunks()) != 8 || len(c.PreloadChunks()) != 0 {
		t.Errorf("display %v preload %v, want all 8 chunks displayed", c.DisplayChunks(), c.PreloadChunks())
	}
}

func TestCameraZoom(t *testing.T) {
	c := NewCamera(smallLayout(t), 10, 5)
	c.SetZoom(9)
	if c.Zoom() != constant.ZoomMax {
		t.Fatalf("zoom = %d, want %d", c.Zoom(), constant.ZoomMax)
	}
	if c.LogicalWidth() != 20 || c.LogicalHeight() != 10 {
		t.Errorf("logical = %dx%d, want 20x10", c.LogicalWidth(), c.LogicalHeight())
	}

	c.CenterOn(10, 5)
	wx, wy := c.ScreenToWorld(3, 2)
	if wx != 6 || wy != 4 {
		t.Errorf("ScreenToWorld(3,2) = (%d,%d), want (6,4)", wx, wy)
	}
	if sx, sy, ok := c.WorldToScreen(6, 4); !ok || sx != 3 || sy != 2 {
		t.Errorf("WorldToScreen(6,4) = (%d,%d,%v)", sx, sy, ok)
	}
	if _, _, ok := c.WorldToScreen(7, 4); ok {
		t.Error("odd tile reported on screen at zoom 2")
	}

	c.SetZoom(0)
	if c.Zoom() != constant.ZoomMin {
		t.Errorf("zoom = %d, want %d", c.Zoom(), constant.ZoomMin)
	}
}

func TestCameraFollowConverges(t *testing.T) {
	c := NewCamera(smallLayout(t), 20, 10)
	v := c.Version()

	steps := 0
	for ; steps < 100; steps++ {
		c.Follow(54, 27, constant.CameraFollowSpeed)
		if x, y := c.Origin(); x == 44 && y == 22 {
			break
		}
	}
	if steps == 100 {
		x, y := c.Origin()
		t.Fatalf("camera stuck at (%d,%d)", x, y)
	}
	if c.Version() == v {
		t.Error("chunk lists never refreshed while moving")
	}

	v = c.Version()
	if c.Follow(54, 27, constant.CameraFollowSpeed) || c.Version() != v {
		t.Error("settled camera refreshed its chunk lists")
	}
}
