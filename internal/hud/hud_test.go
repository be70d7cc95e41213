package hud

import (
	"image"
	"image/color"
	"testing"
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsAveragesPerSecond(t *testing.T) {
	var s Stats
	start := time.Unix(100, 0)
	s.Tick(start)
	assert.Zero(t, s.FrameTime)

	for i := 1; i <= 60; i++ {
		s.Tick(start.Add(time.Duration(i) * time.Second / 60))
	}
	assert.InDelta(t, 60, s.FPS, 0.01)
	assert.InDelta(t, float64(time.Second/60), float64(s.FrameTime), float64(time.Microsecond))
}

func TestLines(t *testing.T) {
	lines := Lines(Info{
		Width: 800, Height: 600,
		FramesInFlight: 2,
		Images:         3,
		PresentMode:    "mailbox",
		MSAASamples:    4,
		Camera:         mgl32.Vec3{1, 2.5, -8},
		Stats:          Stats{FPS: 59.94, FrameTime: 16683 * time.Microsecond},
	})
	assert.Equal(t, []string{
		"screen 800x600 mailbox",
		"frames in flight 2 / images 3",
		"msaa samples 4",
		"frame time 16.68 ms (59.9 fps)",
		"camera (1.00, 2.50, -8.00)",
	}, lines)
}

func TestGlyphRuns(t *testing.T) {
	mask := image.NewAlpha(image.Rect(0, 0, 4, 2))
	for _, p := range []image.Point{{0, 0}, {1, 0}, {3, 0}, {1, 1}, {2, 1}, {3, 1}} {
		mask.SetAlpha(p.X, p.Y, color.Alpha{A: 255})
	}
	runs := glyphRuns(image.Rect(10, 20, 14, 22), mask, image.Point{})
	assert.Equal(t, []run{
		{x: 10, y: 20, w: 2},
		{x: 13, y: 20, w: 1},
		{x: 11, y: 21, w: 3},
	}, runs)
}

func TestLayout(t *testing.T) {
	assert.Nil(t, Layout([]string{"x"}, 0, 600, 1, 0))
	assert.Empty(t, Layout([]string{"   "}, 800, 600, 1, 0))

	verts := Layout([]string{"60.0 fps", "camera"}, 800, 600, 2, 0)
	require.NotEmpty(t, verts)
	assert.Zero(t, len(verts)%6)
	for _, v := range verts {
		assert.GreaterOrEqual(t, v.Pos.X(), float32(-1))
		assert.LessOrEqual(t, v.Pos.X(), float32(1))
		assert.GreaterOrEqual(t, v.Pos.Y(), float32(-1))
		assert.LessOrEqual(t, v.Pos.Y(), float32(1))
	}

	// The second line starts below the first.
	first := Layout([]string{"#"}, 800, 600, 1, 0)
	second := Layout([]string{"", "#"}, 800, 600, 1, 0)
	require.Equal(t, len(first), len(second))
	assert.Greater(t, second[0].Pos.Y(), first[0].Pos.Y())
}

func TestLayoutTruncates(t *testing.T) {
	verts := Layout([]string{"WWWWWWWW"}, 800, 600, 1, 12)
	assert.Len(t, verts, 12)
}
