package hud

import (
	"fmt"

	mgl32 "github.com/go-gl/mathgl/mgl32"
)

type Info struct {
	Width, Height  uint32
	FramesInFlight int
	Images         int
	PresentMode    string
	MSAASamples    int
	Camera         mgl32.Vec3
	Stats          Stats
}

func Lines(info Info) []string {
	ms := float64(info.Stats.FrameTime.Microseconds()) / 1000
	return []string{
		fmt.Sprintf("screen %dx%d %s", info.Width, info.Height, info.PresentMode),
		fmt.Sprintf("frames in flight %d / images %d", info.FramesInFlight, info.Images),
		fmt.Sprintf("msaa samples %d", max(info.MSAASamples, 1)),
		fmt.Sprintf("frame time %.2f ms (%.1f fps)", ms, info.Stats.FPS),
		fmt.Sprintf("camera (%.2f, %.2f, %.2f)", info.Camera.X(), info.Camera.Y(), info.Camera.Z()),
	}
}
