package main

//go:generate glslc shaders/scene.vert -o shaders/vert.spv
//go:generate glslc shaders/scene.frag -o shaders/frag.spv
//go:generate glslc shaders/overlay.vert -o shaders/overlay_vert.spv
//go:generate glslc shaders/overlay.frag -o shaders/overlay_frag.spv

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"time"

	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/glfw/v3.3/glfw"

	"kubeframe/internal/asset"
	"kubeframe/internal/camera"
	"kubeframe/internal/frame"
	"kubeframe/internal/hud"
	"kubeframe/internal/watch"
)

var cameraStart = mgl32.Vec3{0, 0, -8}

var keyBindings = []struct {
	glfw   glfw.Key
	camera camera.Key
}{
	{glfw.KeyW, camera.KeyForward},
	{glfw.KeyS, camera.KeyBack},
	{glfw.KeyA, camera.KeyLeft},
	{glfw.KeyD, camera.KeyRight},
	{glfw.KeySpace, camera.KeyUp},
	{glfw.KeyLeftShift, camera.KeyDown},
	{glfw.KeyLeft, camera.KeyLookLeft},
	{glfw.KeyRight, camera.KeyLookRight},
	{glfw.KeyUp, camera.KeyLookUp},
	{glfw.KeyDown, camera.KeyLookDown},
	{glfw.KeyR, camera.KeyReset},
	{glfw.Key1, camera.KeyFast},
}

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Printf("kube: %v", err)
		os.Exit(1)
	}
}

type sceneResult struct {
	objects []asset.Object
	err     error
}

func run(cfg Config) error {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	frame.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Assets decode while the window and device come up.
	loaded := make(chan sceneResult, 1)
	go func() {
		objects, err := asset.LoadScene(ctx, asset.DefaultScene(cfg.Model, cfg.Texture, cfg.FloorTexture))
		loaded <- sceneResult{objects: objects, err: err}
	}()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()

	// Ensure the framebuffer has a non-zero size before initializing Vulkan.
	for {
		w, h := window.GetFramebufferSize()
		if w > 0 && h > 0 {
			break
		}
		glfw.WaitEventsTimeout(0.01)
	}

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	vk, err := newVulkanContext(window, cfg.Validation, cfg.MSAASamples)
	if err != nil {
		return fmt.Errorf("init vulkan: %w", err)
	}
	defer vk.Destroy()

	scene := <-loaded
	if scene.err != nil {
		return fmt.Errorf("load scene: %w", scene.err)
	}

	cam := camera.New(cameraStart, cfg.MoveSpeed, cfg.LookSpeed)
	renderer, err := newSceneRenderer(vk, cfg.ShaderDir, cam, scene.objects)
	if err != nil {
		return fmt.Errorf("upload scene: %w", err)
	}
	defer renderer.Close()

	var stats hud.Stats
	overlay := newHUDOverlay(vk, renderer, cfg.ShaderDir, func() hud.Info {
		return hud.Info{
			FramesInFlight: cfg.FramesInFlight,
			Camera:         cam.Pos,
			Stats:          stats,
		}
	})

	engine, err := frame.NewEngine(cfg.Engine(), &glfwSurface{window: window, ctx: vk}, &vkDevice{ctx: vk}, renderer, overlay)
	if err != nil {
		return fmt.Errorf("init frame engine: %w", err)
	}
	defer engine.Destroy()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width int, height int) {
		engine.RequestRebuild()
	})

	if cfg.WatchShaders {
		watcher, err := watch.New(cfg.ShaderDir, watch.DefaultDebounce, func(name string) {
			log.Printf("shader %s changed, rebuilding", name)
			engine.RequestRebuild()
		})
		if err != nil {
			return fmt.Errorf("watch shaders: %w", err)
		}
		defer watcher.Close()
	}

	log.Printf("Entering main loop (%s)", engine.Generation())

	for !window.ShouldClose() && ctx.Err() == nil {
		glfw.PollEvents()
		cam.Update(pollInput(window))
		stats.Tick(time.Now())

		err := engine.DrawFrame()
		if errors.Is(err, frame.ErrSurfaceClosed) {
			break
		}
		if err != nil {
			return fmt.Errorf("draw frame: %w", err)
		}
		time.Sleep(1 * time.Millisecond) // small throttle to avoid busy loop
	}

	s := engine.Stats()
	log.Printf("%d frames, %d rebuilds, %d cross-slot waits", s.Frames, s.Rebuilds, s.CrossSlotWaits)
	return nil
}

func pollInput(w *glfw.Window) camera.Input {
	var in camera.Input
	in.CursorX, in.CursorY = w.GetCursorPos()
	for _, b := range keyBindings {
		if w.GetKey(b.glfw) == glfw.Press {
			in.Press(b.camera)
		}
	}
	return in
}
