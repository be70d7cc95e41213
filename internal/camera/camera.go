// Package camera is a keyboard and mouse fly camera.
package camera

import (
	mgl32 "github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultYaw       = 90
	DefaultPitch     = 0
	DefaultMoveSpeed = 0.05
	DefaultLookSpeed = 0.05

	// FovY is the vertical field of view in degrees.
	FovY  = 25
	ZNear = 0.1
	ZFar  = 100

	maxPitch = 89
	// keyLookSteps is how many cursor pixels one frame of arrow key is worth.
	keyLookSteps = 20
	fastFactor   = 10
)

type Key int

const (
	KeyForward Key = iota
	KeyBack
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyLookLeft
	KeyLookRight
	KeyLookUp
	KeyLookDown
	KeyReset
	KeyFast
	keyCount
)

// Input is one frame's snapshot of the cursor and held keys.
type Input struct {
	CursorX, CursorY float64
	held             [keyCount]bool
}

func (in *Input) Press(k Key) {
	in.held[k] = true
}

func (in Input) Held(k Key) bool {
	return in.held[k]
}

type Camera struct {
	Pos   mgl32.Vec3
	Yaw   float32
	Pitch float32

	MoveSpeed float32
	LookSpeed float32

	home         mgl32.Vec3
	skip         int
	prevX, prevY float64
}

func New(pos mgl32.Vec3, moveSpeed, lookSpeed float32) *Camera {
	return &Camera{
		Pos:       pos,
		Yaw:       DefaultYaw,
		Pitch:     DefaultPitch,
		MoveSpeed: moveSpeed,
		LookSpeed: lookSpeed,
		home:      pos,
	}
}

// Update applies one frame of input. The first two cursor samples only
// seed the previous position so the view does not jump when the cursor
// enters the window.
func (c *Camera) Update(in Input) {
	if c.skip < 2 {
		c.prevX, c.prevY = in.CursorX, in.CursorY
		c.skip++
	}
	dx := in.CursorX - c.prevX
	dy := c.prevY - in.CursorY
	c.prevX, c.prevY = in.CursorX, in.CursorY

	c.Yaw += float32(dx) * c.LookSpeed
	c.Pitch += float32(dy) * c.LookSpeed

	step := keyLookSteps * c.LookSpeed
	if in.Held(KeyLookLeft) {
		c.Yaw -= step
	}
	if in.Held(KeyLookRight) {
		c.Yaw += step
	}
	if in.Held(KeyLookUp) {
		c.Pitch += step
	}
	if in.Held(KeyLookDown) {
		c.Pitch -= step
	}
	c.Pitch = mgl32.Clamp(c.Pitch, -maxPitch, maxPitch)

	if in.Held(KeyFast) {
		c.MoveSpeed = DefaultMoveSpeed * fastFactor
	}

	front := c.Front()
	up := mgl32.Vec3{0, 1, 0}
	right := up.Cross(front)
	move := func(dir mgl32.Vec3, sign float32) {
		c.Pos = c.Pos.Add(dir.Mul(sign * c.MoveSpeed))
	}
	if in.Held(KeyForward) {
		move(front, 1)
	}
	if in.Held(KeyBack) {
		move(front, -1)
	}
	if in.Held(KeyLeft) {
		move(right, 1)
	}
	if in.Held(KeyRight) {
		move(right, -1)
	}
	if in.Held(KeyUp) {
		move(up, 1)
	}
	if in.Held(KeyDown) {
		move(up, -1)
	}
	if in.Held(KeyReset) {
		c.Reset()
	}
}

// Reset returns to the starting position and orientation.
func (c *Camera) Reset() {
	c.Pos = c.home
	c.Yaw = DefaultYaw
	c.Pitch = DefaultPitch
}

// Front is the unit view direction.
func (c *Camera) Front() mgl32.Vec3 {
	yaw, pitch := mgl32.DegToRad(c.Yaw), mgl32.DegToRad(c.Pitch)
	cp := cos(pitch)
	return mgl32.Vec3{cp * cos(yaw), sin(pitch), cp * sin(yaw)}.Normalize()
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Pos, c.Pos.Add(c.Front()), mgl32.Vec3{0, 1, 0})
}

// Projection is a right-handed perspective with Y flipped for Vulkan clip
// space.
func Projection(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(FovY), aspect, ZNear, ZFar)
	proj[5] *= -1
	return proj
}
