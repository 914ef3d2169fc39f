// Package graphics defines the windowing surface the engine renders into.
package graphics

// Context is an OpenGL context plus the window that owns it. All methods
// must be called from the thread the context is current on.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
}
