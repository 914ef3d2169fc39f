package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/go-gl/gl/v4.3-core/gl"
	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/prism-vj/prism/config"
	"github.com/prism-vj/prism/engine"
	"github.com/prism-vj/prism/glfwcontext"
)

func init() {
	// GLFW and the GL context must live on the main thread.
	runtime.LockOSThread()
}

// logger is the process-wide structured logger. Safe to use before
// initLogger is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	width := flag.Int("width", 1280, "window width")
	height := flag.Int("height", 720, "window height")
	project := flag.String("project", ".", "project directory containing pipeline.yaml")
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	flag.Parse()

	initLogger(*debug)

	if err := run(*width, *height, *project); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(width, height int, project string) error {
	cfg, err := config.Load(project)
	if err != nil {
		return err
	}

	if err := glfwcontext.InitGraphics(); err != nil {
		return fmt.Errorf("initializing glfw: %w", err)
	}
	defer glfwcontext.TerminateGraphics()

	ctx, err := glfwcontext.New(width, height, "prism")
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}
	defer ctx.Shutdown()

	ctx.MakeCurrent()
	if err := gl.Init(); err != nil {
		return fmt.Errorf("initializing opengl: %w", err)
	}
	glfw.SwapInterval(1)
	logger.Info("prism starting",
		"project", project,
		"gl", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
	)

	eng, err := engine.New(ctx, cfg, project, logger)
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	ctx.RegisterKeyCallback(glfw.KeySpace, eng.TapBeat)
	ctx.RegisterKeyCallback(glfw.KeyS, eng.ArmSliderBind)
	ctx.RegisterKeyCallback(glfw.KeyB, eng.ArmButtonBind)
	ctx.RegisterKeyCallback(glfw.KeyC, eng.CancelBind)
	ctx.RegisterKeyCallback(glfw.KeyR, eng.Reload)

	eng.Run()
	return nil
}
