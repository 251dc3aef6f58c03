package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/oukeidos/ravemix/internal/logger"
)

// Context is the process-wide audio context shared by capture and playback.
type Context struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// OpenContext initialises the platform audio backend.
func OpenContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("Audio backend", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

func (c *Context) raw() (*malgo.AllocatedContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil, fmt.Errorf("audio context closed")
	}
	return c.ctx, nil
}

// CaptureDevices lists the names of available capture devices.
func (c *Context) CaptureDevices() ([]string, error) {
	ctx, err := c.raw()
	if err != nil {
		return nil, err
	}
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func (c *Context) initDevice(cfg malgo.DeviceConfig, cb malgo.DeviceCallbacks) (*malgo.Device, error) {
	ctx, err := c.raw()
	if err != nil {
		return nil, err
	}
	return malgo.InitDevice(ctx.Context, cfg, cb)
}

// Close releases the backend. Devices must be uninitialised first.
func (c *Context) Close() error {
	c.mu.Lock()
	ctx := c.ctx
	c.ctx = nil
	c.mu.Unlock()
	if ctx == nil {
		return nil
	}
	err := ctx.Uninit()
	ctx.Free()
	return err
}
