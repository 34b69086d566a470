package main

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/cmdstream"
	"github.com/gogpu/cmdstream/channel/halchan"
	"github.com/gogpu/cmdstream/wire"
)

// openNoopChannel returns a channel that submits through a noop HAL device
// and then forwards to next.
func openNoopChannel(next cmdstream.Channel) (cmdstream.Channel, func(), error) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, errors.New("no noop adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, fmt.Errorf("open device: %w", err)
	}
	closeFn := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}

	gpu, err := halchan.New(openDev.Device, openDev.Queue)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	ch := cmdstream.ChannelFunc(func(sub *wire.Submission) error {
		if err := gpu.Submit(sub); err != nil {
			return err
		}
		return next.Submit(sub)
	})
	return ch, closeFn, nil
}
