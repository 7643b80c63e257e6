package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dalemusser/rollcall/internal/app/system/correlator"
)

var feedbackFor = map[string]string{
	correlator.KindEnroll.Command():     correlator.KindEnroll.Feedback(),
	correlator.KindAttendance.Command(): correlator.KindAttendance.Feedback(),
	correlator.KindUnenroll.Command():   correlator.KindUnenroll.Feedback(),
}

// DeviceCommand is one command received by a FakeDevice.
type DeviceCommand struct {
	Event   string
	Payload map[string]string
}

// FakeDevice stands in for the attendance device. Each command is answered
// by the reply function: nil means success, a string is the device's error,
// and a nil reply function means the device stays silent.
type FakeDevice struct {
	mu      sync.Mutex
	handler func(event string, data json.RawMessage)
	sent    []DeviceCommand
	sendErr error
	reply   func(cmd DeviceCommand) any
}

// NewFakeDevice returns a device that confirms every command.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{reply: DeviceSucceeds}
}

// DeviceSucceeds confirms any command.
func DeviceSucceeds(DeviceCommand) any { return nil }

// DeviceFails answers every command with reason.
func DeviceFails(reason string) func(DeviceCommand) any {
	return func(DeviceCommand) any { return reason }
}

func (d *FakeDevice) OnMessage(fn func(event string, data json.RawMessage)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = fn
}

func (d *FakeDevice) Send(_ context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	cmd := DeviceCommand{Event: event}
	if err := json.Unmarshal(raw, &cmd.Payload); err != nil {
		return err
	}

	d.mu.Lock()
	d.sent = append(d.sent, cmd)
	sendErr, reply, handler := d.sendErr, d.reply, d.handler
	d.mu.Unlock()

	if sendErr != nil {
		return sendErr
	}
	if reply == nil || handler == nil {
		return nil
	}
	fb := map[string]any{"correlationKey": cmd.Payload["correlationKey"]}
	if e := reply(cmd); e != nil {
		fb["error"] = e
	}
	data, _ := json.Marshal(fb)
	go handler(feedbackFor[event], data)
	return nil
}

// SetReply replaces the reply function; nil silences the device.
func (d *FakeDevice) SetReply(fn func(cmd DeviceCommand) any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reply = fn
}

// SetSendErr makes Send fail with err.
func (d *FakeDevice) SetSendErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendErr = err
}

// Deliver pushes an inbound message as if the device had sent it.
func (d *FakeDevice) Deliver(event string, data json.RawMessage) {
	d.mu.Lock()
	handler := d.handler
	d.mu.Unlock()
	if handler != nil {
		handler(event, data)
	}
}

// Sent returns every command received so far.
func (d *FakeDevice) Sent() []DeviceCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DeviceCommand(nil), d.sent...)
}
