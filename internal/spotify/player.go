package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// Devices lists the playback devices on the user's account.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	devices, err := c.api.PlayerDevices(ctx)
	if err != nil {
		return nil, classify("listing devices", err)
	}

	out := make([]Device, len(devices))
	for i, d := range devices {
		out[i] = Device{ID: d.ID.String(), Name: d.Name, Active: d.Active}
	}
	return out, nil
}

// FindDevice returns the device whose name matches exactly.
// Returns ErrDeviceNotFound when no device has that name.
func (c *Client) FindDevice(ctx context.Context, name string) (*Device, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == name {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrDeviceNotFound)
}

// StartPlayback plays track on the device from offsetMs.
func (c *Client) StartPlayback(ctx context.Context, deviceID string, track ResolvedTrack, offsetMs int) error {
	id := spotify.ID(deviceID)
	opts := &spotify.PlayOptions{
		DeviceID: &id,
		URIs:     []spotify.URI{spotify.URI(track.URI())},
	}
	setPosition(&opts.PositionMs, offsetMs)

	if err := c.api.PlayOpt(ctx, opts); err != nil {
		return classify("starting playback", err)
	}
	return nil
}

// setPosition assigns a millisecond offset to the library's numeric field.
func setPosition[T ~int | ~int64](dst *T, ms int) {
	*dst = T(ms)
}
