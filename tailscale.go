package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"tailscale.com/client/tailscale"
)

// tsDiscover returns the host names of all devices in the tailnet.
func tsDiscover(ctx context.Context, tailnet, apiKey string) ([]string, error) {
	tailscale.I_Acknowledge_This_API_Is_Unstable = true

	client := tailscale.NewClient(tailnet, tailscale.APIKey(apiKey))

	devices, err := client.Devices(ctx, tailscale.DeviceAllFields)
	if err != nil {
		return nil, fmt.Errorf("tailnet %s: %w", tailnet, err)
	}

	hosts := make([]string, 0, len(devices))
	for _, dev := range devices {
		hosts = append(hosts, dev.Hostname)
	}
	log.Infof("Discovered %d devices in tailnet %s", len(hosts), tailnet)

	return hosts, nil
}
