package main

import (
	"context"
	"net"
	"strings"

	"github.com/czerwonk/delay_tracker/config"
	"github.com/czerwonk/delay_tracker/probe"
	log "github.com/sirupsen/logrus"
)

func setupResolver(cfg *config.Config) (probe.Resolver, error) {
	if cfg.DNS.K8s {
		log.Infoln("Resolving targets using Kubernetes endpoints")
		return NewK8sResolver()
	}

	if cfg.DNS.Nameserver == "" {
		return net.DefaultResolver, nil
	}

	if !strings.HasSuffix(cfg.DNS.Nameserver, ":53") {
		cfg.DNS.Nameserver += ":53"
	}
	dialer := func(ctx context.Context, network, address string) (net.Conn, error) {
		d := net.Dialer{}

		return d.DialContext(ctx, "udp", cfg.DNS.Nameserver)
	}

	return &net.Resolver{PreferGo: true, Dial: dialer}, nil
}
