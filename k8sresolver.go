package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/czerwonk/delay_tracker/probe"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// K8sResolver resolves <service>.<namespace> to the addresses of the
// service endpoints.
type K8sResolver struct {
	endpoints func(ctx context.Context, namespace, service string) ([]string, error)
}

func NewK8sResolver() (probe.Resolver, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-cluster config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return &K8sResolver{endpoints: clientsetEndpoints(clientset)}, nil
}

func clientsetEndpoints(clientset kubernetes.Interface) func(ctx context.Context, namespace, service string) ([]string, error) {
	return func(ctx context.Context, namespace, service string) ([]string, error) {
		endpoints, err := clientset.CoreV1().Endpoints(namespace).Get(ctx, service, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get endpoints for service %s in namespace %s: %w", service, namespace, err)
		}

		var ips []string
		for _, subset := range endpoints.Subsets {
			for _, addr := range subset.Addresses {
				ips = append(ips, addr.IP)
			}
		}

		return ips, nil
	}
}

func (r *K8sResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid service name; expected format <service>.<namespace>")
	}

	addrs, err := r.endpoints(ctx, parts[1], parts[0])
	if err != nil {
		return nil, err
	}

	var ips []net.IPAddr
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil {
			ips = append(ips, net.IPAddr{IP: ip})
		}
	}

	if len(ips) == 0 {
		return nil, errors.New("no endpoints found for service")
	}

	return ips, nil
}
