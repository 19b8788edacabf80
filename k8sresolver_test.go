package main

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestK8sResolver(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: "echo", Namespace: "probes"},
		Subsets: []corev1.EndpointSubset{
			{Addresses: []corev1.EndpointAddress{{IP: "10.1.0.4"}, {IP: "10.1.0.5"}}},
		},
	})
	r := &K8sResolver{endpoints: clientsetEndpoints(clientset)}

	addrs, err := r.LookupIPAddr(context.Background(), "echo.probes")
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) != 2 || addrs[0].IP.String() != "10.1.0.4" || addrs[1].IP.String() != "10.1.0.5" {
		t.Errorf("unexpected addresses %v", addrs)
	}

	if _, err := r.LookupIPAddr(context.Background(), "echo"); err == nil {
		t.Error("expected error for name without namespace")
	}

	if _, err := r.LookupIPAddr(context.Background(), "missing.probes"); err == nil {
		t.Error("expected error for unknown service")
	}
}

func TestK8sResolverNoEndpoints(t *testing.T) {
	clientset := fake.NewSimpleClientset(&corev1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: "idle", Namespace: "probes"},
	})
	r := &K8sResolver{endpoints: clientsetEndpoints(clientset)}

	if _, err := r.LookupIPAddr(context.Background(), "idle.probes"); err == nil {
		t.Error("expected error for service without endpoints")
	}
}
