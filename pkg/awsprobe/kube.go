package awsprobe

import (
	"context"
	"fmt"
	"log/slog"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/gaugeworks/cloudgauge/pkg/audit/inventory"
)

// KubeEnricher refines container-cluster records with live node and pod
// counts from the cluster API. The nodegroup-derived count misses
// self-managed and Fargate capacity; the cluster itself does not.
type KubeEnricher struct {
	client  kubernetes.Interface
	cluster string
	log     *slog.Logger
}

// NewKubeEnricher connects to the cluster a kubeconfig points at. A
// non-empty cluster name restricts enrichment to records with that name,
// since one kubeconfig context serves one cluster.
func NewKubeEnricher(kubeconfig, cluster string, log *slog.Logger) (*KubeEnricher, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes client: %w", err)
	}
	return &KubeEnricher{client: clientset, cluster: cluster, log: log}, nil
}

// Enrich stamps node and pod counts onto matching cluster records. Records
// are updated in place before analysis runs; failures leave the
// nodegroup-derived attributes untouched.
func (e *KubeEnricher) Enrich(ctx context.Context, records []inventory.ResourceRecord) {
	nodes, err := e.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		e.log.Warn("kube node listing failed", "error", err)
		return
	}
	pods, err := e.client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		e.log.Warn("kube pod listing failed", "error", err)
		return
	}

	ready := 0
	for _, node := range nodes.Items {
		if nodeReady(node) {
			ready++
		}
	}
	pending := 0
	for _, pod := range pods.Items {
		if pod.Status.Phase == corev1.PodPending {
			pending++
		}
	}

	for i := range records {
		rec := &records[i]
		if rec.Kind != inventory.KindCluster {
			continue
		}
		if e.cluster != "" && rec.Name != e.cluster {
			continue
		}
		rec.Attributes[inventory.AttrNodeCount] = len(nodes.Items)
		rec.Attributes["NodesReady"] = ready
		rec.Attributes["PodCount"] = len(pods.Items)
		rec.Attributes["PodsPending"] = pending
		e.log.Debug("cluster enriched from kube api", "cluster", rec.Name,
			"nodes", len(nodes.Items), "pods", len(pods.Items))
	}
}

func nodeReady(node corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
