package analyzer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/openshift-netlab/netdiag/pkg/mustgather"
)

const lvmsNamespace = "openshift-storage"

type lvmClusterDoc struct {
	Metadata metav1.ObjectMeta `json:"metadata"`
	Status   struct {
		State               string `json:"state"`
		Ready               bool   `json:"ready"`
		DeviceClassStatuses []struct {
			Name       string `json:"name"`
			NodeStatus []struct {
				Node    string   `json:"node"`
				Status  string   `json:"status"`
				Reason  string   `json:"reason"`
				Devices []string `json:"devices"`
			} `json:"nodeStatus"`
		} `json:"deviceClassStatuses"`
	} `json:"status"`
}

// LVMSDetail summarizes the storage state for the report.
type LVMSDetail struct {
	Clusters    []string `json:"clusters,omitempty"`
	PendingPVCs []string `json:"pendingPVCs,omitempty"`
}

// topolvm publishes the free thin-pool capacity per device class as a node
// annotation, in bytes.
const capacityAnnotationPrefix = "capacity.topolvm.io/"

// AnalyzeLVMS checks LVMCluster readiness, the vg-manager pods and the
// binding state of PVCs on LVMS storage classes.
type AnalyzeLVMS struct{}

func (a *AnalyzeLVMS) Title() string {
	return "LVMS storage health"
}

func (a *AnalyzeLVMS) Analyze(bundle *mustgather.Bundle) (*Result, error) {
	result := &Result{Title: a.Title()}
	detail := &LVMSDetail{}
	result.Detail = detail

	a.checkClusters(bundle, result, detail)
	a.checkPods(bundle, result)
	a.checkPVCs(bundle, result, detail)
	a.checkCapacity(bundle, result)

	return result, nil
}

// checkCapacity reads the topolvm capacity annotations off the node objects
// and flags thin pools that are full or nearly so. "Nearly" is relative to
// the largest value any node reports for the class, since the annotation
// carries free bytes, not totals.
func (a *AnalyzeLVMS) checkCapacity(bundle *mustgather.Bundle, result *Result) {
	paths, err := bundle.Glob("cluster-scoped-resources/core/nodes/*.yaml")
	if err != nil {
		return
	}

	type sample struct {
		node string
		free int64
	}
	perClass := map[string][]sample{}

	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			continue
		}
		var node corev1.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		for key, value := range node.Annotations {
			if !strings.HasPrefix(key, capacityAnnotationPrefix) {
				continue
			}
			class := strings.TrimPrefix(key, capacityAnnotationPrefix)
			free, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				klog.V(1).Infof("node %s: bad capacity annotation %s=%q", node.Name, key, value)
				continue
			}
			perClass[class] = append(perClass[class], sample{node: node.Name, free: free})
		}
	}

	classes := make([]string, 0, len(perClass))
	for class := range perClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	for _, class := range classes {
		samples := perClass[class]
		var max int64
		for _, s := range samples {
			if s.free > max {
				max = s.free
			}
		}
		for _, s := range samples {
			switch {
			case s.free == 0:
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityCritical,
					Node:     s.node,
					Message:  fmt.Sprintf("thin pool for device class %s has no free capacity", class),
				})
			case max > 0 && s.free*10 < max:
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityWarning,
					Node:     s.node,
					Message:  fmt.Sprintf("thin pool for device class %s is nearly full (%d bytes free)", class, s.free),
				})
			}
		}
	}
}

func (a *AnalyzeLVMS) checkClusters(bundle *mustgather.Bundle, result *Result, detail *LVMSDetail) {
	paths, err := bundle.Glob(fmt.Sprintf("namespaces/%s/lvm.topolvm.io/lvmclusters/*.yaml", lvmsNamespace))
	if err != nil || len(paths) == 0 {
		result.Issues = append(result.Issues, Issue{
			Severity: SeverityWarning,
			Message:  "no LVMCluster resources found in the must-gather",
		})
		return
	}

	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		var doc lvmClusterDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		detail.Clusters = append(detail.Clusters, doc.Metadata.Name)

		if doc.Status.State != "Ready" {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("LVMCluster %s is in state %q, expected Ready", doc.Metadata.Name, doc.Status.State),
			})
		}
		for _, dc := range doc.Status.DeviceClassStatuses {
			for _, ns := range dc.NodeStatus {
				if ns.Status == "Ready" {
					continue
				}
				msg := fmt.Sprintf("device class %s on node %s is %q", dc.Name, ns.Node, ns.Status)
				if ns.Reason != "" {
					msg += ": " + ns.Reason
				}
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityWarning,
					Node:     ns.Node,
					Message:  msg,
				})
			}
		}
	}
}

func (a *AnalyzeLVMS) checkPods(bundle *mustgather.Bundle, result *Result) {
	paths, err := bundle.Glob(fmt.Sprintf("namespaces/%s/pods/*/*.yaml", lvmsNamespace))
	if err != nil {
		return
	}

	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			continue
		}
		var pod corev1.Pod
		if err := yaml.Unmarshal(data, &pod); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		if !strings.HasPrefix(pod.Name, "vg-manager") && !strings.HasPrefix(pod.Name, "lvms-operator") {
			continue
		}
		if pod.Status.Phase == corev1.PodRunning {
			continue
		}
		result.Issues = append(result.Issues, Issue{
			Severity: SeverityCritical,
			Node:     pod.Spec.NodeName,
			Message:  fmt.Sprintf("pod %s/%s is %s, expected Running", pod.Namespace, pod.Name, pod.Status.Phase),
		})
	}
}

func (a *AnalyzeLVMS) checkPVCs(bundle *mustgather.Bundle, result *Result, detail *LVMSDetail) {
	paths, err := bundle.Glob("namespaces/*/core/persistentvolumeclaims.yaml")
	if err != nil {
		return
	}

	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			continue
		}
		var list corev1.PersistentVolumeClaimList
		if err := yaml.Unmarshal(data, &list); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		for _, pvc := range list.Items {
			if pvc.Spec.StorageClassName == nil || !strings.HasPrefix(*pvc.Spec.StorageClassName, "lvms-") {
				continue
			}
			if pvc.Status.Phase == corev1.ClaimBound {
				continue
			}
			detail.PendingPVCs = append(detail.PendingPVCs, pvc.Namespace+"/"+pvc.Name)
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("PVC %s/%s on storage class %s is %s, expected Bound", pvc.Namespace, pvc.Name, *pvc.Spec.StorageClassName, pvc.Status.Phase),
			})
		}
	}
}
