package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/openshift-netlab/netdiag/pkg/mustgather"
)

const (
	networksAnnotation      = "k8s.v1.cni.cncf.io/networks"
	networkStatusAnnotation = "k8s.v1.cni.cncf.io/network-status"
)

type nadDoc struct {
	Metadata metav1.ObjectMeta `json:"metadata"`
	Spec     struct {
		Config string `json:"config"`
	} `json:"spec"`
}

// MultusDetail lists the attachment definitions found and the pods using
// them.
type MultusDetail struct {
	Attachments []string `json:"attachments,omitempty"`
	PodsUsing   []string `json:"podsUsing,omitempty"`
}

// AnalyzeMultus validates NetworkAttachmentDefinitions and the pods that
// reference them through the Multus annotations.
type AnalyzeMultus struct{}

func (a *AnalyzeMultus) Title() string {
	return "Multus secondary networks"
}

func (a *AnalyzeMultus) Analyze(bundle *mustgather.Bundle) (*Result, error) {
	result := &Result{Title: a.Title()}
	detail := &MultusDetail{}
	result.Detail = detail

	nads := a.loadAttachments(bundle, result, detail)
	a.checkPods(bundle, nads, result, detail)

	return result, nil
}

// loadAttachments returns the set of known NADs keyed by namespace/name.
func (a *AnalyzeMultus) loadAttachments(bundle *mustgather.Bundle, result *Result, detail *MultusDetail) map[string]bool {
	nads := map[string]bool{}

	paths, err := bundle.Glob("namespaces/*/k8s.cni.cncf.io/network-attachment-definitions/*.yaml")
	if err != nil {
		return nads
	}

	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			continue
		}
		var doc nadDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		key := doc.Metadata.Namespace + "/" + doc.Metadata.Name
		nads[key] = true
		detail.Attachments = append(detail.Attachments, key)

		if doc.Spec.Config == "" {
			continue
		}
		var cniConfig map[string]interface{}
		if err := json.Unmarshal([]byte(doc.Spec.Config), &cniConfig); err != nil {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("NetworkAttachmentDefinition %s has invalid CNI config JSON: %v", key, err),
			})
		}
	}
	return nads
}

func (a *AnalyzeMultus) checkPods(bundle *mustgather.Bundle, nads map[string]bool, result *Result, detail *MultusDetail) {
	paths, err := bundle.Glob("namespaces/*/pods/*/*.yaml")
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
			continue
		}
		networks, ok := pod.Annotations[networksAnnotation]
		if !ok || networks == "" {
			continue
		}
		detail.PodsUsing = append(detail.PodsUsing, pod.Namespace+"/"+pod.Name)

		for _, ref := range parseNetworkRefs(networks, pod.Namespace) {
			if nads[ref] {
				continue
			}
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("pod %s/%s references network %s but no such NetworkAttachmentDefinition was found", pod.Namespace, pod.Name, ref),
			})
		}

		if _, ok := pod.Annotations[networkStatusAnnotation]; !ok {
			result.Issues = append(result.Issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("pod %s/%s requests secondary networks but has no network-status annotation; the attachment may not have happened", pod.Namespace, pod.Name),
			})
		}
	}
}

// parseNetworkRefs handles both annotation forms: the comma separated short
// form ("net1, other-ns/net2@eth1") and the JSON list form. Results are
// namespace/name keys.
func parseNetworkRefs(annotation, podNamespace string) []string {
	annotation = strings.TrimSpace(annotation)
	var refs []string

	if strings.HasPrefix(annotation, "[") {
		var entries []struct {
			Name      string `json:"name"`
			Namespace string `json:"namespace"`
		}
		if err := json.Unmarshal([]byte(annotation), &entries); err != nil {
			return nil
		}
		for _, e := range entries {
			ns := e.Namespace
			if ns == "" {
				ns = podNamespace
			}
			refs = append(refs, ns+"/"+e.Name)
		}
		return refs
	}

	for _, item := range strings.Split(annotation, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		// Strip the optional interface suffix.
		if at := strings.Index(item, "@"); at >= 0 {
			item = item[:at]
		}
		if strings.Contains(item, "/") {
			refs = append(refs, item)
		} else {
			refs = append(refs, podNamespace+"/"+item)
		}
	}
	return refs
}
