package analyzer

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/openshift-netlab/netdiag/pkg/mustgather"
)

type gatewayDoc struct {
	Metadata metav1.ObjectMeta `json:"metadata"`
	Spec     struct {
		GatewayClassName string `json:"gatewayClassName"`
		Listeners        []struct {
			Name     string `json:"name"`
			Port     int32  `json:"port"`
			Protocol string `json:"protocol"`
		} `json:"listeners"`
	} `json:"spec"`
}

type httpRouteDoc struct {
	Metadata metav1.ObjectMeta `json:"metadata"`
	Spec     struct {
		ParentRefs []struct {
			Name      string `json:"name"`
			Namespace string `json:"namespace"`
		} `json:"parentRefs"`
		Rules []struct {
			BackendRefs []struct {
				Name      string `json:"name"`
				Namespace string `json:"namespace"`
				Port      int32  `json:"port"`
			} `json:"backendRefs"`
		} `json:"rules"`
	} `json:"spec"`
}

// TopologyNode is one vertex of the gateway topology graph.
type TopologyNode struct {
	Kind string `json:"kind"`
	Name string `json:"name"` // namespace/name
}

// TopologyEdge is a directed reference between two vertices.
type TopologyEdge struct {
	From  TopologyNode `json:"from"`
	To    TopologyNode `json:"to"`
	Label string       `json:"label,omitempty"`
}

// GatewayTopology is the extracted Gateway -> HTTPRoute -> Service graph,
// rendered as a mermaid diagram by the HTML reporter.
type GatewayTopology struct {
	Nodes []TopologyNode `json:"nodes"`
	Edges []TopologyEdge `json:"edges"`
}

// AnalyzeGateway extracts the Gateway API topology from a must-gather and
// flags dangling references.
type AnalyzeGateway struct{}

func (a *AnalyzeGateway) Title() string {
	return "Gateway API topology"
}

func (a *AnalyzeGateway) Analyze(bundle *mustgather.Bundle) (*Result, error) {
	result := &Result{Title: a.Title()}
	topology := &GatewayTopology{}
	result.Detail = topology

	gateways := a.loadGateways(bundle, topology)
	services := a.loadServices(bundle)
	a.loadRoutes(bundle, gateways, services, topology, result)

	return result, nil
}

func (a *AnalyzeGateway) loadGateways(bundle *mustgather.Bundle, topology *GatewayTopology) map[string]bool {
	gateways := map[string]bool{}

	paths, err := bundle.Glob("namespaces/*/gateway.networking.k8s.io/gateways/*.yaml")
	if err != nil {
		return gateways
	}
	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			continue
		}
		var doc gatewayDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		key := doc.Metadata.Namespace + "/" + doc.Metadata.Name
		gateways[key] = true
		topology.Nodes = append(topology.Nodes, TopologyNode{Kind: "Gateway", Name: key})
	}
	return gateways
}

func (a *AnalyzeGateway) loadServices(bundle *mustgather.Bundle) map[string]bool {
	services := map[string]bool{}

	paths, err := bundle.Glob("namespaces/*/core/services.yaml")
	if err != nil {
		return services
	}
	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			continue
		}
		var list corev1.ServiceList
		if err := yaml.Unmarshal(data, &list); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		for _, svc := range list.Items {
			services[svc.Namespace+"/"+svc.Name] = true
		}
	}
	return services
}

func (a *AnalyzeGateway) loadRoutes(bundle *mustgather.Bundle, gateways, services map[string]bool, topology *GatewayTopology, result *Result) {
	paths, err := bundle.Glob("namespaces/*/gateway.networking.k8s.io/httproutes/*.yaml")
	if err != nil {
		return
	}

	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			continue
		}
		var doc httpRouteDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		routeKey := doc.Metadata.Namespace + "/" + doc.Metadata.Name
		routeNode := TopologyNode{Kind: "HTTPRoute", Name: routeKey}
		topology.Nodes = append(topology.Nodes, routeNode)

		for _, parent := range doc.Spec.ParentRefs {
			ns := parent.Namespace
			if ns == "" {
				ns = doc.Metadata.Namespace
			}
			gatewayKey := ns + "/" + parent.Name
			topology.Edges = append(topology.Edges, TopologyEdge{
				From: TopologyNode{Kind: "Gateway", Name: gatewayKey},
				To:   routeNode,
			})
			if !gateways[gatewayKey] {
				result.Issues = append(result.Issues, Issue{
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("HTTPRoute %s references Gateway %s which was not found", routeKey, gatewayKey),
				})
			}
		}

		for _, rule := range doc.Spec.Rules {
			for _, backend := range rule.BackendRefs {
				ns := backend.Namespace
				if ns == "" {
					ns = doc.Metadata.Namespace
				}
				serviceKey := ns + "/" + backend.Name
				topology.Edges = append(topology.Edges, TopologyEdge{
					From:  routeNode,
					To:    TopologyNode{Kind: "Service", Name: serviceKey},
					Label: fmt.Sprintf("port %d", backend.Port),
				})
				if !services[serviceKey] {
					result.Issues = append(result.Issues, Issue{
						Severity: SeverityCritical,
						Message:  fmt.Sprintf("HTTPRoute %s points at Service %s which was not found", routeKey, serviceKey),
					})
				}
			}
		}
	}
}
