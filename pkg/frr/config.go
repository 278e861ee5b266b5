package frr

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/openshift-netlab/netdiag/pkg/mustgather"
)

const (
	frrConfigurationGlob = "namespaces/*/frrk8s.metallb.io/frrconfigurations/*.yaml"
	frrNodeStateGlob     = "cluster-scoped-resources/frrk8s.metallb.io/frrnodestates/*.yaml"
)

// Subset of the frr-k8s FRRConfiguration schema we read back out of a
// must-gather.
type frrConfigurationDoc struct {
	Metadata metav1.ObjectMeta `json:"metadata"`
	Spec     struct {
		BGP struct {
			Routers []struct {
				ASN       uint32 `json:"asn"`
				VRF       string `json:"vrf"`
				Neighbors []struct {
					ASN        uint32 `json:"asn"`
					Address    string `json:"address"`
					Port       uint16 `json:"port"`
					BFDProfile string `json:"bfdProfile"`
				} `json:"neighbors"`
			} `json:"routers"`
			BFDProfiles []struct {
				Name string `json:"name"`
			} `json:"bfdProfiles"`
		} `json:"bgp"`
		Raw struct {
			Config string `json:"rawConfig"`
		} `json:"raw"`
		NodeSelector metav1.LabelSelector `json:"nodeSelector"`
	} `json:"spec"`
}

type frrNodeStateDoc struct {
	Metadata metav1.ObjectMeta `json:"metadata"`
	Status   struct {
		RunningConfig        string `json:"runningConfig"`
		LastReloadResult     string `json:"lastReloadResult"`
		LastConversionResult string `json:"lastConversionResult"`
	} `json:"status"`
}

// LoadConfigRecords reads every FRRConfiguration in the bundle. Files that
// fail to decode are logged and skipped.
func LoadConfigRecords(bundle *mustgather.Bundle) ([]ConfigRecord, error) {
	paths, err := bundle.Glob(frrConfigurationGlob)
	if err != nil {
		return nil, err
	}

	var records []ConfigRecord
	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		var doc frrConfigurationDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		records = append(records, configRecordFromDoc(doc))
	}
	klog.V(1).Infof("parsed %d FRRConfigurations", len(records))
	return records, nil
}

func configRecordFromDoc(doc frrConfigurationDoc) ConfigRecord {
	record := ConfigRecord{
		Name:         doc.Metadata.Name,
		Namespace:    doc.Metadata.Namespace,
		HasRawConfig: doc.Spec.Raw.Config != "",
		NodeSelector: doc.Spec.NodeSelector,
	}
	for _, router := range doc.Spec.BGP.Routers {
		for _, n := range router.Neighbors {
			record.Neighbors = append(record.Neighbors, ConfigNeighbor{
				Address:    n.Address,
				ASN:        n.ASN,
				Port:       n.Port,
				BFDProfile: n.BFDProfile,
			})
		}
	}
	for _, profile := range doc.Spec.BGP.BFDProfiles {
		record.BFDProfiles = append(record.BFDProfiles, profile.Name)
	}
	return record
}

// LoadNodeStates reads every FRRNodeState in the bundle, keyed by node name.
func LoadNodeStates(bundle *mustgather.Bundle) (map[string]NodeState, error) {
	paths, err := bundle.Glob(frrNodeStateGlob)
	if err != nil {
		return nil, err
	}

	states := map[string]NodeState{}
	for _, rel := range paths {
		data, err := bundle.ReadFile(rel)
		if err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		var doc frrNodeStateDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			klog.V(1).Infof("skipping %s: %v", rel, err)
			continue
		}
		if doc.Metadata.Name == "" {
			continue
		}
		states[doc.Metadata.Name] = NodeState{
			Node:             doc.Metadata.Name,
			RunningConfig:    doc.Status.RunningConfig,
			LastReloadStatus: doc.Status.LastReloadResult,
		}
	}
	klog.V(1).Infof("parsed %d FRRNodeStates", len(states))
	return states, nil
}
