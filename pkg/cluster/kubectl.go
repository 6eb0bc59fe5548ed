package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/types"
)

// KubectlGateway implements Gateway by shelling out to kubectl. It is a thin
// adapter: all decisions live above the Gateway interface.
type KubectlGateway struct {
	binary     string
	kubeconfig string
}

// NewKubectlGateway creates a gateway using the given kubectl binary and
// optional kubeconfig path.
func NewKubectlGateway(binary, kubeconfig string) *KubectlGateway {
	if binary == "" {
		binary = "kubectl"
	}
	return &KubectlGateway{binary: binary, kubeconfig: kubeconfig}
}

func (g *KubectlGateway) run(ctx context.Context, args ...string) ([]byte, error) {
	if g.kubeconfig != "" {
		args = append([]string{"--kubeconfig", g.kubeconfig}, args...)
	}
	cmd := exec.CommandContext(ctx, g.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("kubectl %s: %s", args[0], msg)
	}
	return stdout.Bytes(), nil
}

// Wire shapes for the slices of kubectl JSON we consume.

type podList struct {
	Items []podObject `json:"items"`
}

type podObject struct {
	Metadata objectMeta `json:"metadata"`
	Status   podStatus  `json:"status"`
}

type objectMeta struct {
	Name            string           `json:"name"`
	Namespace       string           `json:"namespace"`
	UID             string           `json:"uid"`
	OwnerReferences []ownerReference `json:"ownerReferences"`
}

type ownerReference struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	UID  string `json:"uid"`
}

type podStatus struct {
	Phase             string            `json:"phase"`
	Conditions        []podCondition    `json:"conditions"`
	ContainerStatuses []containerStatus `json:"containerStatuses"`
}

type podCondition struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type containerStatus struct {
	State struct {
		Waiting *struct {
			Reason string `json:"reason"`
		} `json:"waiting"`
	} `json:"state"`
	LastState struct {
		Terminated *struct {
			Reason string `json:"reason"`
		} `json:"terminated"`
	} `json:"lastState"`
}

type deploymentObject struct {
	Metadata objectMeta `json:"metadata"`
	Spec     struct {
		Replicas *int32 `json:"replicas"`
	} `json:"spec"`
}

// ListPods lists pods and resolves ReplicaSet owners to Deployment
// identities. ReplicaSet lookups are cached for the duration of the call.
func (g *KubectlGateway) ListPods(ctx context.Context, namespace string) ([]types.Pod, error) {
	args := []string{"get", "pods", "-o", "json"}
	if namespace == "" {
		args = append(args, "--all-namespaces")
	} else {
		args = append(args, "-n", namespace)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var list podList
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("parse pod list: %w", err)
	}

	rsOwners := make(map[string]*ownerReference)
	pods := make([]types.Pod, 0, len(list.Items))
	for _, item := range list.Items {
		pod := types.Pod{
			Namespace: item.Metadata.Namespace,
			Name:      item.Metadata.Name,
			UID:       item.Metadata.UID,
			Phase:     item.Status.Phase,
			Ready:     podReady(item.Status.Conditions),
		}
		for _, cs := range item.Status.ContainerStatuses {
			if cs.State.Waiting != nil && cs.State.Waiting.Reason != "" {
				pod.WaitingReasons = append(pod.WaitingReasons, cs.State.Waiting.Reason)
			}
		}
		if owner := controllerOwner(item.Metadata.OwnerReferences); owner != nil {
			pod.ControllerKind = types.ControllerKind(owner.Kind)
			pod.ControllerName = owner.Name
			if owner.Kind == string(types.ControllerReplicaSet) {
				if dep := g.resolveDeployment(ctx, item.Metadata.Namespace, owner.Name, rsOwners); dep != nil {
					pod.DeploymentName = dep.Name
					pod.DeploymentUID = dep.UID
				}
			}
		}
		pods = append(pods, pod)
	}
	return pods, nil
}

// resolveDeployment finds the Deployment owning a ReplicaSet, caching
// lookups per ListPods call. Resolution failure degrades to a nil owner: the
// pod is then keyed individually rather than failing the scan.
func (g *KubectlGateway) resolveDeployment(ctx context.Context, namespace, rsName string, cache map[string]*ownerReference) *ownerReference {
	cacheKey := namespace + "/" + rsName
	if owner, ok := cache[cacheKey]; ok {
		return owner
	}
	out, err := g.run(ctx, "get", "replicaset", rsName, "-n", namespace, "-o", "json")
	if err != nil {
		logger := log.WithComponent("cluster")
		logger.Warn().Err(err).Str("replicaset", cacheKey).Msg("replicaset lookup failed")
		cache[cacheKey] = nil
		return nil
	}
	var rs struct {
		Metadata objectMeta `json:"metadata"`
	}
	if err := json.Unmarshal(out, &rs); err != nil {
		cache[cacheKey] = nil
		return nil
	}
	for i := range rs.Metadata.OwnerReferences {
		if rs.Metadata.OwnerReferences[i].Kind == "Deployment" {
			cache[cacheKey] = &rs.Metadata.OwnerReferences[i]
			return cache[cacheKey]
		}
	}
	cache[cacheKey] = nil
	return nil
}

func (g *KubectlGateway) DeletePod(ctx context.Context, namespace, name string) error {
	_, err := g.run(ctx, "delete", "pod", name, "-n", namespace, "--wait=false")
	return err
}

func (g *KubectlGateway) getDeployment(ctx context.Context, namespace, name string) (*deploymentObject, error) {
	out, err := g.run(ctx, "get", "deployment", name, "-n", namespace, "-o", "json")
	if err != nil {
		return nil, err
	}
	var dep deploymentObject
	if err := json.Unmarshal(out, &dep); err != nil {
		return nil, fmt.Errorf("parse deployment: %w", err)
	}
	return &dep, nil
}

func (g *KubectlGateway) GetDeploymentReplicas(ctx context.Context, namespace, name string) (int32, error) {
	dep, err := g.getDeployment(ctx, namespace, name)
	if err != nil {
		return 0, err
	}
	if dep.Spec.Replicas == nil {
		return 1, nil
	}
	return *dep.Spec.Replicas, nil
}

func (g *KubectlGateway) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error {
	_, err := g.run(ctx, "scale", "deployment", name, "-n", namespace, fmt.Sprintf("--replicas=%d", replicas))
	return err
}

func (g *KubectlGateway) PatchDeploymentResources(ctx context.Context, namespace, name string, patch ResourcePatch) error {
	requests := map[string]string{}
	limits := map[string]string{}
	if patch.CPURequest != "" {
		requests["cpu"] = patch.CPURequest
	}
	if patch.MemRequest != "" {
		requests["memory"] = patch.MemRequest
	}
	if patch.CPULimit != "" {
		limits["cpu"] = patch.CPULimit
	}
	if patch.MemLimit != "" {
		limits["memory"] = patch.MemLimit
	}
	if len(requests) == 0 && len(limits) == 0 {
		return nil
	}

	resources := map[string]any{}
	if len(requests) > 0 {
		resources["requests"] = requests
	}
	if len(limits) > 0 {
		resources["limits"] = limits
	}
	// Patches the first container; single-container deployments are the
	// remediation target this engine supports.
	body, err := json.Marshal(map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []map[string]any{
						{"name": name, "resources": resources},
					},
				},
			},
		},
	})
	if err != nil {
		return err
	}
	_, err = g.run(ctx, "patch", "deployment", name, "-n", namespace, "--type", "strategic", "-p", string(body))
	return err
}

func (g *KubectlGateway) DeploymentExists(ctx context.Context, namespace, name, expectedUID string) (bool, error) {
	dep, err := g.getDeployment(ctx, namespace, name)
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	if expectedUID != "" && dep.Metadata.UID != expectedUID {
		return false, nil
	}
	return true, nil
}

func (g *KubectlGateway) RestartDeployment(ctx context.Context, namespace, name string) error {
	_, err := g.run(ctx, "rollout", "restart", "deployment", name, "-n", namespace)
	return err
}

// podReady reports whether the Ready condition is True.
func podReady(conditions []podCondition) bool {
	for _, c := range conditions {
		if c.Type == "Ready" {
			return c.Status == "True"
		}
	}
	return false
}

// controllerOwner returns the first controller-ish owner reference.
func controllerOwner(owners []ownerReference) *ownerReference {
	for i := range owners {
		switch owners[i].Kind {
		case "ReplicaSet", "StatefulSet", "DaemonSet", "Job":
			return &owners[i]
		}
	}
	if len(owners) > 0 {
		return &owners[0]
	}
	return nil
}
