package cluster

import (
	"context"

	"github.com/wardenhq/warden/pkg/types"
)

// ResourcePatch carries the container resource values for a deployment
// patch. Empty fields are left untouched.
type ResourcePatch struct {
	CPURequest string
	CPULimit   string
	MemRequest string
	MemLimit   string
}

// Gateway is the capability interface the engine uses to observe and mutate
// the cluster. Implementations are interchangeable; the healer and auto-ops
// never see anything below this surface.
type Gateway interface {
	// ListPods returns pods with their owning controller resolved to a
	// Deployment identity where possible. Empty namespace means all
	// namespaces.
	ListPods(ctx context.Context, namespace string) ([]types.Pod, error)

	// DeletePod deletes a single pod.
	DeletePod(ctx context.Context, namespace, name string) error

	// GetDeploymentReplicas returns the deployment's current replica count.
	GetDeploymentReplicas(ctx context.Context, namespace, name string) (int32, error)

	// ScaleDeployment sets the deployment's replica count.
	ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error

	// PatchDeploymentResources updates container resource requests/limits.
	PatchDeploymentResources(ctx context.Context, namespace, name string, patch ResourcePatch) error

	// DeploymentExists reports whether the deployment exists. When
	// expectedUID is non-empty, a deployment with the same name but a
	// different identity counts as not existing.
	DeploymentExists(ctx context.Context, namespace, name, expectedUID string) (bool, error)

	// RestartDeployment triggers a rolling restart.
	RestartDeployment(ctx context.Context, namespace, name string) error
}
