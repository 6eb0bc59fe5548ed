package cluster

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wardenhq/warden/pkg/types"
)

// FakeDeployment is an in-memory deployment for the fake gateway.
type FakeDeployment struct {
	Namespace string
	Name      string
	UID       string
	Replicas  int32
}

// FakeGateway is an in-memory Gateway for tests and dry wiring. Every
// mutation is recorded in Calls; error injection is per method name.
type FakeGateway struct {
	mu          sync.Mutex
	Pods        []types.Pod
	Deployments map[string]*FakeDeployment // keyed by ns/name
	Calls       []string
	Errs        map[string]error // method name -> injected error
}

// NewFakeGateway creates an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Deployments: make(map[string]*FakeDeployment),
		Errs:        make(map[string]error),
	}
}

func depKey(namespace, name string) string {
	return namespace + "/" + name
}

// AddDeployment registers a deployment.
func (f *FakeGateway) AddDeployment(namespace, name, uid string, replicas int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deployments[depKey(namespace, name)] = &FakeDeployment{
		Namespace: namespace, Name: name, UID: uid, Replicas: replicas,
	}
}

// SetPods replaces the pod list.
func (f *FakeGateway) SetPods(pods []types.Pod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pods = pods
}

// CallNames returns the recorded call log.
func (f *FakeGateway) CallNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

func (f *FakeGateway) record(call string) error {
	f.Calls = append(f.Calls, call)
	method := call
	if i := strings.IndexByte(call, '('); i >= 0 {
		method = call[:i]
	}
	return f.Errs[method]
}

func (f *FakeGateway) ListPods(ctx context.Context, namespace string) ([]types.Pod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("ListPods(%s)", namespace)); err != nil {
		return nil, err
	}
	var out []types.Pod
	for _, p := range f.Pods {
		if namespace == "" || p.Namespace == namespace {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeGateway) DeletePod(ctx context.Context, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("DeletePod(%s/%s)", namespace, name)); err != nil {
		return err
	}
	kept := f.Pods[:0]
	for _, p := range f.Pods {
		if !(p.Namespace == namespace && p.Name == name) {
			kept = append(kept, p)
		}
	}
	f.Pods = kept
	return nil
}

func (f *FakeGateway) GetDeploymentReplicas(ctx context.Context, namespace, name string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("GetDeploymentReplicas(%s/%s)", namespace, name)); err != nil {
		return 0, err
	}
	dep, ok := f.Deployments[depKey(namespace, name)]
	if !ok {
		return 0, fmt.Errorf("deployment %s/%s not found", namespace, name)
	}
	return dep.Replicas, nil
}

func (f *FakeGateway) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("ScaleDeployment(%s/%s,%d)", namespace, name, replicas)); err != nil {
		return err
	}
	dep, ok := f.Deployments[depKey(namespace, name)]
	if !ok {
		return fmt.Errorf("deployment %s/%s not found", namespace, name)
	}
	dep.Replicas = replicas
	return nil
}

func (f *FakeGateway) PatchDeploymentResources(ctx context.Context, namespace, name string, patch ResourcePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("PatchDeploymentResources(%s/%s)", namespace, name)); err != nil {
		return err
	}
	if _, ok := f.Deployments[depKey(namespace, name)]; !ok {
		return fmt.Errorf("deployment %s/%s not found", namespace, name)
	}
	return nil
}

func (f *FakeGateway) DeploymentExists(ctx context.Context, namespace, name, expectedUID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("DeploymentExists(%s/%s)", namespace, name)); err != nil {
		return false, err
	}
	dep, ok := f.Deployments[depKey(namespace, name)]
	if !ok {
		return false, nil
	}
	if expectedUID != "" && dep.UID != expectedUID {
		return false, nil
	}
	return true, nil
}

func (f *FakeGateway) RestartDeployment(ctx context.Context, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("RestartDeployment(%s/%s)", namespace, name)); err != nil {
		return err
	}
	if _, ok := f.Deployments[depKey(namespace, name)]; !ok {
		return fmt.Errorf("deployment %s/%s not found", namespace, name)
	}
	return nil
}
