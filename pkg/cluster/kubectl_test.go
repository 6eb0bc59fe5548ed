package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wardenhq/warden/pkg/types"
)

func TestPodReady(t *testing.T) {
	tests := []struct {
		name       string
		conditions []podCondition
		expected   bool
	}{
		{
			name:       "ready true",
			conditions: []podCondition{{Type: "Ready", Status: "True"}},
			expected:   true,
		},
		{
			name:       "ready false",
			conditions: []podCondition{{Type: "Ready", Status: "False"}},
			expected:   false,
		},
		{
			name: "ready among others",
			conditions: []podCondition{
				{Type: "PodScheduled", Status: "True"},
				{Type: "Ready", Status: "True"},
			},
			expected: true,
		},
		{
			name:       "no ready condition",
			conditions: []podCondition{{Type: "PodScheduled", Status: "True"}},
			expected:   false,
		},
		{
			name:       "empty",
			conditions: nil,
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, podReady(tt.conditions))
		})
	}
}

func TestControllerOwner(t *testing.T) {
	rs := ownerReference{Kind: "ReplicaSet", Name: "api-5d9f", UID: "rs-1"}
	sts := ownerReference{Kind: "StatefulSet", Name: "db", UID: "sts-1"}
	other := ownerReference{Kind: "Custom", Name: "thing", UID: "c-1"}

	assert.Equal(t, &rs, controllerOwner([]ownerReference{rs}))
	assert.Equal(t, "StatefulSet", controllerOwner([]ownerReference{other, sts}).Kind)
	// Unknown kinds still count as an owner.
	assert.Equal(t, "Custom", controllerOwner([]ownerReference{other}).Kind)
	assert.Nil(t, controllerOwner(nil))
}

func TestFakeGatewayScaleAndDelete(t *testing.T) {
	fake := NewFakeGateway()
	fake.AddDeployment("default", "api", "uid-1", 3)
	fake.SetPods([]types.Pod{
		{Namespace: "default", Name: "api-1", UID: "p1"},
		{Namespace: "other", Name: "web-1", UID: "p2"},
	})

	pods, err := fake.ListPods(context.Background(), "default")
	assert.NoError(t, err)
	assert.Len(t, pods, 1)

	assert.NoError(t, fake.ScaleDeployment(context.Background(), "default", "api", 0))
	replicas, err := fake.GetDeploymentReplicas(context.Background(), "default", "api")
	assert.NoError(t, err)
	assert.Equal(t, int32(0), replicas)

	assert.NoError(t, fake.DeletePod(context.Background(), "default", "api-1"))
	pods, err = fake.ListPods(context.Background(), "")
	assert.NoError(t, err)
	assert.Len(t, pods, 1)

	exists, err := fake.DeploymentExists(context.Background(), "default", "api", "uid-other")
	assert.NoError(t, err)
	assert.False(t, exists)
	exists, err = fake.DeploymentExists(context.Background(), "default", "api", "uid-1")
	assert.NoError(t, err)
	assert.True(t, exists)
}
