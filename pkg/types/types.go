package types

import (
	"fmt"
	"time"
)

// HealKey identifies the unit of remediation state. For pods owned by a
// Deployment (via a ReplicaSet) the key is the Deployment's identity; bare
// pods and pods under other controllers are keyed individually.
type HealKey struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	UID       string `json:"uid"` // stable identity, not the mutable display name
}

// String renders the key in the form used for storage and cooldown keys.
func (k HealKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Namespace, k.Name, k.UID)
}

// ControllerKind is the kind of controller owning a pod.
type ControllerKind string

const (
	ControllerNone        ControllerKind = ""
	ControllerReplicaSet  ControllerKind = "ReplicaSet"
	ControllerStatefulSet ControllerKind = "StatefulSet"
	ControllerDaemonSet   ControllerKind = "DaemonSet"
	ControllerJob         ControllerKind = "Job"
	ControllerUnknown     ControllerKind = "Unknown"
)

// Pod is the gateway's view of a pod: just enough to classify failures and
// resolve the owning Deployment.
type Pod struct {
	Namespace      string         `json:"namespace"`
	Name           string         `json:"name"`
	UID            string         `json:"uid"`
	Phase          string         `json:"phase"`
	Ready          bool           `json:"ready"`
	WaitingReasons []string       `json:"waitingReasons,omitempty"`
	ControllerKind ControllerKind `json:"controllerKind,omitempty"`
	ControllerName string         `json:"controllerName,omitempty"`
	DeploymentName string         `json:"deploymentName,omitempty"`
	DeploymentUID  string         `json:"deploymentUID,omitempty"`
}

// HasController reports whether the pod is managed by any controller.
func (p *Pod) HasController() bool {
	return p.ControllerKind != ControllerNone
}

// HealKey resolves the remediation key for this pod: the owning Deployment if
// one can be resolved, otherwise the pod itself.
func (p *Pod) HealKey() HealKey {
	if p.ControllerKind == ControllerReplicaSet && p.DeploymentName != "" && p.DeploymentUID != "" {
		return HealKey{Namespace: p.Namespace, Name: p.DeploymentName, UID: p.DeploymentUID}
	}
	return HealKey{Namespace: p.Namespace, Name: p.Name, UID: p.UID}
}

// Failure reasons recognized by the classifier.
const (
	ReasonCrashLoop        = "CrashLoopBackOff"
	ReasonImagePullBackOff = "ImagePullBackOff"
	ReasonErrImagePull     = "ErrImagePull"
	ReasonCreateContainer  = "CreateContainerError"
	ReasonOOMKilled        = "OOMKilled"
	ReasonNotReady         = "NotReady"
)

// DeploymentHealth is the durable per-key health record.
//
// IsFailing means the circuit is open: it is set true only after a
// scale-to-zero during circuit-break has been confirmed to succeed, never as
// a side effect of counting failures.
type DeploymentHealth struct {
	Key          HealKey   `json:"key"`
	FailCount    int       `json:"failCount"`
	IsFailing    bool      `json:"isFailing"`
	Reason       string    `json:"reason,omitempty"`
	LastReplicas int32     `json:"lastReplicas"` // captured just before scale-to-zero
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PendingVerification is an open remediation window: after LastAction was
// applied, the key is re-checked once PendingUntil has elapsed. At most one
// row exists per key.
type PendingVerification struct {
	Key          HealKey   `json:"key"`
	PendingUntil time.Time `json:"pendingUntil"`
	LastAction   string    `json:"lastAction"`
	LastPod      string    `json:"lastPod"`
	LastPodUID   string    `json:"lastPodUID"`
	LastReason   string    `json:"lastReason"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HealEvent is an audit row recorded on every detection, action, and
// verification outcome. FailCount here is advisory; DeploymentHealth is the
// source of truth.
type HealEvent struct {
	ID        string    `json:"id"`
	Key       HealKey   `json:"key"`
	Reason    string    `json:"reason"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	FailCount int       `json:"failCount"`
	Timestamp time.Time `json:"timestamp"`
}

// Action kinds recorded in heal events and the action audit log.
const (
	ActionDeletePod      = "delete_pod"
	ActionScaleZero      = "scale_zero"
	ActionScale          = "scale"
	ActionPatchResources = "patch_resources"
	ActionRestart        = "restart"
	ActionReset          = "reset"
	ActionNone           = "none"
)

// Results recorded in heal events.
const (
	ResultPending        = "pending"
	ResultRecovered      = "recovered"
	ResultVerifyFailed   = "verify_failed"
	ResultCircuitOpened  = "circuit_opened"
	ResultSkipBarePod    = "skip_bare_pod"
	ResultSkipController = "skip_controller"
	ResultSkipCooldown   = "skip_cooldown"
	ResultSkipCircuit    = "skip_circuit"
	ResultSkipPending    = "skip_pending"
	ResultDryRun         = "dry_run"
	ResultFailed         = "failed"
	ResultPurged         = "purged"
	ResultDone           = "done"
)

// ActionAudit is an append-only record of one attempted mutation, dry-run or
// real. Immutable once written.
type ActionAudit struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Target    string            `json:"target"`
	Params    map[string]string `json:"params,omitempty"`
	DryRun    bool              `json:"dryRun"`
	Result    string            `json:"result"`
	Detail    string            `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ScanResult summarizes one healer pass.
type ScanResult struct {
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Checked    int          `json:"checked"`
	Attempted  int          `json:"attempted"`
	Healed     int          `json:"healed"`
	Skipped    int          `json:"skipped"`
	Verified   int          `json:"verified"`
	DryRun     bool         `json:"dryRun"`
	Details    []ScanDetail `json:"details,omitempty"`
}

// ScanDetail is one per-pod or per-key observation from a pass.
type ScanDetail struct {
	Key    HealKey `json:"key"`
	Pod    string  `json:"pod,omitempty"`
	Reason string  `json:"reason,omitempty"`
	Action string  `json:"action"`
	Result string  `json:"result"`
	Detail string  `json:"detail,omitempty"`
}

// Severity grades a suggestion.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Suggestion action kinds.
const (
	SuggestNone            = "none"
	SuggestScaleDeployment = "scale_deployment"
	SuggestPatchResources  = "patch_resources"
	SuggestInvestigateLogs = "investigate_logs"
	SuggestAddNode         = "add_node"
)

// SuggestionAction is the actionable hint attached to a suggestion.
type SuggestionAction struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Suggestion is one fired diagnosis rule: severity, evidence, and an
// actionable hint. Evidence carries the raw measured numbers so the verdict
// is independently auditable.
type Suggestion struct {
	Rule      string            `json:"rule"`
	Severity  Severity          `json:"severity"`
	Title     string            `json:"title"`
	Evidence  map[string]string `json:"evidence,omitempty"`
	Rationale string            `json:"rationale"`
	Action    SuggestionAction  `json:"action"`
}

// SuggestionsResp is the ordered set of suggestions for one target and key.
type SuggestionsResp struct {
	Target      string       `json:"target"`
	Key         string       `json:"key"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Diagnosis targets.
const (
	TargetNodeCPU    = "node_cpu"
	TargetNodeMemory = "node_memory"
	TargetPodCPU     = "pod_cpu"
)

// Lease is the healer ownership record: one active healer at a time, stale
// leases reclaimable by anyone, refreshable by the owner.
type Lease struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
	Acquired  time.Time `json:"acquired"`
}

// Expired reports whether the lease may be reclaimed.
func (l *Lease) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
