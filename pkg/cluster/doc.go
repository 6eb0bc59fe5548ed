/*
Package cluster defines the Gateway capability interface: the complete
surface the remediation engine uses to observe and mutate the orchestrated
cluster. Reads resolve each pod's owning controller up to a Deployment
identity; writes cover pod deletion, deployment scaling, resource patches,
and rolling restarts.

Two implementations ship: KubectlGateway, a thin adapter that shells out to
kubectl and parses its JSON output, and FakeGateway, an in-memory double with
call recording and error injection for tests.
*/
package cluster
