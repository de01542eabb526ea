// Package provisioning orchestrates the end-to-end pipeline: probe the
// environment, provision the EC2 infrastructure, bootstrap the host, build
// the k3d cluster, apply the manifest set, and install addons.
//
// Each stage is a Phase. Phases run strictly sequentially: every stage
// consumes results of earlier ones through the shared State, and the first
// failure aborts the run. Phases are idempotent, so a failed run is resumed
// by running the pipeline again.
package provisioning
