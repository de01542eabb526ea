// Package wizard implements the interactive configuration flow behind
// `k3dops init`. It asks a small number of grouped questions and produces
// a validated Config ready to be written to k3dops.yaml.
package wizard
