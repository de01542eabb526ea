// Package infra provisions the AWS infrastructure for the cluster host by
// driving a Terraform working directory through init/plan/apply/destroy.
package infra

// State holds the typed outputs of a successful infrastructure apply.
// It is produced once by Apply and never mutated afterwards; teardown is the
// only operation that invalidates it.
type State struct {
	InstanceID      string `json:"instanceId"`
	PublicIP        string `json:"publicIp"`
	PrivateIP       string `json:"privateIp"`
	SecurityGroupID string `json:"securityGroupId"`
	VPCID           string `json:"vpcId"`
}
