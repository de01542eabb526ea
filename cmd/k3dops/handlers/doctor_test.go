package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/platform/aws"
	"github.com/imamik/k3dops/internal/platform/terraform"
	"github.com/imamik/k3dops/internal/util/prerequisites"
)

// fakeDescriber is an instanceDescriber stub.
type fakeDescriber struct {
	info *aws.InstanceInfo
	err  error
}

func (f *fakeDescriber) DescribeInstance(context.Context, string) (*aws.InstanceInfo, error) {
	return f.info, f.err
}

func toolResults(found bool) *prerequisites.CheckResults {
	tools := prerequisites.DefaultTools()
	results := &prerequisites.CheckResults{}
	for _, tool := range tools {
		r := prerequisites.CheckResult{Tool: tool, Found: found}
		if found {
			r.Path = "/usr/local/bin/" + tool.Name
			r.Version = tool.Name + " v1.0.0"
		} else {
			results.Missing = append(results.Missing, tool)
		}
		results.Results = append(results.Results, r)
	}
	return results
}

func TestDoctor_AllToolsPresent_NoConfig(t *testing.T) {
	saveAndRestoreFactories(t)

	checkTools = func() *prerequisites.CheckResults { return toolResults(true) }
	findConfigFile = func() (string, error) {
		return "", errors.New("config file k3dops.yaml not found")
	}

	var buf bytes.Buffer
	err := Doctor(context.Background(), "", false, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "terraform")
	assert.Contains(t, out, "kubectl")
	assert.Contains(t, out, "All checks passed.")
}

func TestDoctor_MissingRequiredTool(t *testing.T) {
	saveAndRestoreFactories(t)

	checkTools = func() *prerequisites.CheckResults { return toolResults(false) }
	findConfigFile = func() (string, error) {
		return "", errors.New("config file k3dops.yaml not found")
	}

	var buf bytes.Buffer
	err := Doctor(context.Background(), "", false, &buf)
	require.NoError(t, err, "an unhealthy report is not an error")

	out := buf.String()
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "Problems found")
}

func TestDoctor_InstanceRunning_JSON(t *testing.T) {
	saveAndRestoreFactories(t)

	checkTools = func() *prerequisites.CheckResults { return toolResults(true) }
	loadConfigFile = func(_ string) (*config.Config, error) {
		return testConfig(), nil
	}
	newEngine = func(_ string) terraform.Engine {
		return &fakeEngine{outputs: terraform.Outputs{
			"instance_id": json.RawMessage(`"i-0abc123"`),
		}}
	}
	newEC2Client = func(_ context.Context, region string) (instanceDescriber, error) {
		assert.Equal(t, "eu-central-1", region)
		return &fakeDescriber{info: &aws.InstanceInfo{
			InstanceID:   "i-0abc123",
			State:        "running",
			PublicIP:     "54.12.34.56",
			InstanceType: "t3.large",
		}}, nil
	}

	var buf bytes.Buffer
	err := Doctor(context.Background(), "k3dops.yaml", true, &buf)
	require.NoError(t, err)

	var report DoctorReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.True(t, report.Healthy)
	require.NotNil(t, report.Instance)
	assert.Equal(t, "running", report.Instance.State)
	assert.Equal(t, "k3dops.yaml", report.ConfigFile)
}

func TestDoctor_InstanceStopped_Unhealthy(t *testing.T) {
	saveAndRestoreFactories(t)

	checkTools = func() *prerequisites.CheckResults { return toolResults(true) }
	loadConfigFile = func(_ string) (*config.Config, error) {
		return testConfig(), nil
	}
	newEngine = func(_ string) terraform.Engine {
		return &fakeEngine{outputs: terraform.Outputs{
			"instance_id": json.RawMessage(`"i-0abc123"`),
		}}
	}
	newEC2Client = func(_ context.Context, _ string) (instanceDescriber, error) {
		return &fakeDescriber{info: &aws.InstanceInfo{
			InstanceID: "i-0abc123",
			State:      "stopped",
		}}, nil
	}

	var buf bytes.Buffer
	err := Doctor(context.Background(), "k3dops.yaml", true, &buf)
	require.NoError(t, err)

	var report DoctorReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.False(t, report.Healthy)
}

func TestDoctor_ReportsBackupBucket(t *testing.T) {
	saveAndRestoreFactories(t)

	checkTools = func() *prerequisites.CheckResults { return toolResults(true) }
	loadConfigFile = func(_ string) (*config.Config, error) {
		return backupConfig(), nil
	}
	newEngine = func(_ string) terraform.Engine {
		return &fakeEngine{outputErr: errors.New("terraform not initialized")}
	}
	newS3Client = func(_ context.Context, region string) (objectStore, error) {
		assert.Equal(t, "eu-central-1", region)
		return &fakeObjectStore{exists: true}, nil
	}

	var buf bytes.Buffer
	err := Doctor(context.Background(), "k3dops.yaml", true, &buf)
	require.NoError(t, err)

	var report DoctorReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.NotNil(t, report.Backup)
	assert.Equal(t, "k3dops-backups", report.Backup.Bucket)
	assert.True(t, report.Backup.Exists)
	assert.True(t, report.Healthy)
}

func TestDoctor_MissingBackupBucketIsUnhealthy(t *testing.T) {
	saveAndRestoreFactories(t)

	checkTools = func() *prerequisites.CheckResults { return toolResults(true) }
	loadConfigFile = func(_ string) (*config.Config, error) {
		return backupConfig(), nil
	}
	newEngine = func(_ string) terraform.Engine {
		return &fakeEngine{outputErr: errors.New("terraform not initialized")}
	}
	newS3Client = func(_ context.Context, _ string) (objectStore, error) {
		return &fakeObjectStore{exists: false}, nil
	}

	var buf bytes.Buffer
	err := Doctor(context.Background(), "k3dops.yaml", true, &buf)
	require.NoError(t, err)

	var report DoctorReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.NotNil(t, report.Backup)
	assert.False(t, report.Backup.Exists)
	assert.False(t, report.Healthy)
}

func TestDoctor_NoTerraformState_SkipsInstance(t *testing.T) {
	saveAndRestoreFactories(t)

	checkTools = func() *prerequisites.CheckResults { return toolResults(true) }
	loadConfigFile = func(_ string) (*config.Config, error) {
		return testConfig(), nil
	}
	newEngine = func(_ string) terraform.Engine {
		return &fakeEngine{outputErr: errors.New("terraform not initialized")}
	}
	newEC2Client = func(_ context.Context, _ string) (instanceDescriber, error) {
		t.Fatal("must not query EC2 without an instance id")
		return nil, nil
	}

	var buf bytes.Buffer
	err := Doctor(context.Background(), "k3dops.yaml", true, &buf)
	require.NoError(t, err)

	var report DoctorReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Nil(t, report.Instance)
	assert.True(t, report.Healthy, "nothing provisioned yet is a healthy state")
}
