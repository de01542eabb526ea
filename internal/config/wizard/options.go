package wizard

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/imamik/k3dops/internal/config"
)

// Regions offered by the wizard. Any valid region can still be set by
// editing the generated file.
var regionOptions = []huh.Option[string]{
	huh.NewOption("us-east-1 (N. Virginia)", "us-east-1"),
	huh.NewOption("us-west-2 (Oregon)", "us-west-2"),
	huh.NewOption("eu-central-1 (Frankfurt)", "eu-central-1"),
	huh.NewOption("eu-west-1 (Ireland)", "eu-west-1"),
	huh.NewOption("ap-southeast-1 (Singapore)", "ap-southeast-1"),
}

func instanceTypeOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(config.AllowedInstanceTypes))
	for _, t := range config.AllowedInstanceTypes {
		opts = append(opts, huh.NewOption(t, t))
	}
	return opts
}

func environmentOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(config.AllowedEnvironments))
	for _, e := range config.AllowedEnvironments {
		opts = append(opts, huh.NewOption(e, e))
	}
	return opts
}

func countOptions(max int) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, max+1)
	for i := 0; i <= max; i++ {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%d", i), i))
	}
	return opts
}
