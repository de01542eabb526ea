package k8s

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"
)

// Release describes one Helm release to converge.
type Release struct {
	Namespace string
	Name      string
	RepoURL   string
	Chart     string
	Version   string
	Values    map[string]any

	// Timeout bounds the install or upgrade wait; defaults to 5 minutes.
	Timeout time.Duration
}

// HelmClient converges Helm releases against one cluster.
type HelmClient struct {
	settings   *cli.EnvSettings
	kubeconfig []byte
}

// NewHelmClient creates a Helm client for the cluster the kubeconfig points
// at.
func NewHelmClient(kubeconfig []byte) *HelmClient {
	return &HelmClient{
		settings:   cli.New(),
		kubeconfig: kubeconfig,
	}
}

// InstallOrUpgrade installs the release if absent, otherwise upgrades it.
// Either path waits for the release's resources to become ready.
func (h *HelmClient) InstallOrUpgrade(ctx context.Context, rel Release) error {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(h.kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to create rest config: %w", err)
	}

	actionConfig := new(action.Configuration)
	clientGetter := &restClientGetter{config: restConfig, namespace: rel.Namespace}

	if err := actionConfig.Init(clientGetter, rel.Namespace, os.Getenv("HELM_DRIVER"), log.Printf); err != nil {
		return fmt.Errorf("failed to init helm action config: %w", err)
	}

	cp := &action.ChartPathOptions{RepoURL: rel.RepoURL, Version: rel.Version}
	chartPath, err := cp.LocateChart(rel.Chart, h.settings)
	if err != nil {
		return fmt.Errorf("failed to locate chart %s: %w", rel.Chart, err)
	}

	chart, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("failed to load chart %s: %w", rel.Chart, err)
	}

	timeout := rel.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	history := action.NewHistory(actionConfig)
	history.Max = 1
	if _, err := history.Run(rel.Name); err == nil {
		upgrade := action.NewUpgrade(actionConfig)
		upgrade.Namespace = rel.Namespace
		upgrade.Wait = true
		upgrade.Timeout = timeout
		if _, err := upgrade.RunWithContext(ctx, rel.Name, chart, rel.Values); err != nil {
			return fmt.Errorf("helm upgrade of %s failed: %w", rel.Name, err)
		}
		return nil
	}

	install := action.NewInstall(actionConfig)
	install.Namespace = rel.Namespace
	install.ReleaseName = rel.Name
	install.CreateNamespace = true
	install.Wait = true
	install.Timeout = timeout
	if _, err := install.RunWithContext(ctx, chart, rel.Values); err != nil {
		return fmt.Errorf("helm install of %s failed: %w", rel.Name, err)
	}
	return nil
}

// AddRepo registers a chart repository and refreshes its index.
func (h *HelmClient) AddRepo(name, url string) error {
	f, err := repo.LoadFile(h.settings.RepositoryConfig)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if os.IsNotExist(err) {
		f = repo.NewFile()
	}

	entry := repo.Entry{Name: name, URL: url}

	r, err := repo.NewChartRepository(&entry, getter.All(h.settings))
	if err != nil {
		return err
	}
	if _, err := r.DownloadIndexFile(); err != nil {
		return fmt.Errorf("failed to download index for repo %s: %w", name, err)
	}

	f.Update(&entry)
	return f.WriteFile(h.settings.RepositoryConfig, 0o644)
}

// restClientGetter adapts a rest.Config to the getter interface the Helm
// action machinery expects.
type restClientGetter struct {
	config    *rest.Config
	namespace string
}

func (g *restClientGetter) ToRESTConfig() (*rest.Config, error) {
	return g.config, nil
}

func (g *restClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(g.config)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(discoveryClient), nil
}

func (g *restClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	discoveryClient, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(discoveryClient), nil
}

func (g *restClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	return clientcmd.NewDefaultClientConfig(*clientcmdapi.NewConfig(), &clientcmd.ConfigOverrides{})
}
