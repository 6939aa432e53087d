package spec

import "path/filepath"

// ResolveLayerPath returns where layerName of repo lives once the repository
// is checked out at repoLocalPath.
func ResolveLayerPath(repoLocalPath string, repo Repo, layerName string) string {
	sub := layerName
	for _, layer := range repo.Layers {
		if layer.Name == layerName {
			if layer.Override != "" {
				sub = layer.Override
			}
			break
		}
	}
	if sub == RootLayer {
		return filepath.Clean(repoLocalPath)
	}
	return filepath.Join(repoLocalPath, filepath.FromSlash(sub))
}

// RepoPath is the default checkout location of a repository.
func RepoPath(sourcesDir string, repo Repo) string {
	return filepath.Join(sourcesDir, repo.Name)
}

// LayerPaths resolves every layer of repo in declaration order.
func (r Repo) LayerPaths(repoLocalPath string) []string {
	paths := make([]string, 0, len(r.Layers))
	for _, layer := range r.Layers {
		paths = append(paths, ResolveLayerPath(repoLocalPath, r, layer.Name))
	}
	return paths
}
