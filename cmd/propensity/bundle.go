// cmd/propensity/bundle.go
package main

import (
	"fmt"
	"os"

	"propensity-scoring/internal/common/config"
	"propensity-scoring/internal/models"
	"propensity-scoring/internal/propensity/artifacts"
	"propensity-scoring/internal/propensity/ranking"

	"github.com/spf13/cobra"
)

const defaultBundlePath = "configs/artifacts/bundle.yaml"

// bundleFlags are shared by the commands that load a model bundle.
type bundleFlags struct {
	bundlePath string
	modelDir   string
	configPath string
	topN       int
}

func (f *bundleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.bundlePath, "bundle", "b", "", "Path to the bundle manifest (default $PROPENSITY_BUNDLE_PATH or "+defaultBundlePath+")")
	cmd.Flags().StringVar(&f.modelDir, "model-dir", "", "Override the manifest's model_dir")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Read artifacts and ranking settings from a config file")
	cmd.Flags().IntVar(&f.topN, "top", 0, "Number of ranked products to return")
}

// resolve merges flags over the optional config file.
func (f *bundleFlags) resolve() (bundlePath string, opts []artifacts.Option, ranker *ranking.Ranker, err error) {
	topN := ranking.DefaultTopN
	payroll := models.PayrollProduct
	modelDir := f.modelDir
	bundlePath = f.bundlePath
	var expected string

	if f.configPath != "" {
		cfg, err := config.LoadFromFile(f.configPath)
		if err != nil {
			return "", nil, nil, err
		}
		if bundlePath == "" {
			bundlePath = cfg.Artifacts.BundlePath
		}
		if modelDir == "" {
			modelDir = cfg.Artifacts.ModelDir
		}
		expected = cfg.Artifacts.ExpectedSchema
		topN = cfg.Ranking.TopN
		p, ok := models.ParseProduct(cfg.Ranking.PayrollProduct)
		if !ok {
			return "", nil, nil, fmt.Errorf("unknown payroll product %q", cfg.Ranking.PayrollProduct)
		}
		payroll = p
	}
	if bundlePath == "" {
		bundlePath = os.Getenv("PROPENSITY_BUNDLE_PATH")
	}
	if bundlePath == "" {
		bundlePath = defaultBundlePath
	}
	if f.topN > 0 {
		topN = f.topN
	}

	if modelDir != "" {
		opts = append(opts, artifacts.WithModelDir(modelDir))
	}
	if expected != "" {
		opts = append(opts, artifacts.WithExpectedSchema(expected))
	}
	return bundlePath, opts, ranking.NewRanker(topN, payroll), nil
}
