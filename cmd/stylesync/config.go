package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnana997/stylesync/catalogs"
	"github.com/gnana997/stylesync/pkg/catalog"
	"github.com/gnana997/stylesync/pkg/parser"
	"github.com/gnana997/stylesync/pkg/schemaimport"
	"github.com/gnana997/stylesync/pkg/tokens"
)

const defaultConfigPath = ".stylesync/config.yaml"

// ProjectConfig holds the contents of .stylesync/config.yaml.
type ProjectConfig struct {
	Version      string        `yaml:"version"`
	CatalogPath  string        `yaml:"catalog_path"`
	Document     string        `yaml:"document"`
	Store        tokens.Config `yaml:"store"`
	Log          LogConfig     `yaml:"log"`
	MCPLog       string        `yaml:"mcp_log"`
	Watch        bool          `yaml:"watch"`
	DefaultModes []string      `yaml:"default_modes"`
}

// LogConfig is the log section of the project config.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// loadProjectConfig reads the config file at path.
// Returns nil (no error) if the file does not exist.
func loadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveCatalogPath applies the fallback chain:
//  1. Explicit --catalog flag value
//  2. catalog_path from the project config
//  3. "" for the embedded DS4DS catalog
func (a *app) resolveCatalogPath() string {
	return firstNonEmpty(a.catalogPath, a.cfg.CatalogPath)
}

// loadCatalog opens the resolved catalog. A TypeScript or JavaScript path is
// imported as a schema source on top of the embedded catalog.
func (a *app) loadCatalog() (*catalog.QueryService, error) {
	path := a.resolveCatalogPath()
	if path == "" {
		return catalog.LoadAndQueryBytes(catalogs.DS4DSJSON)
	}
	if parser.DetectLanguage(path) == parser.LanguageUnknown {
		qs, err := catalog.LoadAndQuery(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		return qs, nil
	}

	base, _, err := catalog.LoadFromBytes(catalogs.DS4DSJSON)
	if err != nil {
		return nil, err
	}
	im := schemaimport.New(a.logger)
	defer im.Close()
	res, err := im.ImportFile(path, schemaimport.Options{Base: base})
	if err != nil {
		return nil, err
	}
	for _, s := range res.Skipped {
		a.logger.Warn("schema entry skipped", "decl", s.Decl, "line", s.Line, "reason", s.Reason)
	}
	return catalog.NewQueryService(res.Catalog, res.Catalog.BuildIndex()), nil
}

// resolveDocument returns --document, else document from the project config.
func (a *app) resolveDocument() (string, error) {
	if p := firstNonEmpty(a.documentPath, a.cfg.Document); p != "" {
		return p, nil
	}
	return "", errors.New("no document: pass --document or set document in " + a.configPath)
}

// storeConfig layers the --store flags over the config file. The default is
// the snapshot's own in-memory store.
func (a *app) storeConfig() tokens.Config {
	return tokens.Config{
		Kind: firstNonEmpty(a.storeKind, a.cfg.Store.Kind, "memory"),
		DSN:  firstNonEmpty(a.storeDSN, a.cfg.Store.DSN),
	}
}
