package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/filesetio/gvfs"
	"github.com/filesetio/gvfs/backend"
	"github.com/filesetio/gvfs/backend/localfs"
	"github.com/filesetio/gvfs/backend/memfs"
	"github.com/filesetio/gvfs/backend/s3fs"
	"github.com/filesetio/gvfs/meta"
)

// fileConfig is the YAML shape of the gvfs CLI config file.
type fileConfig struct {
	ServerURI string `yaml:"server_uri"`
	Metalake  string `yaml:"metalake"`

	Auth struct {
		Type       string `yaml:"type"`
		User       string `yaml:"user"`
		ProxyUser  string `yaml:"proxy_user"`
		ServerURI  string `yaml:"server_uri"`
		Credential string `yaml:"credential"`
		TokenPath  string `yaml:"token_path"`
		Scope      string `yaml:"scope"`
		Token      string `yaml:"token"`
	} `yaml:"auth"`

	Cache struct {
		MaxCapacity        int   `yaml:"max_capacity"`
		EvictAfterAccessMS int64 `yaml:"evict_after_access_ms"`
	} `yaml:"cache"`

	S3 struct {
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
	} `yaml:"s3"`
}

func configPath() string {
	if p := os.Getenv("GVFS_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gvfs.yaml"
	}
	return home + "/.gvfs.yaml"
}

func loadConfig() (*fileConfig, error) {
	data, err := os.ReadFile(configPath())
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath(), err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath(), err)
	}
	return &fc, nil
}

// openFS builds the virtual filesystem from the config file.
func openFS() (*gvfs.FileSystem, error) {
	fc, err := loadConfig()
	if err != nil {
		return nil, err
	}

	auth := meta.AuthConfig{
		Type:       meta.AuthType(fc.Auth.Type),
		User:       fc.Auth.User,
		ProxyUser:  fc.Auth.ProxyUser,
		ServerURI:  fc.Auth.ServerURI,
		Credential: fc.Auth.Credential,
		TokenPath:  fc.Auth.TokenPath,
		Scope:      fc.Auth.Scope,
		Token:      fc.Auth.Token,
	}
	if auth.Type == meta.AuthToken && auth.Token == "" {
		tok, err := promptToken()
		if err != nil {
			return nil, err
		}
		auth.Token = tok
	}

	registry := backend.NewRegistry()
	registry.Register("file", localfs.Driver())
	registry.Register("mem", memfs.NewDriver())
	registry.Register("s3", s3fs.Driver(s3fs.Options{
		Endpoint:        fc.S3.Endpoint,
		Region:          fc.S3.Region,
		AccessKeyID:     fc.S3.AccessKeyID,
		SecretAccessKey: fc.S3.SecretAccessKey,
	}))

	return gvfs.New(gvfs.Config{
		ServerURI:             fc.ServerURI,
		Metalake:              fc.Metalake,
		Auth:                  auth,
		Registry:              registry,
		CacheMaxCapacity:      fc.Cache.MaxCapacity,
		CacheEvictAfterAccess: time.Duration(fc.Cache.EvictAfterAccessMS) * time.Millisecond,
	})
}

func promptToken() (string, error) {
	fmt.Fprint(os.Stderr, "token: ")
	tok, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(tok), nil
}
