// Package configs provides the embedded configuration template.
//
// The template is embedded at build time so 'loreseek init' works in
// every distribution, source builds included. It documents every
// setting with its default; the configuration hierarchy is defaults,
// then ~/.config/loreseek/config.yaml, then .loreseek.yaml, then
// LORESEEK_* environment variables (see internal/config).
package configs

import _ "embed"

// ProjectConfigTemplate is written by 'loreseek init' as .loreseek.yaml.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
