// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package provider reads raw configuration bytes and signals changes.
package provider

import (
	"context"
	"fmt"
)

// Type identifies the config source type.
type Type string

const (
	TypeFile  Type = "file"
	TypeBytes Type = "bytes"
)

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "bytes":
		return TypeBytes, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// Provider abstracts config sources.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Type returns the provider type for logging.
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel whenever the source changes,
	// until ctx is cancelled. A nil channel means watching is unsupported.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ProviderConfig configures provider creation.
type ProviderConfig struct {
	Type Type

	// Path is the config file path.
	Path string

	// Data is the document for TypeBytes.
	Data []byte
}

// New creates a Provider based on ProviderConfig.
func New(opts ProviderConfig) (Provider, error) {
	switch opts.Type {
	case TypeFile, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("config path is required")
		}
		return NewFileProvider(opts.Path)
	case TypeBytes:
		return NewBytesProvider(opts.Data), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", opts.Type)
	}
}

// BytesProvider serves a fixed document. It never changes.
type BytesProvider struct {
	data []byte
}

// NewBytesProvider creates a provider for data.
func NewBytesProvider(data []byte) *BytesProvider {
	return &BytesProvider{data: data}
}

// Type returns TypeBytes.
func (p *BytesProvider) Type() Type { return TypeBytes }

// Load returns the document.
func (p *BytesProvider) Load(context.Context) ([]byte, error) { return p.data, nil }

// Watch is unsupported.
func (p *BytesProvider) Watch(context.Context) (<-chan struct{}, error) { return nil, nil }

// Close does nothing.
func (p *BytesProvider) Close() error { return nil }

var _ Provider = (*BytesProvider)(nil)
