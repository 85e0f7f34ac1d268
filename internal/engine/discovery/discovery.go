// Package discovery finds the competitors a target business is ranked against.
package discovery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rendis/gridrank/internal/model"
)

// Discoverer returns candidate competitors for a target and search keyword.
// Implementations own their timeouts. An empty result is not an error.
type Discoverer interface {
	FindCompetitors(ctx context.Context, target model.Business, query string) (*Result, error)
}

// Result is a competitor list plus where it came from.
type Result struct {
	Competitors []model.Business `json:"competitors" yaml:"competitors"`
	Sources     []model.Source   `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// StaticDiscoverer always returns the same list.
type StaticDiscoverer struct {
	Result Result
}

func (s *StaticDiscoverer) FindCompetitors(ctx context.Context, _ model.Business, _ string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := Result{
		Competitors: append([]model.Business(nil), s.Result.Competitors...),
		Sources:     append([]model.Source(nil), s.Result.Sources...),
	}
	return &out, nil
}

// LoadStatic reads a competitor file. JSON and YAML are accepted, either as
// {competitors, sources} or as a bare list of businesses.
func LoadStatic(path string) (*StaticDiscoverer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: read %s", path)
	}

	unmarshal := json.Unmarshal
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	var res Result
	if err := unmarshal(data, &res); err != nil {
		var list []model.Business
		if err2 := unmarshal(data, &list); err2 != nil {
			return nil, eris.Wrapf(err, "discovery: parse %s", path)
		}
		res.Competitors = list
	}
	if len(res.Sources) == 0 {
		res.Sources = []model.Source{{URI: "file://" + path, Title: filepath.Base(path)}}
	}
	return &StaticDiscoverer{Result: res}, nil
}

// Chain tries each discoverer in order and returns the first non-empty result.
type Chain []Discoverer

func (c Chain) FindCompetitors(ctx context.Context, target model.Business, query string) (*Result, error) {
	var (
		lastErr error
		empty   *Result
	)
	for i, d := range c {
		res, err := d.FindCompetitors(ctx, target, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("discoverer failed, trying next",
				zap.Int("position", i),
				zap.String("query", query),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if res != nil && len(res.Competitors) > 0 {
			return res, nil
		}
		if empty == nil {
			empty = res
		}
	}
	if empty != nil {
		return empty, nil
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "discovery: all discoverers failed")
	}
	return &Result{}, nil
}
