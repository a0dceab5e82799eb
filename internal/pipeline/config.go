package pipeline

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for pipeline files that do not decode, and
// for single pipelines that do not match the schema.
var ErrInvalidConfig = errors.New("invalid pipeline config")

//go:embed schema.cue
var schemaCUE string

// file is the layout of a pipelines file:
//
//	pipelines:
//	  - name: knights
//	    source:
//	      provider: teambattle
//	      config: {team: knights, arena: spring24}
//	    transformers:
//	      - provider: text
//	    sink:
//	      provider: console
//
// Entries are kept as nodes so that each pipeline is decoded and validated
// on its own.
type file struct {
	Pipelines []yaml.Node `yaml:"pipelines"`
}

// LoadConfig reads a pipelines file. See ParseConfig.
func LoadConfig(path string) ([]Config, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read pipelines: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a pipelines document. Each pipeline is decoded with
// unknown fields rejected and validated against the embedded CUE schema.
//
// The valid pipelines are returned together with one error per rejected
// pipeline, each wrapping ErrInvalidConfig. The final error is only set when
// the document as a whole cannot be used.
func ParseConfig(data []byte) ([]Config, []error, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(f.Pipelines) == 0 {
		return nil, nil, fmt.Errorf("%w: no pipelines", ErrInvalidConfig)
	}

	schema, err := pipelineSchema()
	if err != nil {
		return nil, nil, err
	}

	var (
		configs []Config
		errs    []error
	)
	for i := range f.Pipelines {
		cfg, err := decodePipeline(&f.Pipelines[i], schema)
		if err != nil {
			errs = append(errs, fmt.Errorf("pipeline %d (line %d): %w", i+1, f.Pipelines[i].Line, err))
			continue
		}
		configs = append(configs, cfg)
	}
	return configs, errs, nil
}

func pipelineSchema() (cue.Value, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile pipeline schema: %w", err)
	}
	return schema.LookupPath(cue.ParsePath("#Pipeline")), nil
}

// decodePipeline decodes one entry strictly and checks it against the
// #Pipeline definition. JSON is valid CUE, so the decoded entry is compiled
// as JSON and unified with the schema.
func decodePipeline(node *yaml.Node, schema cue.Value) (Config, error) {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	doc, err := json.Marshal(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	value := schema.Context().CompileBytes(doc, cue.Filename("pipeline.json"))
	if err := value.Err(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, cueerrors.Details(err, nil))
	}
	return cfg, nil
}
