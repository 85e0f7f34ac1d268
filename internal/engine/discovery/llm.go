package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/engine/llm"
	"github.com/rendis/gridrank/internal/model"
)

// llmReply is the JSON shape the model is asked to produce.
type llmReply struct {
	Competitors []llmCompetitor `json:"competitors" jsonschema:"description=Nearby businesses competing for the keyword"`
	Sources     []llmSource     `json:"sources,omitempty"`
}

type llmCompetitor struct {
	ID          string  `json:"id,omitempty" jsonschema:"description=Google place id if known"`
	Name        string  `json:"name" validate:"required"`
	Address     string  `json:"address"`
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	Lng         float64 `json:"lng" validate:"min=-180,max=180"`
	Category    string  `json:"category,omitempty"`
	Rating      float64 `json:"rating,omitempty" validate:"min=0,max=5"`
	ReviewCount int     `json:"review_count,omitempty" validate:"min=0"`
}

type llmSource struct {
	URI   string `json:"uri" validate:"required,url"`
	Title string `json:"title"`
}

// LLMOptions configures an LLMDiscoverer.
type LLMOptions struct {
	Model          string
	MaxTokens      int64
	MaxCompetitors int
	Timeout        time.Duration
}

// LLMDiscoverer asks Claude for competitors. Its output is treated as
// untrusted: entries that fail validation are dropped.
type LLMDiscoverer struct {
	client   llm.Client
	opts     LLMOptions
	validate *validator.Validate
	log      *zap.Logger
}

// NewLLMDiscoverer builds a discoverer over client.
func NewLLMDiscoverer(client llm.Client, opts LLMOptions) *LLMDiscoverer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.MaxCompetitors <= 0 {
		opts.MaxCompetitors = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &LLMDiscoverer{
		client:   client,
		opts:     opts,
		validate: validator.New(),
		log:      zap.L().With(zap.String("component", "llm_discovery")),
	}
}

func (d *LLMDiscoverer) FindCompetitors(ctx context.Context, target model.Business, query string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	schema, err := llm.SchemaJSON(llmReply{})
	if err != nil {
		return nil, err
	}

	resp, err := d.client.CreateMessage(ctx, llm.MessageRequest{
		Model:     d.opts.Model,
		MaxTokens: d.opts.MaxTokens,
		System: "You are a local search analyst. Reply with a single JSON object matching this schema and nothing else:\n" +
			schema,
		Messages: []llm.Message{{Role: "user", Content: d.prompt(target, query)}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: llm request")
	}
	resp.Usage.LogUsage(resp.Model, "discovery")
	if resp.Truncated() {
		d.log.Warn("llm reply truncated", zap.Int64("max_tokens", d.opts.MaxTokens))
		return nil, eris.Wrap(llm.ErrTruncated, "discovery: parse llm reply")
	}

	var reply llmReply
	if err := llm.UnmarshalFlexible(resp.Text(), &reply); err != nil {
		return nil, eris.Wrap(err, "discovery: parse llm reply")
	}

	res := &Result{}
	for i, c := range reply.Competitors {
		b, err := d.toBusiness(c)
		if err != nil {
			d.log.Warn("dropping llm competitor", zap.Int("index", i), zap.String("name", c.Name), zap.Error(err))
			continue
		}
		res.Competitors = append(res.Competitors, b)
	}
	for _, s := range reply.Sources {
		if err := d.validate.Struct(s); err != nil {
			d.log.Debug("dropping llm source", zap.String("uri", s.URI), zap.Error(err))
			continue
		}
		res.Sources = append(res.Sources, model.Source{URI: s.URI, Title: s.Title})
	}
	return res, nil
}

func (d *LLMDiscoverer) prompt(target model.Business, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "List up to %d real businesses that compete with the one below for the search %q.\n",
		d.opts.MaxCompetitors, query)
	fmt.Fprintf(&b, "Business: %s\n", target.Name)
	if target.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", target.Address)
	}
	fmt.Fprintf(&b, "Coordinates: %s\n", target.Location)
	b.WriteString("Only include businesses within a few kilometres, with accurate coordinates. Do not include the business itself.")
	return b.String()
}

func (d *LLMDiscoverer) toBusiness(c llmCompetitor) (model.Business, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := d.validate.Struct(c); err != nil {
		return model.Business{}, eris.Wrap(err, "discovery: invalid competitor")
	}
	if c.Lat == 0 && c.Lng == 0 {
		return model.Business{}, eris.New("discovery: competitor has no coordinates")
	}

	id := strings.TrimSpace(c.ID)
	if id == "" {
		id = DerivedID(c.Name, c.Address)
	}
	return model.Business{
		ID:          id,
		Name:        c.Name,
		Address:     strings.TrimSpace(c.Address),
		Location:    model.Coordinate{Lat: c.Lat, Lng: c.Lng},
		Category:    c.Category,
		Rating:      c.Rating,
		ReviewCount: c.ReviewCount,
	}, nil
}

// DerivedID is a stable id for a business that came without one.
func DerivedID(name, address string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(Normalize(name)+"|"+Normalize(address))).String()
}
