package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/aiclient"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/taxonomy"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/telemetry"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/usage"
)

const restNotAvailable = "not available"

const classifierSystemPrompt = `You classify the content types of a WordPress website.
Use the sitemap post-type tokens, sample URLs and REST API post types you are given.
Return every content type that holds individual content items (not taxonomies, users or archives).
For each type give a lowercase slug, an English name, a Hebrew localized name,
the REST endpoint that lists its items, a one-sentence description, and whether it is
a core WordPress type (posts or pages).`

// classifierSchema is the JSON schema the completion must satisfy.
var classifierSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"entityTypes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"slug":          map[string]any{"type": "string"},
					"name":          map[string]any{"type": "string"},
					"localizedName": map[string]any{"type": "string"},
					"restEndpoint":  map[string]any{"type": "string"},
					"description":   map[string]any{"type": "string"},
					"isCore":        map[string]any{"type": "boolean"},
				},
				"required": []string{"slug", "name", "localizedName", "restEndpoint", "description", "isCore"},
			},
		},
	},
	"required": []string{"entityTypes"},
}

type classification struct {
	EntityTypes []taxonomy.Enrichment `json:"entityTypes"`
}

func (c *classification) validate() error {
	if c.EntityTypes == nil {
		return fmt.Errorf("%w: entityTypes missing", aiclient.ErrInvalidCompletion)
	}
	for i, et := range c.EntityTypes {
		if strings.TrimSpace(et.Slug) == "" || strings.TrimSpace(et.Name) == "" {
			return fmt.Errorf("%w: entity type %d lacks slug or name", aiclient.ErrInvalidCompletion, i)
		}
	}
	return nil
}

// enrich asks the classifier to refine types. Usage is metered once the call
// is about to be dispatched, whatever its outcome. Any failure leaves types unchanged.
func (s *Service) enrich(
	ctx context.Context, log logger.Logger, in DiscoverInput, scan sitemapScan,
	restTypes, types []models.ContentTypeDescriptor,
) ([]models.ContentTypeDescriptor, bool) {
	if s.deps.Classifier == nil {
		return types, false
	}

	req := aiclient.Request{
		SystemPrompt: classifierSystemPrompt,
		UserPrompt:   buildPrompt(scan.tokens, scan.sample, restTypes),
		OutputSchema: classifierSchema,
		Temperature:  s.cfg.Temperature,
	}

	s.meter(ctx, log, in)

	var out classification
	err := s.deps.Classifier.Complete(ctx, req, &out)
	if err == nil {
		err = out.validate()
	}
	if err != nil {
		log.Warn("AI enrichment skipped", logger.Error(err))
		s.deps.Telemetry.RecordEnrichment(telemetry.OutcomeFailed)
		return types, false
	}

	s.deps.Telemetry.RecordEnrichment(telemetry.OutcomeApplied)
	return taxonomy.ApplyEnrichment(types, out.EntityTypes), true
}

func (s *Service) meter(ctx context.Context, log logger.Logger, in DiscoverInput) {
	if s.deps.Usage == nil {
		return
	}
	_, err := s.deps.Usage.Record(ctx, usage.Request{
		AccountID:   in.AccountID,
		UserID:      in.UserID,
		SiteID:      in.SiteID,
		Description: "Content type discovery for " + in.SiteBaseURL,
	})
	if err != nil {
		log.Warn("Usage metering failed", logger.Error(err))
	}
}

type promptRESTType struct {
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	RestEndpoint string `json:"restEndpoint"`
	Description  string `json:"description,omitempty"`
}

func buildPrompt(tokens, sample []string, restTypes []models.ContentTypeDescriptor) string {
	var b strings.Builder

	b.WriteString("Sitemap post-type tokens: ")
	if len(tokens) == 0 {
		b.WriteString("none")
	} else {
		b.WriteString(strings.Join(tokens, ", "))
	}

	b.WriteString("\n\nSample URLs:\n")
	if len(sample) == 0 {
		b.WriteString("none\n")
	}
	for _, u := range sample {
		b.WriteString("- ")
		b.WriteString(u)
		b.WriteByte('\n')
	}

	b.WriteString("\nREST API post types: ")
	if restTypes == nil {
		b.WriteString(restNotAvailable)
		return b.String()
	}
	summary := make([]promptRESTType, 0, len(restTypes))
	for i := range restTypes {
		summary = append(summary, promptRESTType{
			Slug:         restTypes[i].Slug,
			Name:         restTypes[i].DisplayName,
			RestEndpoint: restTypes[i].Endpoint(),
			Description:  restTypes[i].Description,
		})
	}
	encoded, err := json.Marshal(summary)
	if err != nil {
		b.WriteString(restNotAvailable)
		return b.String()
	}
	b.Write(encoded)
	return b.String()
}
