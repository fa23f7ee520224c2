// Package vision labels photos; the relax step is verified by finding a book.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	gvision "google.golang.org/api/vision/v1"
)

const maxLabels = 3

var ErrNotConfigured = errors.New("vision: label detection is not configured")

type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type Labeler interface {
	Labels(ctx context.Context, image []byte) ([]Label, error)
}

// ContainsBook reports whether any label reads "book", ignoring case.
func ContainsBook(labels []Label) bool {
	for _, l := range labels {
		if strings.EqualFold(strings.TrimSpace(l.Description), "book") {
			return true
		}
	}
	return false
}

type GoogleLabeler struct {
	svc *gvision.Service
}

func NewGoogleLabeler(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GoogleLabeler, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := gvision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision: create service: %w", err)
	}
	return &GoogleLabeler{svc: svc}, nil
}

func (g *GoogleLabeler) Labels(ctx context.Context, image []byte) ([]Label, error) {
	req := &gvision.BatchAnnotateImagesRequest{
		Requests: []*gvision.AnnotateImageRequest{{
			Image:    &gvision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*gvision.Feature{{Type: "LABEL_DETECTION", MaxResults: maxLabels}},
		}},
	}
	resp, err := g.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision: annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}
	first := resp.Responses[0]
	if first.Error != nil {
		return nil, fmt.Errorf("vision: annotate: %s", first.Error.Message)
	}
	labels := make([]Label, 0, len(first.LabelAnnotations))
	for _, a := range first.LabelAnnotations {
		labels = append(labels, Label{Description: a.Description, Score: a.Score})
	}
	return labels, nil
}

// Disabled is used when no API key is configured.
type Disabled struct{}

func (Disabled) Labels(context.Context, []byte) ([]Label, error) { return nil, ErrNotConfigured }
