package notionsync

import (
	"math"

	"github.com/dvloznov/cost-dashboard/internal/rollup"
	"github.com/jomei/notionapi"
)

// Database property names.
const (
	PropBucket   = "Bucket"
	PropCost     = "Cost"
	PropShare    = "Share"
	PropServices = "Services"
	PropPeriod   = "Period"
	PropGroupBy  = "Group By"
	PropProvider = "Provider"
	PropFilter   = "Filter"
)

// PageScope identifies the set of pages one rollup publish owns.
type PageScope struct {
	Provider string
	Period   string
	GroupBy  string
	Filter   string
}

// pageKey is how existing pages are matched to buckets.
type pageKey struct {
	Title   string
	Period  string
	GroupBy string
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// BucketToNotionProperties converts a rollup bucket to Notion properties.
func BucketToNotionProperties(b rollup.Bucket, scope PageScope) notionapi.Properties {
	props := notionapi.Properties{
		PropBucket: notionapi.TitleProperty{
			Title: richText(b.Key),
		},
		PropCost: notionapi.NumberProperty{
			Number: round2(b.Cost),
		},
		PropShare: notionapi.NumberProperty{
			Number: round2(b.Share),
		},
		PropServices: notionapi.NumberProperty{
			Number: float64(b.ServiceCount),
		},
		PropPeriod: notionapi.RichTextProperty{
			RichText: richText(scope.Period),
		},
		PropGroupBy: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: scope.GroupBy,
			},
		},
		PropProvider: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: scope.Provider,
			},
		},
	}

	if scope.Filter != "" {
		props[PropFilter] = notionapi.RichTextProperty{
			RichText: richText(scope.Filter),
		}
	}

	return props
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// extractTitle returns the bucket title of a page, or "".
func extractTitle(page notionapi.Page) string {
	if prop, ok := page.Properties[PropBucket]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}

// extractRichText returns the first rich-text value of a property, or "".
func extractRichText(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name]; ok {
		if richText, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(richText.RichText) > 0 {
				return richText.RichText[0].PlainText
			}
		}
	}
	return ""
}

// extractSelect returns the selected option name of a property, or "".
func extractSelect(page notionapi.Page, name string) string {
	if prop, ok := page.Properties[name]; ok {
		if sel, ok := prop.(*notionapi.SelectProperty); ok {
			return sel.Select.Name
		}
	}
	return ""
}
