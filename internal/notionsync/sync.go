package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/rollup"
	"github.com/jomei/notionapi"
)

// PublishStats counts what a publish did, or would do in a dry run.
type PublishStats struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// PublishRollup upserts one page per rollup bucket. Pages are matched by
// (title, period, group by) within the result's provider; matched pages are
// updated, missing ones created, and pages of the same provider, period and
// group by whose bucket no longer exists are archived. Per-page API failures
// are logged and counted; only the initial database query aborts the publish.
func PublishRollup(ctx context.Context, notionClient NotionService, notionDBID string, res rollup.Result, period string, dryRun bool) (PublishStats, error) {
	log := logger.FromContext(ctx)

	scope := PageScope{
		Provider: res.Provider.Label(),
		Period:   period,
		GroupBy:  string(res.Query.GroupBy),
		Filter:   res.Query.FilterProductApp,
	}

	log.Info().
		Bool("dry_run", dryRun).
		Str("provider", scope.Provider).
		Str("period", period).
		Str("group_by", scope.GroupBy).
		Int("buckets", len(res.Buckets)).
		Msg("Starting rollup publish to Notion")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID, providerFilter(scope.Provider))
	if err != nil {
		return PublishStats{}, fmt.Errorf("PublishRollup: querying pages: %w", err)
	}

	existing := make(map[pageKey]notionapi.Page)
	var owned []notionapi.Page
	for _, page := range notionPages {
		if extractSelect(page, PropProvider) != scope.Provider {
			continue
		}
		key := pageKey{
			Title:   extractTitle(page),
			Period:  extractRichText(page, PropPeriod),
			GroupBy: extractSelect(page, PropGroupBy),
		}
		if key.Period != scope.Period || key.GroupBy != scope.GroupBy {
			continue
		}
		owned = append(owned, page)
		existing[key] = page
	}

	var stats PublishStats
	current := make(map[string]bool, len(res.Buckets))

	for _, b := range res.Buckets {
		current[b.Key] = true
		key := pageKey{Title: b.Key, Period: scope.Period, GroupBy: scope.GroupBy}
		props := BucketToNotionProperties(b, scope)

		page, found := existing[key]
		if dryRun {
			action := "create"
			if found {
				action = "update"
				stats.Updated++
			} else {
				stats.Created++
			}
			log.Info().
				Str("bucket", b.Key).
				Float64("cost", b.Cost).
				Str("action", action).
				Msg("[DRY RUN] Would publish Notion page for bucket")
			continue
		}

		if found {
			if _, err := notionClient.UpdatePage(ctx, string(page.ID), props); err != nil {
				log.Warn().Err(err).Str("bucket", b.Key).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
			continue
		}

		created, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("bucket", b.Key).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().Str("bucket", b.Key).Str("page_id", string(created.ID)).Msg("Created Notion page for bucket")
		stats.Created++
	}

	for _, page := range owned {
		title := extractTitle(page)
		if current[title] {
			continue
		}
		if dryRun {
			log.Info().Str("bucket", title).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("bucket", title).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Archived++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Msg("Rollup publish completed")

	return stats, nil
}

// providerFilter narrows a query to pages of one provider.
func providerFilter(provider string) notionapi.Filter {
	return &notionapi.PropertyFilter{
		Property: PropProvider,
		Select:   &notionapi.SelectFilterCondition{Equals: provider},
	}
}

// queryAllNotionPages follows query cursors until the database is exhausted.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string, filter notionapi.Filter) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter:      filter,
			StartCursor: cursor,
			PageSize:    maxPageSize,
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			return allPages, nil
		}
		cursor = resp.NextCursor
	}
}
