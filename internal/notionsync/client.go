package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/jomei/notionapi"
)

// maxPageSize is the largest page size the Notion query API accepts.
const maxPageSize = 100

// NotionClient publishes rollup pages through the Notion API.
type NotionClient struct {
	api *notionapi.Client
}

// NewNotionClient creates a client authenticated with an integration token.
func NewNotionClient(token string, opts ...notionapi.ClientOption) *NotionClient {
	return &NotionClient{
		api: notionapi.NewClient(notionapi.Token(token), opts...),
	}
}

// CreatePage adds a bucket page to the rollup database.
func (c *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: database %s: %w", databaseID, err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("database_id", databaseID).Str("page_id", string(page.ID)).Msg("Notion page created")
	return page, nil
}

// UpdatePage overwrites the given properties of an existing page.
func (c *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: page %s: %w", pageID, err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("page_id", pageID).Msg("Notion page updated")
	return page, nil
}

// QueryDatabase runs one query page. A zero or oversized page size is
// clamped to the API maximum.
func (c *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if req == nil {
		req = &notionapi.DatabaseQueryRequest{}
	}
	if req.PageSize <= 0 || req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: database %s: %w", databaseID, err)
	}
	return resp, nil
}

// ArchivePage moves a stale bucket page to the Notion trash. Notion has no
// hard delete for database rows.
func (c *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	_, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived:   true,
		Properties: notionapi.Properties{},
	})
	if err != nil {
		return fmt.Errorf("ArchivePage: page %s: %w", pageID, err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("page_id", pageID).Msg("Notion page archived")
	return nil
}
