package mobile

import (
	"context"
	"strconv"
	"strings"
)

// DataQuery selects table rows. Raw, when set, is a k=v&k=v OData query sent
// as is and Top and Skip are ignored.
type DataQuery struct {
	Raw  string
	Top  int
	Skip int
}

func (c *Client) ReadData(ctx context.Context, service string, table string, query DataQuery) ([]map[string]any, error) {
	request, err := c.tableChannel(service, table)
	if err != nil {
		return nil, err
	}
	request.Path("data")

	if strings.TrimSpace(query.Raw) != "" {
		if err := applyRawQuery(request, query.Raw); err != nil {
			return nil, err
		}
	} else {
		if query.Skip < 0 || query.Top < 0 {
			return nil, validationError("top and skip must not be negative", nil)
		}
		request.Query("$top", strconv.Itoa(topOrDefault(query.Top)))
		if query.Skip > 0 {
			request.Query("$skip", strconv.Itoa(query.Skip))
		}
	}

	response, err := request.Get(ctx)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := response.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}
