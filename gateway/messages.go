package gateway

import (
	"context"
	"net/http"

	"github.com/hospital-app/hospital-client/models"
)

// Messages fetches the current user's full message history. The backend
// returns every message the user is party to; conversation filtering happens
// client side.
func (c *Client) Messages(ctx context.Context) ([]models.Message, error) {
	var out []models.Message
	if err := c.getJSON(ctx, "/api/Room/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteMessage removes a message by ID
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/room/message/"+id, nil, nil, "", nil)
}
