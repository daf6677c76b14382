package media

import (
	"context"

	"github.com/italolelis/jellyfin_downloader/internal/telemetry"
)

// InstrumentedClient wraps Client with telemetry.
type InstrumentedClient struct {
	client    Client
	telemetry *telemetry.Telemetry
}

// NewInstrumentedClient creates a new instrumented media client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry) *InstrumentedClient {
	return &InstrumentedClient{
		client:    client,
		telemetry: tel,
	}
}

func (c *InstrumentedClient) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	var result *Session

	err := c.telemetry.InstrumentClientOperation(ctx, "authenticate", func(ctx context.Context) error {
		var err error

		result, err = c.client.Authenticate(ctx, creds)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *InstrumentedClient) GetItems(ctx context.Context, session *Session) ([]*Item, error) {
	var result []*Item

	err := c.telemetry.InstrumentClientOperation(ctx, "get_items", func(ctx context.Context) error {
		var err error

		result, err = c.client.GetItems(ctx, session)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GrabStream only covers opening the stream; reading the body is instrumented by the downloader.
func (c *InstrumentedClient) GrabStream(ctx context.Context, session *Session, itemID string) (*Stream, error) {
	var result *Stream

	err := c.telemetry.InstrumentClientOperation(ctx, "grab_stream", func(ctx context.Context) error {
		var err error

		result, err = c.client.GrabStream(ctx, session, itemID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

var _ Client = (*InstrumentedClient)(nil)
