package mobile

import (
	"context"
	"strings"

	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/operation"
	"github.com/google/uuid"
)

// Client exposes the mobile service operations of one subscription.
type Client struct {
	session           *channel.Session
	sqlSession        *channel.Session
	tracker           operation.Tracker
	sqlHostnameSuffix string
	newReferenceID    func() string
}

type Option func(*Client)

// WithSQLSession sets the session used for SQL server management calls.
func WithSQLSession(session *channel.Session) Option {
	return func(c *Client) {
		c.sqlSession = session
	}
}

func WithTracker(tracker operation.Tracker) Option {
	return func(c *Client) {
		c.tracker = tracker
	}
}

func WithSQLHostnameSuffix(suffix string) Option {
	return func(c *Client) {
		c.sqlHostnameSuffix = suffix
	}
}

// WithReferenceIDs replaces the generator of resource reference suffixes.
func WithReferenceIDs(next func() string) Option {
	return func(c *Client) {
		c.newReferenceID = next
	}
}

func NewClient(session *channel.Session, opts ...Option) (*Client, error) {
	if session == nil {
		return nil, internalError("mobile client requires a session", nil)
	}

	client := &Client{
		session:           session,
		tracker:           operation.Tracker{Fetcher: operation.ChannelFetcher{Session: session}},
		sqlHostnameSuffix: config.DefaultSQLHostnameSuffix,
		newReferenceID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.tracker.Fetcher == nil {
		client.tracker.Fetcher = operation.ChannelFetcher{Session: session}
	}
	return client, nil
}

func (c *Client) SubscriptionID() string {
	return c.session.SubscriptionID()
}

func (c *Client) mobileChannel() *channel.Channel {
	return c.session.NewChannel().
		Header("Accept", channel.MediaTypeJSON).
		Path("services").
		Path("mobileservices")
}

func (c *Client) serviceChannel(service string) *channel.Channel {
	return c.mobileChannel().Path("mobileservices").Path(service)
}

func (c *Client) appManagerChannel() *channel.Channel {
	return c.session.NewChannel().
		Header("Accept", channel.MediaTypeXML).
		Path("applications")
}

// waitForRequest tracks the asynchronous operation started by response.
func (c *Client) waitForRequest(ctx context.Context, response *channel.Response) error {
	requestID := response.RequestID()
	if requestID == "" {
		return faults.NewTypedError(
			faults.ProtocolError,
			"the management service did not return an operation id; check the status on the management portal",
			nil,
		)
	}
	return c.tracker.Wait(ctx, requestID)
}

func requireName(kind string, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", validationError(kind+" name is required", nil)
	}
	if strings.Contains(trimmed, "/") {
		return "", validationError(kind+" name must not contain '/'", nil)
	}
	return trimmed, nil
}

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func notFoundError(message string, cause error) error {
	return faults.NewTypedError(faults.NotFoundError, message, cause)
}

func internalError(message string, cause error) error {
	return faults.NewTypedError(faults.InternalError, message, cause)
}
