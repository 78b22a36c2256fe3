package converter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/derivation"
	"github.com/matzehuels/sqltree/pkg/errors"
	"github.com/matzehuels/sqltree/pkg/integrations"
	"github.com/matzehuels/sqltree/pkg/observability"
	"github.com/matzehuels/sqltree/pkg/schema"
)

// DefaultBaseURL is where a locally started service listens.
const DefaultBaseURL = "http://localhost:8080/api"

// Service endpoints, relative to the base URL.
const (
	pathValidate = "sintaxis"
	pathConvert  = "convert"
)

// Validation summary messages.
const (
	MessageValid   = "Consulta valida"
	MessageInvalid = "Consulta invalida"
)

// Message is one diagnostic from the service.
type Message struct {
	Tipo          string `json:"tipo"`
	TipoDetallado string `json:"tipoDetallado"`
	Contenido     string `json:"contenido"`
}

// String renders the message as "tipoDetallado: contenido".
func (m Message) String() string {
	return m.TipoDetallado + ": " + m.Contenido
}

type messagesBody struct {
	Mensajes []Message `json:"mensajes"`
}

// Validation is the outcome of a syntax check.
type Validation struct {
	OK      bool     `json:"ok"`
	Errors  []string `json:"errors"`
	Message string   `json:"message"`
}

// ServiceError is a conversion the service refused.
type ServiceError struct {
	Status   int
	Messages []string
}

func (e *ServiceError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("conversion service returned status %d", e.Status)
	}
	return fmt.Sprintf("conversion service returned status %d: %s", e.Status, strings.Join(e.Messages, "; "))
}

// Client talks to the conversion service.
type Client struct {
	base    *integrations.Client
	baseURL string
	keyer   cache.Keyer
}

// NewClient creates a client for the service at baseURL (DefaultBaseURL
// when empty). Conversions are cached in c for ttl; c may be nil.
func NewClient(baseURL string, c cache.Cache, ttl time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		base:    integrations.NewClient(c, ttl, nil),
		baseURL: strings.TrimRight(baseURL, "/"),
		keyer:   cache.NewDefaultKeyer(),
	}
}

// HTTP exposes the underlying transport for tuning.
func (c *Client) HTTP() *integrations.Client { return c.base }

// SetKeyer replaces the cache keyer.
func (c *Client) SetKeyer(k cache.Keyer) { c.keyer = k }

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Validate asks the service to check s. A rejection is reported through
// Validation.OK, not as an error; errors mean the service could not answer.
func (c *Client) Validate(ctx context.Context, s schema.ExportedSchema) (Validation, error) {
	resp, err := c.base.PostJSON(ctx, c.url(pathValidate), s)
	if err != nil {
		return Validation{}, errors.Wrap(errors.ErrCodeNetwork, err, "validation service unreachable")
	}
	if resp.OK() {
		return Validation{OK: true, Errors: []string{}, Message: MessageValid}, nil
	}
	return Validation{OK: false, Errors: flatten(resp.Body), Message: MessageInvalid}, nil
}

// Transform asks the service for the derivation tree of s. Results are
// cached by schema id unless refresh is set. A refusal is a SCHEMA_REJECTED
// error wrapping a *ServiceError.
func (c *Client) Transform(ctx context.Context, s schema.ExportedSchema, refresh bool) (derivation.Payload, error) {
	id, err := s.ID()
	if err != nil {
		return derivation.Payload{}, err
	}

	hooks := observability.Pipeline()
	hooks.OnTransformStart(ctx, id)
	start := time.Now()

	var p derivation.Payload
	err = c.base.Cached(ctx, c.keyer.TransformKey(id), "transform", refresh, &p, func() error {
		return c.fetchPayload(ctx, s, &p)
	})
	hooks.OnTransformComplete(ctx, id, len(p.Nodos), time.Since(start), err)
	if err != nil {
		return derivation.Payload{}, err
	}
	return p, nil
}

func (c *Client) fetchPayload(ctx context.Context, s schema.ExportedSchema, p *derivation.Payload) error {
	resp, err := c.base.PostJSON(ctx, c.url(pathConvert), s)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "conversion service unreachable")
	}
	if !resp.OK() {
		se := &ServiceError{Status: resp.Status, Messages: flatten(resp.Body)}
		return errors.Wrap(errors.ErrCodeSchemaRejected, se, "the query could not be converted")
	}
	payload, err := derivation.ParsePayload(resp.Body)
	if err != nil {
		return err
	}
	*p = payload
	return nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + path
}

// flatten extracts service messages from a body. Bodies without a message
// list yield an empty slice.
func flatten(body []byte) []string {
	var b messagesBody
	if err := json.Unmarshal(body, &b); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(b.Mensajes))
	for _, m := range b.Mensajes {
		out = append(out, m.String())
	}
	return out
}
