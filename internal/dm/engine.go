// Package dm implements the OMA-DM session protocol engine: per-device
// session state, header authentication, command correlation across
// exchanges, and the scripted upgrade interaction.
package dm

import (
	"context"
	"errors"
	"fmt"

	"github.com/swuota-server/swuota-server/pkg/crypto"
	"github.com/swuota-server/swuota-server/pkg/syncml"
)

// ErrBadMessage marks an inbound body the codec or the engine could not
// make sense of. The transport answers these with a client error and no
// session is touched.
var ErrBadMessage = errors.New("malformed syncml message")

// Engine drives one inbound message through decode, session resolution,
// protocol processing and encode.
type Engine struct {
	codec    syncml.Codec
	registry *Registry
}

// NewEngine creates an engine over the given codec and session registry.
func NewEngine(codec syncml.Codec, registry *Registry) *Engine {
	return &Engine{codec: codec, registry: registry}
}

// Registry exposes the session store for the ops API.
func (e *Engine) Registry() *Registry { return e.registry }

// HandleMessage processes one device POST body end to end and returns the
// encoded response plus the integrity MAC header value ("" when no nonce is
// active). The session stays locked from processing through MAC
// computation so concurrent messages for one device serialize.
func (e *Engine) HandleMessage(ctx context.Context, body []byte) ([]byte, string, error) {
	doc, err := e.codec.Decode(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	hdr, err := validate(doc)
	if err != nil {
		return nil, "", err
	}

	deviceID := hdr.TextAt("Source", "LocURI")
	login := hdr.TextAt("Source", "LocName")

	sess := e.registry.GetOrCreate(deviceID, login)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	respDoc := sess.Process(ctx, doc)

	encoded, err := e.codec.Encode(respDoc)
	if err != nil {
		return nil, "", fmt.Errorf("encode response: %w", err)
	}

	return encoded, sess.ResponseMAC(crypto.MD5(encoded)), nil
}

// validate checks the minimal document shape the engine relies on and
// returns the header.
func validate(doc *syncml.Node) (*syncml.Node, error) {
	if doc.Name != syncml.ElemSyncML {
		return nil, fmt.Errorf("%w: root element is %s", ErrBadMessage, doc.Name)
	}
	hdr := doc.First(syncml.ElemSyncHdr)
	if hdr == nil {
		return nil, fmt.Errorf("%w: missing SyncHdr", ErrBadMessage)
	}
	if doc.First(syncml.ElemSyncBody) == nil {
		return nil, fmt.Errorf("%w: missing SyncBody", ErrBadMessage)
	}
	if hdr.TextAt("Source", "LocURI") == "" {
		return nil, fmt.Errorf("%w: missing source locator", ErrBadMessage)
	}
	if hdr.TextAt("SessionID") == "" {
		return nil, fmt.Errorf("%w: missing session identifier", ErrBadMessage)
	}
	return hdr, nil
}
