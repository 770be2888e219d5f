package dm

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/swuota-server/swuota-server/internal/config"
	"github.com/swuota-server/swuota-server/internal/events"
	"github.com/swuota-server/swuota-server/internal/models"
	"github.com/swuota-server/swuota-server/pkg/syncml"
)

// State is the session's position in the scripted interaction.
type State int

const (
	StateWaitForReady State = iota
	StateDiscoverAll
	StateConfirmUpgrade
	StateFakeUpgrade
	StateDone
)

func (s State) String() string {
	switch s {
	case StateWaitForReady:
		return "awaiting-device-ready"
	case StateDiscoverAll:
		return "discover-all"
	case StateConfirmUpgrade:
		return "confirm-upgrade"
	case StateFakeUpgrade:
		return "fake-upgrade"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Logical result keys and management-tree URIs the state machine uses.
const (
	keySwVersion      = "sw_version"
	keyDiscoverResult = "discover_result"
	keyUpgradeConfirm = "upgrade_confirm"

	uriSwVersion = "./DevDetail/SwV"
	uriTreeRoot  = "."
)

// Session is the per-device protocol state. One inbound message is
// processed end to end under the session mutex; concurrent messages for the
// same device serialize, different devices run independently.
type Session struct {
	mu sync.Mutex

	// Immutable after creation.
	id       uuid.UUID
	users    map[string]config.Credential
	prompts  config.PromptsConfig
	recorder events.Recorder

	createdAt time.Time
	lastSeen  time.Time

	// Identity asserted by the device, refreshed on reinitialization.
	deviceID string
	login    string
	serverID string
	user     *config.Credential

	sessionID   string
	clientMsgID string
	serverMsgID int

	state         State
	authenticated bool
	nonce         []byte

	maxMsgSize int
	maxObjSize int

	props      map[string]string
	correlator *Correlator
}

func newSession(deviceID, login string, users map[string]config.Credential, prompts config.PromptsConfig, recorder events.Recorder) *Session {
	if recorder == nil {
		recorder = events.NopRecorder{}
	}
	return &Session{
		id:         uuid.New(),
		users:      users,
		prompts:    prompts,
		recorder:   recorder,
		createdAt:  time.Now(),
		lastSeen:   time.Now(),
		deviceID:   deviceID,
		login:      login,
		props:      make(map[string]string),
		correlator: NewCorrelator(),
	}
}

// ID returns the registry handle for this session.
func (s *Session) ID() uuid.UUID { return s.id }

// Process handles one decoded inbound message and returns the outbound
// document. The caller holds the session mutex.
func (s *Session) Process(ctx context.Context, root *syncml.Node) *syncml.Node {
	hdr := root.First(syncml.ElemSyncHdr)
	body := root.First(syncml.ElemSyncBody)

	s.lastSeen = time.Now()
	s.clientMsgID = hdr.TextAt("MsgID")

	// A changed session identifier means the device started over: all
	// per-session bookkeeping resets before anything else runs.
	if s.sessionID != hdr.TextAt("SessionID") {
		s.reinit(ctx, hdr)
	}

	resp := NewResponseBuilder(s)

	if s.user == nil {
		// Unknown login: answer the header with 401 and process nothing
		// else this message.
		log.Warn().
			Str("device", s.deviceID).
			Str("login", s.login).
			Msg("Message from unknown user")
		s.record(ctx, models.EventTypeUnknownUser, models.EventLevelWarning, "login does not resolve to a credential record", nil)
		resp.AuthStatus(syncml.StatusUnauthorized, "", "")
		resp.Final()
		return resp.Build()
	}

	s.captureNonce(body)
	s.processAuth(ctx, hdr, resp)

	results := s.walkCommands(ctx, body, resp)
	s.runStateMachine(ctx, resp, results)

	resp.Final()
	return resp.Build()
}

// reinit starts the session over for a new device-asserted session
// identifier. Counters, state, properties and correlation bindings reset;
// the credential record is re-resolved from the asserted login.
func (s *Session) reinit(ctx context.Context, hdr *syncml.Node) {
	s.sessionID = hdr.TextAt("SessionID")
	s.serverID = hdr.TextAt("Target", "LocURI")
	s.deviceID = hdr.TextAt("Source", "LocURI")
	s.login = hdr.TextAt("Source", "LocName")

	s.state = StateWaitForReady
	s.serverMsgID = 0
	s.authenticated = false
	s.nonce = nil
	s.props = make(map[string]string)
	s.correlator.Reset()

	if u, ok := s.users[s.login]; ok {
		s.user = &u
	} else {
		s.user = nil
	}

	s.maxMsgSize, _ = strconv.Atoi(hdr.TextAt("Meta", "MaxMsgSize"))
	s.maxObjSize, _ = strconv.Atoi(hdr.TextAt("Meta", "MaxObjSize"))

	evt := log.Info().
		Str("device", s.deviceID).
		Str("session", s.sessionID)
	if s.user != nil {
		evt.Str("login", s.user.Login).Msg("New session initiated")
	} else {
		evt.Str("login", s.login).Msg("New session initiated by unknown user")
	}
	s.record(ctx, models.EventTypeSessionStart, models.EventLevelInfo, "session initiated",
		models.Variables{"sessionId": s.sessionID})
}

// walkCommands scans the inbound body in order: Replace items merge into
// the property map, Status/Results feed the correlator, and every command
// other than Status and Final is acknowledged with Status 200. Returns the
// correlated results and rolls the correlation horizon forward.
func (s *Session) walkCommands(ctx context.Context, body *syncml.Node, resp *ResponseBuilder) map[string]*CommandResult {
	for _, cmd := range body.Children {
		switch cmd.Name {
		case syncml.CmdReplace:
			for _, item := range cmd.All("Item") {
				key := item.TextAt("Source", "LocURI")
				value := item.TextAt("Data")
				if key == "" {
					continue
				}
				log.Info().
					Str("device", s.deviceID).
					Str("key", key).
					Str("value", value).
					Msg("Property replace")
				s.props[key] = value
				s.record(ctx, models.EventTypePropertyReplace, models.EventLevelInfo, "device reported property",
					models.Variables{"key": key, "value": value})
			}
		case syncml.CmdResults, syncml.CmdStatus:
			s.correlator.Observe(cmd.Name, cmd.TextAt("CmdRef"), cmd)
		}

		if cmd.Name != syncml.CmdFinal && cmd.Name != syncml.CmdStatus {
			resp.Status(syncml.StatusOK, cmd.Name, cmd)
		}
	}

	results := s.correlator.Collect()
	s.correlator.Reset()
	return results
}

// runStateMachine runs the current state handler. A handler may request
// immediate re-evaluation after advancing, in which case the new state runs
// once more in the same pass with an empty result set. This compresses the
// interaction: one device round trip can satisfy a condition and already
// carry the next state's command.
func (s *Session) runStateMachine(ctx context.Context, resp *ResponseBuilder, results map[string]*CommandResult) {
	for {
		next, rerun := s.step(ctx, resp, results)
		if next != s.state {
			log.Info().
				Str("device", s.deviceID).
				Str("from", s.state.String()).
				Str("to", next.String()).
				Msg("Session state change")
			s.record(ctx, models.EventTypeStateChange, models.EventLevelInfo, "state transition",
				models.Variables{"from": s.state.String(), "to": next.String()})
			s.state = next
		}
		if !rerun {
			return
		}
		results = map[string]*CommandResult{}
	}
}

func (s *Session) step(ctx context.Context, resp *ResponseBuilder, results map[string]*CommandResult) (State, bool) {
	switch s.state {
	case StateWaitForReady:
		return s.stepWaitForReady(resp, results)
	case StateDiscoverAll:
		return s.stepDiscoverAll(resp, results)
	case StateConfirmUpgrade:
		return s.stepConfirmUpgrade(ctx, resp, results)
	case StateFakeUpgrade:
		return s.stepFakeUpgrade(resp)
	case StateDone:
		return StateDone, false
	}
	return s.state, false
}

func (s *Session) stepWaitForReady(resp *ResponseBuilder, results map[string]*CommandResult) (State, bool) {
	if r := results[keySwVersion]; r != nil && r.HasCode && r.Code == syncml.StatusOK && len(r.Items) > 0 {
		version := r.Items[0].TextAt("Data")
		s.props[uriSwVersion] = version
		log.Info().
			Str("device", s.deviceID).
			Str("version", version).
			Msg("Device is ready")
		return StateConfirmUpgrade, true
	}

	log.Debug().Str("device", s.deviceID).Msg("Waiting for device ready")
	s.bindResult(resp.Get(uriSwVersion), keySwVersion)
	return StateWaitForReady, false
}

func (s *Session) stepConfirmUpgrade(ctx context.Context, resp *ResponseBuilder, results map[string]*CommandResult) (State, bool) {
	if r := results[keyUpgradeConfirm]; r != nil {
		if r.HasCode && r.Code == syncml.StatusOK {
			s.record(ctx, models.EventTypeUpgradeConfirmed, models.EventLevelInfo, "device confirmed upgrade", nil)
			return StateFakeUpgrade, true
		}
		s.record(ctx, models.EventTypeUpgradeDeclined, models.EventLevelInfo, "device declined upgrade",
			models.Variables{"code": strconv.Itoa(r.Code)})
		return StateDone, false
	}

	text := strings.Replace(s.prompts.ConfirmText, "%s", nextVersion(s.props[uriSwVersion]), 1)
	s.bindResult(resp.Confirm(text, s.prompts.ConfirmMinDisplay), keyUpgradeConfirm)
	return StateConfirmUpgrade, false
}

func (s *Session) stepFakeUpgrade(resp *ResponseBuilder) (State, bool) {
	resp.Alert(s.prompts.AlertText, s.prompts.AlertMinDisplay)
	return StateDone, false
}

// stepDiscoverAll iteratively walks the management tree: interior nodes
// report their children as a slash-delimited listing, each of which is
// fetched under the same result key.
func (s *Session) stepDiscoverAll(resp *ResponseBuilder, results map[string]*CommandResult) (State, bool) {
	r := results[keyDiscoverResult]
	if r == nil {
		log.Debug().Str("device", s.deviceID).Msg("Waiting for discovery")
		s.bindResult(resp.Get(uriTreeRoot), keyDiscoverResult)
		return StateDiscoverAll, false
	}

	for _, item := range r.Items {
		format := item.TextAt("Meta", "Format")
		data := item.TextAt("Data")
		root := item.TextAt("Source", "LocURI")

		if format != "node" || data == "" {
			log.Debug().
				Str("device", s.deviceID).
				Str("node", root).
				Str("format", format).
				Str("data", data).
				Msg("Discovered leaf")
			continue
		}

		for _, child := range strings.Split(data, "/") {
			s.bindResult(resp.Get(root+"/"+child), keyDiscoverResult)
		}
	}
	return StateDiscoverAll, false
}

// bindResult links an issued command's identifier to a logical result key.
func (s *Session) bindResult(cmd *syncml.Node, key string) {
	s.correlator.Bind(cmd.TextAt("CmdID"), key)
}

// nextVersion renders the firmware version offered to the device: the
// reported value interpreted numerically, plus one. "1.0" offers "2".
// An unparsable version counts from zero.
func nextVersion(current string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(current), 64)
	if err != nil {
		v = 0
	}
	return strconv.FormatFloat(v+1, 'f', -1, 64)
}

func (s *Session) record(ctx context.Context, typ models.EventType, level models.EventLevel, description string, details models.Variables) {
	s.recorder.Record(ctx, events.New(s.deviceID, s.login, typ, level, description, details))
}

// StartDiscovery switches the session onto the diagnostic tree-walk path.
// The walk begins on the device's next message.
func (s *Session) StartDiscovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDiscoverAll
}

// Info returns a point-in-time snapshot for the ops API.
func (s *Session) Info() *models.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	props := make(map[string]string, len(s.props))
	for k, v := range s.props {
		props[k] = v
	}

	return &models.SessionInfo{
		ID:            s.id,
		CreatedAt:     s.createdAt,
		LastSeen:      s.lastSeen,
		DeviceID:      s.deviceID,
		Login:         s.login,
		ServerID:      s.serverID,
		SessionID:     s.sessionID,
		State:         s.state.String(),
		Authenticated: s.authenticated,
		KnownUser:     s.user != nil,
		ServerMsgID:   s.serverMsgID,
		MaxMsgSize:    s.maxMsgSize,
		MaxObjSize:    s.maxObjSize,
		Properties:    props,
	}
}
