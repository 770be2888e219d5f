package dm

import (
	"strconv"

	"github.com/swuota-server/swuota-server/pkg/syncml"
)

// ResponseBuilder assembles one outbound message for a session. Command
// identifiers are assigned at emission time, strictly increasing from 1
// across all command kinds. One builder per inbound message.
type ResponseBuilder struct {
	sess      *Session
	nextCmdID int
	commands  []*syncml.Node
	final     bool
}

// NewResponseBuilder creates a builder bound to the session.
func NewResponseBuilder(sess *Session) *ResponseBuilder {
	return &ResponseBuilder{sess: sess}
}

// Command appends a command under name with the next command identifier and
// the given children, returning the command node so callers can bind its
// CmdID to a result key.
func (b *ResponseBuilder) Command(name string, children ...*syncml.Node) *syncml.Node {
	b.nextCmdID++
	cmd := syncml.New(name).Add(syncml.Text("CmdID", strconv.Itoa(b.nextCmdID)))
	cmd.Add(children...)
	b.commands = append(b.commands, cmd)
	return cmd
}

// Get issues a Get for the given management-tree URI.
func (b *ResponseBuilder) Get(uri string) *syncml.Node {
	return b.Command(syncml.CmdGet,
		syncml.New("Item").Add(
			syncml.New("Target").Add(syncml.Text("LocURI", uri)),
		),
	)
}

// Alert issues a display alert (code 1100). The optional parameter item
// (e.g. a minimum display time) precedes the text item on the wire.
func (b *ResponseBuilder) Alert(text, optional string) *syncml.Node {
	return b.alertCommand(syncml.AlertDisplay, text, optional)
}

// Confirm issues a confirmation alert (code 1101).
func (b *ResponseBuilder) Confirm(text, optional string) *syncml.Node {
	return b.alertCommand(syncml.AlertConfirm, text, optional)
}

func (b *ResponseBuilder) alertCommand(code int, text, optional string) *syncml.Node {
	return b.Command(syncml.CmdAlert,
		syncml.Text("Data", strconv.Itoa(code)),
		syncml.New("Item").Add(syncml.Text("Data", optional)),
		syncml.New("Item").Add(syncml.Text("Data", text)),
	)
}

// Choice issues a single-choice alert (code 1103) with one item per entry.
func (b *ResponseBuilder) Choice(items []string) *syncml.Node {
	children := []*syncml.Node{syncml.Text("Data", strconv.Itoa(syncml.AlertChoice))}
	for _, item := range items {
		children = append(children, syncml.New("Item").Add(syncml.Text("Data", item)))
	}
	return b.Command(syncml.CmdAlert, children...)
}

// Status acknowledges an inbound command, echoing its identifier and kind.
func (b *ResponseBuilder) Status(code int, refName string, refCmd *syncml.Node) *syncml.Node {
	return b.Command(syncml.CmdStatus,
		syncml.Text("Data", strconv.Itoa(code)),
		syncml.Text("MsgRef", b.sess.clientMsgID),
		syncml.Text("CmdRef", refCmd.TextAt("CmdID")),
		syncml.Text("Cmd", refName),
	)
}

// AuthStatus answers the inbound header (CmdRef 0, Cmd SyncHdr). When
// chalType is non-empty a challenge block of that type is attached, plus a
// NextNonce when provided.
func (b *ResponseBuilder) AuthStatus(code int, chalType, nextNonce string) *syncml.Node {
	children := []*syncml.Node{
		syncml.Text("MsgRef", b.sess.clientMsgID),
		syncml.Text("CmdRef", "0"),
		syncml.Text("Cmd", syncml.ElemSyncHdr),
		syncml.Text("TargetRef", b.sess.serverID),
		syncml.Text("SourceRef", b.sess.deviceID),
		syncml.Text("Data", strconv.Itoa(code)),
	}

	if chalType != "" {
		meta := syncml.New("Meta").Add(
			syncml.Text("Type", chalType).SetAttr("xmlns", syncml.NamespaceMetInf),
			syncml.Text("Format", "b64").SetAttr("xmlns", syncml.NamespaceMetInf),
		)
		if nextNonce != "" {
			meta.Add(syncml.Text("NextNonce", nextNonce).SetAttr("xmlns", syncml.NamespaceMetInf))
		}
		children = append(children, syncml.New("Chal").Add(meta))
	}

	return b.Command(syncml.CmdStatus, children...)
}

// Final appends the terminal marker to the message body.
func (b *ResponseBuilder) Final() {
	b.final = true
}

// Build increments the session's outbound message counter and renders the
// full message. Identifiers are assigned exactly once; a builder must not
// be reused after Build.
func (b *ResponseBuilder) Build() *syncml.Node {
	b.sess.serverMsgID++

	hdr := syncml.New(syncml.ElemSyncHdr).Add(
		syncml.Text("VerDTD", syncml.VerDTD),
		syncml.Text("VerProto", syncml.VerProto),
		syncml.Text("SessionID", b.sess.sessionID),
		syncml.Text("MsgID", strconv.Itoa(b.sess.serverMsgID)),
		syncml.New("Target").Add(syncml.Text("LocURI", b.sess.deviceID)),
		syncml.New("Source").Add(syncml.Text("LocURI", b.sess.serverID)),
	)

	body := syncml.New(syncml.ElemSyncBody).Add(b.commands...)
	if b.final {
		body.Add(syncml.New(syncml.CmdFinal))
	}

	root := syncml.New(syncml.ElemSyncML).SetAttr("xmlns", syncml.NamespaceSyncML)
	return root.Add(hdr, body)
}
