// Package syncml carries the generic SyncML document tree, the protocol
// constants of the DM 1.1 subset this server speaks, and the codecs that
// convert between the tree and the device's wire encoding.
package syncml

// Protocol and document constants (SyncML 1.1 / OMA-DM 1.1).
const (
	VerDTD   = "1.1"
	VerProto = "DM/1.1"

	NamespaceSyncML = "SYNCML:SYNCML1.1"
	NamespaceMetInf = "syncml:metinf"

	DocType = `SyncML PUBLIC "-//SYNCML//DTD SyncML 1.1//EN" "http://www.syncml.org/docs/syncml_represent_v11_20020213.dtd"`

	// ContentType is the media type devices POST and expect back.
	ContentType = "application/vnd.syncml.dm+wbxml"
)

// Command element names. Only this subset is understood.
const (
	ElemSyncML   = "SyncML"
	ElemSyncHdr  = "SyncHdr"
	ElemSyncBody = "SyncBody"

	CmdGet     = "Get"
	CmdAlert   = "Alert"
	CmdStatus  = "Status"
	CmdReplace = "Replace"
	CmdResults = "Results"
	CmdFinal   = "Final"
)

// Credential and challenge types.
const (
	AuthTypeBasic = "syncml:auth-basic"
	AuthTypeMAC   = "syncml:auth-MAC"
)

// Status codes used by the engine.
const (
	StatusOK           = 200
	StatusAuthAccepted = 212
	StatusUnauthorized = 401
	StatusAuthRequired = 407
)

// Alert codes.
const (
	AlertDisplay = 1100
	AlertConfirm = 1101
	AlertChoice  = 1103
)
