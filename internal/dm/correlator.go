package dm

import (
	"strconv"
	"strings"

	"github.com/swuota-server/swuota-server/pkg/syncml"
)

// CommandResult accumulates the device's reply to one bound command: the
// Status code (absent until a Status arrives) and the Results items in
// arrival order. Multi-message replies concatenate.
type CommandResult struct {
	Code    int
	HasCode bool
	Items   []*syncml.Node
}

// Correlator links command identifiers issued in the previous outbound
// message to the logical result keys the state machine cares about. The
// binding table only ever describes the immediately preceding message:
// Reset is called once per inbound message, after Collect, before the state
// handlers bind commands for the next one.
type Correlator struct {
	bindings map[string]string
	results  map[string]*CommandResult
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{
		bindings: make(map[string]string),
		results:  make(map[string]*CommandResult),
	}
}

// Bind records that replies referencing cmdID contribute to key.
func (c *Correlator) Bind(cmdID, key string) {
	if cmdID == "" {
		return
	}
	c.bindings[cmdID] = key
}

// Observe feeds one inbound Status or Results command. A CmdRef with no
// binding is silently ignored; those are replies the state machine has no
// interest in, such as the implicit Status for Final.
func (c *Correlator) Observe(name, cmdRef string, cmd *syncml.Node) {
	key, ok := c.bindings[cmdRef]
	if !ok {
		return
	}

	r := c.results[key]
	if r == nil {
		r = &CommandResult{}
		c.results[key] = r
	}

	switch name {
	case syncml.CmdResults:
		r.Items = append(r.Items, cmd.All("Item")...)
	case syncml.CmdStatus:
		code, err := strconv.Atoi(strings.TrimSpace(cmd.TextAt("Data")))
		if err != nil {
			return
		}
		r.Code = code
		r.HasCode = true
	}
}

// Collect returns everything observed since the last Reset.
func (c *Correlator) Collect() map[string]*CommandResult {
	return c.results
}

// Reset clears the binding table and the accumulated results.
func (c *Correlator) Reset() {
	c.bindings = make(map[string]string)
	c.results = make(map[string]*CommandResult)
}
