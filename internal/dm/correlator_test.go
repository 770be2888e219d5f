package dm

import (
	"testing"

	"github.com/swuota-server/swuota-server/pkg/syncml"
)

func statusNode(cmdRef, code string) *syncml.Node {
	return syncml.New("Status").Add(
		syncml.Text("CmdRef", cmdRef),
		syncml.Text("Data", code),
	)
}

func resultsNode(cmdRef string, items ...string) *syncml.Node {
	n := syncml.New("Results").Add(syncml.Text("CmdRef", cmdRef))
	for _, item := range items {
		n.Add(syncml.New("Item").Add(syncml.Text("Data", item)))
	}
	return n
}

func TestCorrelatorRoundTrip(t *testing.T) {
	c := NewCorrelator()
	c.Bind("5", "k")

	c.Observe("Status", "5", statusNode("5", "200"))
	c.Observe("Results", "5", resultsNode("5", "x"))

	results := c.Collect()
	r := results["k"]
	if r == nil {
		t.Fatalf("expected result for key k, got %v", results)
	}
	if !r.HasCode || r.Code != 200 {
		t.Fatalf("expected code 200, got %+v", r)
	}
	if len(r.Items) != 1 || r.Items[0].TextAt("Data") != "x" {
		t.Fatalf("unexpected items: %+v", r.Items)
	}
}

func TestCorrelatorIgnoresUnbound(t *testing.T) {
	c := NewCorrelator()
	c.Bind("1", "k")

	c.Observe("Status", "2", statusNode("2", "200"))
	c.Observe("Results", "", resultsNode("", "x"))

	if got := c.Collect(); len(got) != 0 {
		t.Fatalf("expected no results, got %v", got)
	}
}

func TestCorrelatorConcatenatesResults(t *testing.T) {
	c := NewCorrelator()
	c.Bind("1", "k")
	c.Bind("2", "k")

	c.Observe("Results", "1", resultsNode("1", "a", "b"))
	c.Observe("Results", "2", resultsNode("2", "c"))

	r := c.Collect()["k"]
	if r == nil || len(r.Items) != 3 {
		t.Fatalf("expected 3 items, got %+v", r)
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := r.Items[i].TextAt("Data"); got != want {
			t.Fatalf("item %d: expected %q, got %q", i, want, got)
		}
	}
}

func TestCorrelatorBadStatusCodeIgnored(t *testing.T) {
	c := NewCorrelator()
	c.Bind("1", "k")

	c.Observe("Status", "1", statusNode("1", "not-a-code"))

	r := c.Collect()["k"]
	if r == nil {
		t.Fatalf("expected an entry for k")
	}
	if r.HasCode {
		t.Fatalf("expected no code, got %d", r.Code)
	}
}

func TestCorrelatorResetClearsBindings(t *testing.T) {
	c := NewCorrelator()
	c.Bind("1", "k")
	c.Reset()

	c.Observe("Status", "1", statusNode("1", "200"))
	if got := c.Collect(); len(got) != 0 {
		t.Fatalf("expected stale binding to be gone, got %v", got)
	}
}
