package ws_test

import (
	"encoding/json"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/neurodive/neurodive-server/internal/neural"
	"github.com/neurodive/neurodive-server/internal/sim"
	"github.com/neurodive/neurodive-server/internal/visibility"
	"github.com/neurodive/neurodive-server/internal/ws"
)

func TestSchemas_ValidateWireTypes(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(decoded); err != nil {
			t.Fatalf("validate: %v\npayload: %s", err, data)
		}
	}

	messageSchema := compile("message.schema.json")
	eventSchema := compile("event.schema.json")
	stateSchema := compile("state.schema.json")
	networkSchema := compile("network.schema.json")

	validate(messageSchema, ws.NewErrorMessage("something broke"))

	msg, err := ws.NewMessage(ws.TypeEvent, sim.Event{Kind: sim.EventCaught, Tick: 42, Node: "n3"})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	validate(messageSchema, msg)

	validate(eventSchema, sim.Event{Kind: sim.EventCaught, Tick: 42, Node: "n3"})
	validate(eventSchema, sim.Event{Kind: sim.EventEdgeState, Tick: 7, Edge: "e12", State: "blocked"})
	validate(eventSchema, sim.Event{
		Kind: sim.EventVisibility,
		Tick: 1,
		Diff: &visibility.Diff{
			ShownNodes:  []neural.NodeID{"n1", "n2"},
			HiddenEdges: []neural.EdgeID{"e4"},
		},
	})

	validate(networkSchema, neural.Generate(neural.DefaultGenConfig(), rand.New(rand.NewSource(1))))

	var state any
	if err := json.Unmarshal([]byte(`{
	  "tick": 120,
	  "clock": 6.0,
	  "round": 2,
	  "rounds_won": 1,
	  "catches": 0,
	  "explorer": "n4",
	  "encounter_pending": false,
	  "pursuer": {
	    "at": "n9",
	    "state": "pursuing",
	    "pos": {"x": 1.5, "y": 0.0, "z": -2.25},
	    "hack_target": "n7"
	  }
	}`), &state); err != nil {
		t.Fatalf("unmarshal state sample: %v", err)
	}
	if err := stateSchema.Validate(state); err != nil {
		t.Fatalf("validate state sample: %v", err)
	}
}
