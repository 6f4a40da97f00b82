package luaruntime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/morezero/bridgekit/pkg/bridge"
)

const bridgeIntegrationTestPrefix = "luaruntime:bridge_integration_test"

const pageScript = `
bridgekit.on("bridgekit", function(detail)
  if detail.topic == "textFromNative" then
    bridgekit.post({ topic = "myTopic", data = { receivedText = "Hello " .. detail.data.text } })
  elseif detail.topic == "error" or detail.data.errors ~= nil then
    last_error = detail.data.errors[1]
    last_error_topic = detail.topic
  end
end)
`

func newBridgedRuntime(t *testing.T) (*Runtime, *bridge.Bridge) {
	t.Helper()
	rt := newRuntime(t)
	b := bridge.New(rt, bridge.WithScriptBuilder(Script))
	rt.SetIntake(b.HandleReceived)
	if _, err := rt.Eval(pageScript); err != nil {
		t.Fatalf("%s - page script failed: %v", bridgeIntegrationTestPrefix, err)
	}
	return rt, b
}

func TestBridge_GreetFromLua(t *testing.T) {
	rt, b := newBridgedRuntime(t)

	names := make(chan string, 1)
	bridge.Register(b, bridge.Topic{Name: "greet"}, func(p struct {
		Name string `json:"name"`
	}, _ *bridge.Bridge) {
		names <- p.Name
	})

	if _, err := rt.Eval(`bridgekit.post({ topic = "greet", data = { name = "Ana" } })`); err != nil {
		t.Fatalf("%s - post failed: %v", bridgeIntegrationTestPrefix, err)
	}

	select {
	case got := <-names:
		if got != "Ana" {
			t.Errorf("%s - name = %q, want Ana", bridgeIntegrationTestPrefix, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - handler not invoked", bridgeIntegrationTestPrefix)
	}

	if got, _ := rt.Eval("return last_error"); got != nil {
		t.Errorf("%s - unexpected error envelope: %v", bridgeIntegrationTestPrefix, got)
	}
}

func TestBridge_RoundTripHostToLuaAndBack(t *testing.T) {
	_, b := newBridgedRuntime(t)

	replies := make(chan string, 1)
	bridge.Register(b, bridge.Topic{Name: "myTopic"}, func(p struct {
		ReceivedText string `json:"receivedText"`
	}, _ *bridge.Bridge) {
		replies <- p.ReceivedText
	})

	responses := make(chan bridge.Response, 1)
	b.Post(map[string]string{"text": "Ana"}, bridge.Topic{Name: "textFromNative"}, func(r bridge.Response) {
		responses <- r
	})

	select {
	case r := <-responses:
		if !r.OK() || r.Value() != 1 {
			t.Errorf("%s - response = %+v, want Success(1)", bridgeIntegrationTestPrefix, r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - post did not complete", bridgeIntegrationTestPrefix)
	}

	select {
	case got := <-replies:
		if got != "Hello Ana" {
			t.Errorf("%s - reply = %q, want %q", bridgeIntegrationTestPrefix, got, "Hello Ana")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - reply handler not invoked", bridgeIntegrationTestPrefix)
	}
}

func TestBridge_ErrorEnvelopeReachesLua(t *testing.T) {
	rt, _ := newBridgedRuntime(t)

	if _, err := rt.Eval(`bridgekit.post({ topic = "nope", data = {} })`); err != nil {
		t.Fatalf("%s - post failed: %v", bridgeIntegrationTestPrefix, err)
	}

	// The error report is queued behind the post; wait for it to be dispatched.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := rt.Eval("return last_error")
		if err != nil {
			t.Fatalf("%s - eval failed: %v", bridgeIntegrationTestPrefix, err)
		}
		if got != nil {
			b, _ := json.Marshal(got)
			if string(b) != `{"errorCode":3,"message":"Missing message handler for topic: nope"}` {
				t.Errorf("%s - last_error = %s", bridgeIntegrationTestPrefix, b)
			}
			topic, _ := rt.Eval("return last_error_topic")
			if topic != "nope" {
				t.Errorf("%s - error topic = %v, want nope", bridgeIntegrationTestPrefix, topic)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s - error envelope never reached Lua", bridgeIntegrationTestPrefix)
}
