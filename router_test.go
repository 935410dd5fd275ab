package pinkit

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/hubertat/pinkit/drivers"
)

type capturePublisher struct {
	topics   []string
	payloads []string
}

func (cp *capturePublisher) Publish(topic string, payload []byte) error {
	cp.topics = append(cp.topics, topic)
	cp.payloads = append(cp.payloads, string(payload))
	return nil
}

func setupRouterForTest(t testing.TB) (*CommandRouter, *drivers.MockIoDriver, *capturePublisher) {
	t.Helper()

	co, md := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18, "nate": 19},
	})
	err := co.Initialize()
	if err != nil {
		t.Fatalf("Initialize returned err: %v", err)
	}
	md.ResetCalls()

	publisher := &capturePublisher{}
	return NewCommandRouter(co, publisher, "", log.New(io.Discard)), md, publisher
}

func TestRouteCommandScenario(t *testing.T) {
	router, md, publisher := setupRouterForTest(t)

	router.Route("fpga/command/fpga1/dan", []byte("True"))

	calls := md.SetCalls()
	if len(calls) != 1 || calls[0].Pin != 18 || calls[0].Level != drivers.Low {
		t.Errorf("expected setLevel(18, Low), got %+v", calls)
	}
	assertState(t, router.coordinator, "fpga1", "dan", true)

	if len(publisher.topics) != 1 || publisher.topics[0] != "fpga/status/fpga1/dan" {
		t.Errorf("got status topics %v want [fpga/status/fpga1/dan]", publisher.topics)
	}
	if publisher.payloads[0] != "True" {
		t.Errorf("status echo must be verbatim, got %q", publisher.payloads[0])
	}

	router.Route("fpga/command/fpga1/dan", []byte("false"))

	calls = md.SetCalls()
	if len(calls) != 2 || calls[1].Pin != 18 || calls[1].Level != drivers.High {
		t.Errorf("expected setLevel(18, High), got %+v", calls)
	}
	assertState(t, router.coordinator, "fpga1", "dan", false)
}

func TestRouteUnknownGroup(t *testing.T) {
	router, md, publisher := setupRouterForTest(t)

	router.Route("fpga/command/fpga9/dan", []byte("true"))

	if len(md.SetCalls()) != 0 {
		t.Errorf("unknown group must cause zero driver calls, got %d", len(md.SetCalls()))
	}
	if len(publisher.topics) != 0 {
		t.Errorf("unknown group must not be echoed, got %v", publisher.topics)
	}
}

func TestRouteMalformedTopic(t *testing.T) {
	router, md, publisher := setupRouterForTest(t)

	for _, topic := range []string{
		"fpga/command/fpga1",
		"fpga/command/fpga1/dan/extra",
		"other/command/fpga1/dan",
		"fpga/status/fpga1/dan",
		"",
	} {
		router.Route(topic, []byte("true"))
	}

	if len(md.SetCalls()) != 0 {
		t.Errorf("malformed topics must cause zero driver calls, got %d", len(md.SetCalls()))
	}
	if len(publisher.topics) != 0 {
		t.Errorf("malformed topics must not be echoed, got %v", publisher.topics)
	}
}

func TestRouteLenientPayload(t *testing.T) {
	cases := []struct {
		payload string
		wantOn  bool
	}{
		{"true", true},
		{"True", true},
		{" TRUE\n", true},
		{"false", false},
		{"1", false},
		{"yes", false},
		{"ture", false},
		{"", false},
	}

	for _, c := range cases {
		t.Run(c.payload, func(t *testing.T) {
			router, md, _ := setupRouterForTest(t)

			router.Route("fpga/command/fpga1/dan", []byte(c.payload))

			wantLevel := drivers.High
			if c.wantOn {
				wantLevel = drivers.Low
			}
			calls := md.SetCalls()
			if len(calls) != 1 || calls[0].Level != wantLevel {
				t.Errorf("payload %q: got calls %+v want level %v", c.payload, calls, wantLevel)
			}
		})
	}
}

func TestRouteEchoesEvenOnDriverFailure(t *testing.T) {
	router, md, publisher := setupRouterForTest(t)

	md.FailSet(18, true)
	router.Route("fpga/command/fpga1/dan", []byte("true"))

	// echo acknowledges the command as received, not as applied
	if len(publisher.topics) != 1 || publisher.topics[0] != "fpga/status/fpga1/dan" {
		t.Errorf("driver failure must still echo, got %v", publisher.topics)
	}
	assertState(t, router.coordinator, "fpga1", "dan", false)
}

func TestHandlersCoverEveryLine(t *testing.T) {
	router, _, _ := setupRouterForTest(t)

	handlers := router.Handlers()

	want := map[string]bool{
		"fpga/command/fpga1/dan":  false,
		"fpga/command/fpga1/nate": false,
	}
	for _, h := range handlers {
		topic := h.MqttSubscribeTopic()
		if _, expected := want[topic]; !expected {
			t.Errorf("unexpected handler topic %s", topic)
			continue
		}
		want[topic] = true
	}
	for topic, seen := range want {
		if !seen {
			t.Errorf("missing handler for %s", topic)
		}
	}
}

func TestRouterCustomPrefix(t *testing.T) {
	co, _ := setupCoordinatorForTest(t, map[string]map[string]uint16{
		"fpga1": {"dan": 18},
	})
	co.Initialize()

	publisher := &capturePublisher{}
	router := NewCommandRouter(co, publisher, "lab", log.New(io.Discard))

	router.Route("lab/command/fpga1/dan", []byte("true"))
	if len(publisher.topics) != 1 || publisher.topics[0] != "lab/status/fpga1/dan" {
		t.Errorf("got %v want [lab/status/fpga1/dan]", publisher.topics)
	}

	// default prefix no longer matches
	router.Route("fpga/command/fpga1/dan", []byte("true"))
	if len(publisher.topics) != 1 {
		t.Errorf("non-matching prefix must be dropped, got %v", publisher.topics)
	}
}
