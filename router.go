package pinkit

import (
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/paho"

	"github.com/hubertat/pinkit/mqtt"
)

const commandSegment = "command"
const statusSegment = "status"
const defaultTopicPrefix = "fpga"

// CommandRouter turns bus messages into coordinator calls and echoes
// accepted commands back on the matching status topic.
//
// The echo carries the received payload verbatim, whether or not the
// driver call succeeded: it acknowledges the command as received, not
// as physically applied. Only commands for unknown lines get no echo.
type CommandRouter struct {
	coordinator *Coordinator
	publisher   mqtt.Publisher
	prefix      string
	logger      *log.Logger
}

func NewCommandRouter(coordinator *Coordinator, publisher mqtt.Publisher, prefix string, logger *log.Logger) *CommandRouter {
	if len(prefix) == 0 {
		prefix = defaultTopicPrefix
	}
	return &CommandRouter{
		coordinator: coordinator,
		publisher:   publisher,
		prefix:      prefix,
		logger:      logger,
	}
}

// Handlers returns one exact-topic mqtt handler per registered line.
func (cr *CommandRouter) Handlers() (handlers []mqtt.MqttHandler) {
	for _, entry := range cr.coordinator.Registry().Entries() {
		handlers = append(handlers, &LineHandler{
			router: cr,
			topic:  strings.Join([]string{cr.prefix, commandSegment, entry.Group, entry.Line}, "/"),
		})
	}
	return
}

// LineHandler subscribes one command topic and forwards its publishes
// to the router.
type LineHandler struct {
	router *CommandRouter
	topic  string
}

func (lh *LineHandler) MqttSubscribeTopic() string {
	return lh.topic
}

func (lh *LineHandler) MqttHandle(pub *paho.Publish) {
	lh.router.Route(pub.Topic, pub.Payload)
}

// Route handles one inbound message. The topic is re-checked against
// the <prefix>/command/<group>/<line> shape even though subscriptions
// are exact: the broker is not trusted to deliver only what was asked
// for.
func (cr *CommandRouter) Route(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != cr.prefix || parts[1] != commandSegment {
		cr.logger.Warn("dropping message with unexpected topic", "topic", topic)
		return
	}
	group, line := parts[2], parts[3]

	cr.logger.Debug("received command", "topic", topic, "payload", string(payload))

	err := cr.coordinator.Apply(group, line, parsePayload(payload))
	if errors.Is(err, ErrLineNotFound) {
		return
	}

	statusTopic := strings.Join([]string{cr.prefix, statusSegment, group, line}, "/")
	err = cr.publisher.Publish(statusTopic, payload)
	if err != nil {
		cr.logger.Error("failed to publish status echo", "topic", statusTopic, "err", err)
	}
}

// parsePayload reads command payloads the lenient way the original
// controller did: trimmed, case-insensitive "true" means ON, anything
// else (including typos like "1" or "yes") means OFF.
func parsePayload(payload []byte) bool {
	return strings.EqualFold(strings.TrimSpace(string(payload)), "true")
}
