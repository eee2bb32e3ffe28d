package call

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/collectwise/collections-ai-platform/internal/agent"
	"github.com/collectwise/collections-ai-platform/internal/observability/metrics"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// Call-level tools. These act on the live call leg rather than the
// compliance state machine and so live here, next to the controller.
const (
	ToolEndCall                  agent.ToolName = "end_call"
	ToolTransferCall             agent.ToolName = "transfer_call"
	ToolDetectedAnsweringMachine agent.ToolName = "detected_answering_machine"
)

// Toolset is the full action vocabulary of one live call: the agent's
// compliance operations plus the terminal call-control actions. The
// reasoning engine invokes tools through Dispatch and never touches the
// telephony layer directly.
type Toolset struct {
	handle     *Handle
	controller *Controller
	metrics    *metrics.CallMetrics
	logger     *logging.Logger
}

// NewToolset binds a live call handle to its termination controller.
func NewToolset(h *Handle, controller *Controller, m *metrics.CallMetrics, logger *logging.Logger) *Toolset {
	if logger == nil {
		logger = logging.Default()
	}
	return &Toolset{handle: h, controller: controller, metrics: m, logger: logger}
}

// Names lists every tool the reasoning engine may invoke on this call.
func (t *Toolset) Names() []agent.ToolName {
	names := agent.ToolNames()
	return append(names, ToolEndCall, ToolTransferCall, ToolDetectedAnsweringMachine)
}

// Dispatch routes one tool invocation. Compliance tools go to the state
// machine; terminal tools go to the controller. When a result asks for
// speech, the reply is generated before any terminal action so refusals
// and farewells are actually heard. The returned string is the tool
// output handed back to the reasoning engine.
func (t *Toolset) Dispatch(ctx context.Context, name agent.ToolName, args json.RawMessage) (string, error) {
	t.logger.Info("tool invoked", "room", t.handle.Room, "tool", string(name))

	switch name {
	case ToolEndCall:
		t.metrics.ObserveTool(string(name), "ok")
		if err := t.controller.EndCall(ctx, t.handle, "agent_hangup"); err != nil {
			return "", err
		}
		return "call ended", nil

	case ToolDetectedAnsweringMachine:
		t.metrics.ObserveTool(string(name), "ok")
		if err := t.controller.DetectedAnsweringMachine(ctx, t.handle); err != nil {
			return "", err
		}
		return "call ended", nil

	case ToolTransferCall:
		res, err := t.controller.TransferCall(ctx, t.handle)
		if err != nil {
			t.metrics.ObserveTool(string(name), "error")
			return "", err
		}
		t.metrics.ObserveTool(string(name), "ok")
		if res.SpeakInstructions != "" {
			t.speak(ctx, res.SpeakInstructions)
		}
		return res.Output, nil

	default:
		res, err := t.handle.Agent.Invoke(ctx, name, args)
		if err != nil {
			t.metrics.ObserveTool(string(name), "error")
			return "", fmt.Errorf("call: tool %s: %w", name, err)
		}
		outcome := "ok"
		if !res.OK {
			outcome = "refused"
		}
		t.metrics.ObserveTool(string(name), outcome)

		if res.SpeakInstructions != "" {
			t.speak(ctx, res.SpeakInstructions)
		}
		if res.Terminal {
			// A terminal result (e.g. a cease-communication request) ends
			// the call after the acknowledgment has played out.
			if err := t.controller.EndCall(ctx, t.handle, string(name)); err != nil {
				return "", err
			}
		}
		return res.Output, nil
	}
}

func (t *Toolset) speak(ctx context.Context, instructions string) {
	if err := t.handle.Session.GenerateReply(ctx, instructions); err != nil {
		t.logger.Warn("failed to generate reply", "room", t.handle.Room, "error", err)
	}
}
