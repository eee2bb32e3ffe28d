package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolName tags one operation in the closed action vocabulary exposed to
// the conversational reasoning engine.
type ToolName string

const (
	ToolVerifyIdentity     ToolName = "verify_identity"
	ToolDisputeDebt        ToolName = "dispute_debt"
	ToolSendValidation     ToolName = "send_validation"
	ToolReschedulePayment  ToolName = "reschedule_payment"
	ToolPaymentPlan        ToolName = "payment_plan"
	ToolOfferSettlement    ToolName = "offer_settlement"
	ToolRecordHardship     ToolName = "record_hardship"
	ToolScheduleCallback   ToolName = "schedule_callback"
	ToolCeaseCommunication ToolName = "cease_communication"
	ToolCreditorPolicy     ToolName = "creditor_policy_on_default"
)

// ToolNames lists every operation the reasoning engine may invoke on the
// state machine, in a stable order.
func ToolNames() []ToolName {
	return []ToolName{
		ToolVerifyIdentity,
		ToolDisputeDebt,
		ToolSendValidation,
		ToolReschedulePayment,
		ToolPaymentPlan,
		ToolOfferSettlement,
		ToolRecordHardship,
		ToolScheduleCallback,
		ToolCeaseCommunication,
		ToolCreditorPolicy,
	}
}

// Invoke dispatches a named tool with JSON-encoded arguments. Argument
// decoding and range validation happen here, at the boundary with the
// reasoning engine; a Result is returned for every valid invocation,
// including the expected refusal branches.
func (a *Agent) Invoke(ctx context.Context, name ToolName, args json.RawMessage) (*Result, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case ToolVerifyIdentity:
		var v VerifyIdentityArgs
		if err := decodeArgs(name, args, &v); err != nil {
			return nil, err
		}
		return a.VerifyIdentity(ctx, v), nil

	case ToolDisputeDebt:
		return a.DisputeDebt(ctx), nil

	case ToolSendValidation:
		return a.SendValidation(ctx), nil

	case ToolReschedulePayment:
		var v ReschedulePaymentArgs
		if err := decodeArgs(name, args, &v); err != nil {
			return nil, err
		}
		if v.NewDate == "" {
			return nil, fmt.Errorf("agent: %s: new_date is required", name)
		}
		return a.ReschedulePayment(ctx, v), nil

	case ToolPaymentPlan:
		var v PaymentPlanArgs
		if err := decodeArgs(name, args, &v); err != nil {
			return nil, err
		}
		if v.Months < 0 {
			return nil, fmt.Errorf("agent: %s: months must not be negative, got %d", name, v.Months)
		}
		return a.PaymentPlan(ctx, v), nil

	case ToolOfferSettlement:
		var v OfferSettlementArgs
		if err := decodeArgs(name, args, &v); err != nil {
			return nil, err
		}
		if v.SettlementPercentage < 0 || v.SettlementPercentage > 100 {
			return nil, fmt.Errorf("agent: %s: settlement_percentage must be 0-100, got %d",
				name, v.SettlementPercentage)
		}
		return a.OfferSettlement(ctx, v), nil

	case ToolRecordHardship:
		var v RecordHardshipArgs
		if err := decodeArgs(name, args, &v); err != nil {
			return nil, err
		}
		return a.RecordHardship(ctx, v), nil

	case ToolScheduleCallback:
		var v ScheduleCallbackArgs
		if err := decodeArgs(name, args, &v); err != nil {
			return nil, err
		}
		return a.ScheduleCallback(ctx, v), nil

	case ToolCeaseCommunication:
		var v CeaseCommunicationArgs
		if err := decodeArgs(name, args, &v); err != nil {
			return nil, err
		}
		return a.CeaseCommunication(ctx, v), nil

	case ToolCreditorPolicy:
		return a.CreditorPolicy(ctx), nil

	default:
		return nil, fmt.Errorf("agent: unknown tool %q", name)
	}
}

func decodeArgs(name ToolName, raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("agent: %s: decode arguments: %w", name, err)
	}
	return nil
}
