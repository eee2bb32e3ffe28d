// Package agent implements the per-call compliance state machine for
// debt-collection conversations. Every regulatory or business action the
// conversational layer may take is an operation on the Agent; each
// operation enforces the identity-verification gate where required,
// keeps the one-way state flags, and emits exactly one audit event.
package agent

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/internal/events"
	"github.com/collectwise/collections-ai-platform/internal/observability/metrics"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// Result is what an operation hands back to the conversational reasoning
// engine.
type Result struct {
	// OK is false for the expected refusal branches (failed verification,
	// gated operation before verification). Never an error condition.
	OK bool
	// Output is the structured/textual result returned to the reasoning engine.
	Output string
	// SpeakInstructions, when non-empty, tells the conversational layer
	// what to say next.
	SpeakInstructions string
	// Terminal marks operations that must be followed by graceful call
	// termination once the acknowledgement has been spoken.
	Terminal bool
}

// Verification outcomes. A failed gate is a normal branch: the caller
// must withhold account specifics and either retry verification or end
// the call.
const (
	verificationFailedOutput = "Identity verification failed"

	refusalOutput = "Customer identity is not verified. Do not share account details. " +
		"Offer to verify identity again, or end the call."
	refusalInstructions = "Politely inform the customer that you cannot discuss account details " +
		"without proper verification and offer to try again or have them call back with the " +
		"necessary information or proceed to end the call"
)

// Agent is the single-writer compliance state machine for one call. The
// conversational driver invokes at most one operation at a time, so no
// internal locking is needed.
type Agent struct {
	metadata *calldata.CallMetadata
	state    State
	recorder events.Recorder
	metrics  *metrics.CallMetrics
	logger   *logging.Logger
}

// New creates the state machine for one call. recorder must not be nil;
// metrics may be.
func New(metadata *calldata.CallMetadata, recorder events.Recorder, m *metrics.CallMetrics, logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.Default()
	}
	return &Agent{
		metadata: metadata,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
	}
}

// Metadata returns the immutable call metadata.
func (a *Agent) Metadata() *calldata.CallMetadata { return a.metadata }

// State returns a read view of the compliance flags.
func (a *Agent) State() *State { return &a.state }

func (a *Agent) emit(ctx context.Context, eventType events.Type, data map[string]any) {
	if a.recorder == nil {
		return
	}
	a.recorder.Record(ctx, events.Event{
		EventType:     eventType,
		AccountNumber: a.metadata.Customer.AccountNumber,
		Data:          data,
	})
}

func (a *Agent) refuseUnverified(tool ToolName) *Result {
	a.logger.Info("gated operation refused: identity not verified", "tool", string(tool))
	a.metrics.ObserveTool(string(tool), "refused_unverified")
	return &Result{
		OK:                false,
		Output:            refusalOutput,
		SpeakInstructions: refusalInstructions,
	}
}

// VerifyIdentityArgs supports both gate-setting mechanisms: digit match
// against the account's last four, or an explicit status asserted by the
// reasoning engine. Which one a deployment uses is a configuration
// choice of the conversational layer.
type VerifyIdentityArgs struct {
	LastFourDigits string `json:"last_four_digits,omitempty"`
	Status         *bool  `json:"status,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// VerifyIdentity attempts to open the verification gate. Failure is a
// normal outcome, not an error; the gate stays closed and all
// account-detail operations keep refusing.
func (a *Agent) VerifyIdentity(ctx context.Context, args VerifyIdentityArgs) *Result {
	verified := false
	switch {
	case args.Status != nil:
		verified = *args.Status
	case args.LastFourDigits != "":
		verified = args.LastFourDigits == a.metadata.LastFour()
	}

	data := map[string]any{"last_four_digits": args.LastFourDigits}
	if args.Status != nil {
		data["status"] = *args.Status
	}
	if args.Notes != "" {
		data["notes"] = args.Notes
	}
	data["verified"] = verified
	a.emit(ctx, events.TypeIdentityVerification, data)

	if !verified {
		a.metrics.ObserveTool(string(ToolVerifyIdentity), "failure")
		return &Result{
			OK:                false,
			Output:            verificationFailedOutput,
			SpeakInstructions: refusalInstructions,
		}
	}

	a.state.markVerified()
	a.metrics.ObserveTool(string(ToolVerifyIdentity), "success")
	return &Result{
		OK: true,
		Output: fmt.Sprintf("Identity verified for %s. Debt: $%s owed to %s.",
			a.metadata.Customer.Name,
			formatAmount(a.metadata.Debt.Amount),
			a.metadata.Debt.Creditor,
		),
	}
}

// DisputeDebt records that the customer disputes the debt.
func (a *Agent) DisputeDebt(ctx context.Context) *Result {
	a.state.markDebtDisputed()
	a.emit(ctx, events.TypeDebtDisputed, map[string]any{})
	a.metrics.ObserveTool(string(ToolDisputeDebt), "success")
	return &Result{
		OK:     true,
		Output: "Debt dispute recorded successfully",
		SpeakInstructions: "Acknowledge the debt dispute and inform the customer that it " +
			"will be processed according to FDCPA regulations",
	}
}

// SendValidation queues a debt-validation notice. Requesting validation
// implies an open dispute, so the dispute flag is set as well.
func (a *Agent) SendValidation(ctx context.Context) *Result {
	a.state.markDebtDisputed()
	a.emit(ctx, events.TypeValidationSent, map[string]any{})
	a.metrics.ObserveTool(string(ToolSendValidation), "success")
	return &Result{
		OK:     true,
		Output: "Debt validation notice will be mailed to the address on file",
		SpeakInstructions: "Confirm that a written debt validation notice will be sent and " +
			"that collection activity on the disputed amount pauses until it is delivered",
	}
}

// ReschedulePaymentArgs carries the new payment date and the customer's reason.
type ReschedulePaymentArgs struct {
	NewDate string `json:"new_date"`
	Reason  string `json:"reason"`
}

// ReschedulePayment moves the customer's payment date. Gated.
func (a *Agent) ReschedulePayment(ctx context.Context, args ReschedulePaymentArgs) *Result {
	if !a.state.Verified() {
		return a.refuseUnverified(ToolReschedulePayment)
	}

	a.emit(ctx, events.TypePaymentRescheduled, map[string]any{
		"new_date": args.NewDate,
		"reason":   args.Reason,
	})
	a.metrics.ObserveTool(string(ToolReschedulePayment), "success")
	return &Result{
		OK:     true,
		Output: fmt.Sprintf("Payment rescheduled to %s", args.NewDate),
		SpeakInstructions: fmt.Sprintf("Confirm the payment has been rescheduled to %s and "+
			"provide any additional instructions needed", args.NewDate),
	}
}

// PaymentPlanArgs configures a plan offer. Months defaults to 6 when
// unset; Start converts an offer into an active plan.
type PaymentPlanArgs struct {
	Months int  `json:"months,omitempty"`
	Start  bool `json:"start,omitempty"`
}

// PaymentPlan offers a monthly plan, or starts one on confirmation. Gated.
func (a *Agent) PaymentPlan(ctx context.Context, args PaymentPlanArgs) *Result {
	if !a.state.Verified() {
		return a.refuseUnverified(ToolPaymentPlan)
	}

	months := args.Months
	if months <= 0 {
		months = 6
	}
	debtAmount := a.metadata.Debt.Amount
	monthlyPayment := roundCents(debtAmount / float64(months))

	if args.Start {
		a.state.markPaymentPlanStarted()
		a.emit(ctx, events.TypePlanStarted, map[string]any{
			"months":          months,
			"monthly_payment": formatAmount(monthlyPayment),
		})
		a.metrics.ObserveTool(string(ToolPaymentPlan), "started")
		return &Result{
			OK:     true,
			Output: fmt.Sprintf("Payment plan started: $%s/month for %d months", formatAmount(monthlyPayment), months),
			SpeakInstructions: "Confirm the payment plan has been started and provide next " +
				"steps for payment",
		}
	}

	a.state.markPaymentPlanOffered()
	a.emit(ctx, events.TypePlanOffered, map[string]any{
		"months":          months,
		"monthly_payment": formatAmount(monthlyPayment),
		"total_amount":    formatAmount(debtAmount),
	})
	a.metrics.ObserveTool(string(ToolPaymentPlan), "offered")
	return &Result{
		OK:     true,
		Output: fmt.Sprintf("Payment plan offered: $%s/month for %d months", formatAmount(monthlyPayment), months),
		SpeakInstructions: fmt.Sprintf("Offer a payment plan of $%s per month for %d months",
			formatAmount(monthlyPayment), months),
	}
}

// OfferSettlementArgs carries the settlement percentage (0-100).
type OfferSettlementArgs struct {
	SettlementPercentage int `json:"settlement_percentage"`
}

// OfferSettlement offers a one-time settlement amount. Gated. The
// percentage is validated at the boundary; no business-rule
// authorization check is applied beyond that.
func (a *Agent) OfferSettlement(ctx context.Context, args OfferSettlementArgs) *Result {
	if !a.state.Verified() {
		return a.refuseUnverified(ToolOfferSettlement)
	}

	debtAmount := a.metadata.Debt.Amount
	settlementAmount := roundCents(debtAmount * float64(args.SettlementPercentage) / 100)

	a.emit(ctx, events.TypeSettlementOffered, map[string]any{
		"original_amount":       formatAmount(debtAmount),
		"settlement_percentage": args.SettlementPercentage,
		"settlement_amount":     formatAmount(settlementAmount),
	})
	a.metrics.ObserveTool(string(ToolOfferSettlement), "success")
	return &Result{
		OK: true,
		Output: fmt.Sprintf("Settlement offered: $%s (%d%%)",
			formatAmount(settlementAmount), args.SettlementPercentage),
		SpeakInstructions: fmt.Sprintf("Offer a settlement amount of $%s (which is %d%% of the "+
			"original $%s) as a one-time payment option",
			formatAmount(settlementAmount), args.SettlementPercentage, formatAmount(debtAmount)),
	}
}

// RecordHardshipArgs describes the customer's claimed hardship.
type RecordHardshipArgs struct {
	HardshipType string `json:"hardship_type"`
	Description  string `json:"description"`
}

// RecordHardship records a hardship claim and marks the call for an
// adjusted collection approach. Gated.
func (a *Agent) RecordHardship(ctx context.Context, args RecordHardshipArgs) *Result {
	if !a.state.Verified() {
		return a.refuseUnverified(ToolRecordHardship)
	}

	a.state.markHardshipClaimed()
	a.emit(ctx, events.TypeHardshipClaim, map[string]any{
		"hardship_type": args.HardshipType,
		"description":   args.Description,
	})
	a.metrics.ObserveTool(string(ToolRecordHardship), "success")
	return &Result{
		OK:     true,
		Output: fmt.Sprintf("Hardship claim for %s recorded successfully", args.HardshipType),
		SpeakInstructions: fmt.Sprintf("Acknowledge the %s hardship with empathy and offer to "+
			"adjust the payment options or timeline accordingly", args.HardshipType),
	}
}

// ScheduleCallbackArgs carries the requested callback slot.
type ScheduleCallbackArgs struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason"`
}

// ScheduleCallback records a callback request for a later date and time.
func (a *Agent) ScheduleCallback(ctx context.Context, args ScheduleCallbackArgs) *Result {
	formatted := fmt.Sprintf("%s at %s", args.Date, args.Time)

	a.emit(ctx, events.TypeCallbackScheduled, map[string]any{
		"date":   args.Date,
		"time":   args.Time,
		"reason": args.Reason,
	})
	a.metrics.ObserveTool(string(ToolScheduleCallback), "success")
	return &Result{
		OK:     true,
		Output: fmt.Sprintf("Callback scheduled for %s", formatted),
		SpeakInstructions: fmt.Sprintf("Confirm the callback has been scheduled for %s and "+
			"provide a professional closing to the call", formatted),
	}
}

// CeaseCommunicationArgs carries the stated reason for the request.
type CeaseCommunicationArgs struct {
	Reason string `json:"reason"`
}

// CeaseCommunication honors an FDCPA cease-communication request. The
// result is Terminal: the call must be gracefully ended once the
// acknowledgement has been spoken.
func (a *Agent) CeaseCommunication(ctx context.Context, args CeaseCommunicationArgs) *Result {
	a.emit(ctx, events.TypeCeaseCommunication, map[string]any{"reason": args.Reason})
	a.metrics.ObserveTool(string(ToolCeaseCommunication), "success")
	return &Result{
		OK:     true,
		Output: "cease communication request processed",
		SpeakInstructions: "Acknowledge the customer's request to cease communication, confirm " +
			"that their request will be honored according to FDCPA regulations, and provide a " +
			"professional closing to the call",
		Terminal: true,
	}
}

// CreditorPolicy returns the creditor's policy on defaulted accounts.
func (a *Agent) CreditorPolicy(ctx context.Context) *Result {
	policy := fmt.Sprintf(`%s Policy on Defaulted Accounts:
1. Accounts are considered delinquent after 30 days of non-payment
2. After 60 days, accounts enter the collections process
3. At 90 days, accounts are marked as defaulted
4. Defaulted accounts may be reported to credit bureaus
5. After 120 days, accounts may be transferred to third-party collectors
6. Settlement options may be available based on account history and circumstances
7. Hardship programs are available for qualifying customers`, a.metadata.Debt.Creditor)

	a.emit(ctx, events.TypeCreditorPolicy, map[string]any{})
	a.metrics.ObserveTool(string(ToolCreditorPolicy), "success")
	return &Result{OK: true, Output: policy}
}

// roundCents rounds to two decimal places using standard half-away-from-zero rounding.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatAmount renders a money figure as a decimal string with cents.
func formatAmount(v float64) string {
	return strconv.FormatFloat(roundCents(v), 'f', 2, 64)
}
